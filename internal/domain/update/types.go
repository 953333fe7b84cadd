package update

import "sort"

// Class is the reconciliation decision for one relative path.
type Class int

const (
	// ClassReplace means the path is copied from the release artifact
	// (covers both new files and overwrites).
	ClassReplace Class = iota
	// ClassPreserve means the local file is operator-owned and left untouched.
	ClassPreserve
	// ClassOrphan means the local file is absent from the release and not
	// covered by a preservation rule. Advisory only, never deleted.
	ClassOrphan
)

// String returns the class name for logs and reports.
func (c Class) String() string {
	switch c {
	case ClassReplace:
		return "replace"
	case ClassPreserve:
		return "preserve"
	case ClassOrphan:
		return "orphan"
	default:
		return "unknown"
	}
}

// Classification maps every relevant relative path to a Class.
// It is built fresh per run and never persisted.
type Classification struct {
	// Entries holds the class per relative path.
	Entries map[string]Class
	// Rationales holds the preservation rule rationale for preserved paths.
	Rationales map[string]string
}

// NewClassification returns an empty classification.
func NewClassification() *Classification {
	return &Classification{
		Entries:    make(map[string]Class),
		Rationales: make(map[string]string),
	}
}

// Paths returns the sorted relative paths carrying the given class.
func (c *Classification) Paths(class Class) []string {
	paths := make([]string, 0, len(c.Entries))

	for path, entryClass := range c.Entries {
		if entryClass == class {
			paths = append(paths, path)
		}
	}

	sort.Strings(paths)

	return paths
}

// OpKind identifies one planned filesystem operation.
type OpKind int

const (
	// OpCopy replaces the live file with staged release content.
	OpCopy OpKind = iota
	// OpSkip leaves a preserved file untouched.
	OpSkip
	// OpReportOrphan surfaces an orphaned file to the operator.
	OpReportOrphan
)

// Operation is one entry of an update plan.
type Operation struct {
	// Kind is the operation to perform.
	Kind OpKind
	// Path is the relative path the operation targets.
	Path string
	// Reason explains skips and orphan reports.
	Reason string
}

// Plan is the ordered list of filesystem operations for one apply step.
// It is immutable once computed and discarded after the run.
type Plan struct {
	// Ops holds operations in deterministic order: copies first, then
	// skips, then orphan reports, each sorted by path.
	Ops []Operation
}

// NewPlan derives an ordered plan from a classification.
func NewPlan(c *Classification) *Plan {
	plan := &Plan{
		Ops: make([]Operation, 0, len(c.Entries)),
	}

	for _, path := range c.Paths(ClassReplace) {
		plan.Ops = append(plan.Ops, Operation{Kind: OpCopy, Path: path})
	}

	for _, path := range c.Paths(ClassPreserve) {
		plan.Ops = append(plan.Ops, Operation{
			Kind:   OpSkip,
			Path:   path,
			Reason: c.Rationales[path],
		})
	}

	for _, path := range c.Paths(ClassOrphan) {
		plan.Ops = append(plan.Ops, Operation{
			Kind:   OpReportOrphan,
			Path:   path,
			Reason: "not part of the release and not covered by a preservation rule",
		})
	}

	return plan
}

// Copies returns the paths of all copy operations in plan order.
func (p *Plan) Copies() []string {
	paths := make([]string, 0, len(p.Ops))

	for _, op := range p.Ops {
		if op.Kind == OpCopy {
			paths = append(paths, op.Path)
		}
	}

	return paths
}

// ApplyReport summarizes what a single apply step did.
type ApplyReport struct {
	// Swapped lists paths replaced with release content.
	Swapped []string
	// Preserved lists operator-owned paths left untouched.
	Preserved []string
	// Orphans lists local paths absent from the release, reported only.
	Orphans []string
}

// State is one stage of the orchestrator state machine.
type State int

const (
	// StateIdle is the initial state before any work.
	StateIdle State = iota
	// StateProbing determines current and latest versions.
	StateProbing
	// StateFetching downloads and verifies the release artifact.
	StateFetching
	// StateResolving classifies artifact and installation paths.
	StateResolving
	// StateApplying stages and swaps files into the installation.
	StateApplying
	// StateUpToDate is terminal: the installation already matches the latest release.
	StateUpToDate
	// StateDone is terminal: the installation was updated.
	StateDone
	// StateFailed is terminal: a component failed; Err carries the kind.
	StateFailed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateFetching:
		return "fetching"
	case StateResolving:
		return "resolving"
	case StateApplying:
		return "applying"
	case StateUpToDate:
		return "up-to-date"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateUpToDate || s == StateDone || s == StateFailed
}

// Status is the final result of one orchestrator run.
type Status struct {
	// State is the terminal state the run reached.
	State State
	// From is the version installed before the run ("unknown" when undetected).
	From string
	// To is the version installed after the run.
	To string
	// Report describes filesystem changes when the run applied an update.
	Report *ApplyReport
	// Err is the originating failure when State is StateFailed.
	Err error
}
