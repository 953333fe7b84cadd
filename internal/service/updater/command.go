package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fernoz/mta-server-updater/internal/config"
	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/logger"
	"github.com/fernoz/mta-server-updater/internal/platform"
	"github.com/fernoz/mta-server-updater/internal/policy"
	"github.com/fernoz/mta-server-updater/internal/release"
	"github.com/fernoz/mta-server-updater/internal/repository/marker"
)

var (
	errRootRequired = errors.New("installation root must be provided")
	errRootNotDir   = errors.New("installation root is not a directory")
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// ManifestURL overrides the configured release manifest URL.
	ManifestURL string
	// Root is the installation root to update.
	Root string
}

// runner holds the collaborators for a single update run.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	cfg     *config.Config
	root    string
	probe   *release.Probe
	fetcher *release.Fetcher
	rules   *policy.Table
	lock    *rootLock
	state   domain.State
}

// Run executes one full reconciliation against the installation root and is
// the public entry point for the CLI. The returned Status always describes
// the terminal state, including failures.
func Run(ctx context.Context, opts *Options) (*domain.Status, error) {
	ctx = logger.WithName(ctx, "mta-updater")

	r, err := newRunner(opts)
	if err != nil {
		return failedStatus(ctx, err), err
	}

	ctx = logger.WithKV(ctx, "root", r.root)

	if err = r.lock.Acquire(ctx); err != nil {
		return failedStatus(ctx, err), err
	}

	defer r.lock.Release(ctx)

	status := r.run(ctx)
	if status.Err != nil {
		return status, status.Err
	}

	return status, nil
}

// newRunner validates inputs, resolves configuration and wires collaborators.
func newRunner(opts *Options) (*runner, error) {
	if opts.Root == "" {
		return nil, errRootRequired
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve installation root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("installation root: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, errRootNotDir)
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}

	return &runner{
		cfg:     cfg,
		root:    root,
		probe:   release.NewProbe(cfg.ManifestURL, cfg.Timeout),
		fetcher: release.NewFetcher(cfg.ManifestURL, cfg.Timeout),
		rules:   policy.Default(),
		lock:    newRootLock(root, cfg.LockStaleness),
		state:   domain.StateIdle,
	}, nil
}

// resolveConfig prefers an explicit manifest URL over the settings file.
func resolveConfig(opts *Options) (*config.Config, error) {
	if opts.ManifestURL != "" {
		cfg := &config.Config{ManifestURL: opts.ManifestURL}
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}

		return cfg, nil
	}

	return config.Load(opts.ConfigPath)
}

// run drives the state machine:
// Idle → Probing → UpToDate | Fetching → Resolving → Applying → Done | Failed.
func (r *runner) run(ctx context.Context) *domain.Status {
	r.transition(ctx, domain.StateProbing)

	current := r.probe.Current(ctx, r.root)

	latest, manifest, err := r.probe.Latest(ctx)
	if err != nil {
		return r.fail(ctx, current, err)
	}

	logger.InfoKV(ctx, "Versions determined",
		"installed", current.String(), "latest", latest.String())

	if current.Equal(latest) {
		r.transition(ctx, domain.StateUpToDate)

		return &domain.Status{
			State: domain.StateUpToDate,
			From:  current.String(),
			To:    latest.String(),
		}
	}

	build, err := platform.Current()
	if err != nil {
		return r.fail(ctx, current, fmt.Errorf("%v: %w", err, domain.ErrNotFound))
	}

	r.transition(ctx, domain.StateFetching)

	artifact, err := r.fetcher.Fetch(ctx, manifest, build)
	if err != nil {
		return r.fail(ctx, current, err)
	}

	// The artifact is transient; remove it whatever the outcome.
	defer func() {
		_ = artifact.Close()
	}()

	r.transition(ctx, domain.StateResolving)

	classification, err := classify(r.root, artifact, r.rules)
	if err != nil {
		return r.fail(ctx, current, err)
	}

	r.transition(ctx, domain.StateApplying)

	report, err := apply(ctx, r.root, artifact, classification, marker.ForRoot(r.root))
	if err != nil {
		return r.fail(ctx, current, err)
	}

	r.reportOutcome(ctx, report)
	r.transition(ctx, domain.StateDone)

	return &domain.Status{
		State:  domain.StateDone,
		From:   current.String(),
		To:     latest.String(),
		Report: report,
	}
}

// transition logs and records a state change.
func (r *runner) transition(ctx context.Context, next domain.State) {
	logger.InfoKV(ctx, "State transition", "from", r.state.String(), "to", next.String())
	r.state = next
}

// fail moves the run to the terminal Failed state with the originating error.
func (r *runner) fail(ctx context.Context, current release.Version, err error) *domain.Status {
	r.transition(ctx, domain.StateFailed)
	logger.ErrorKV(ctx, "Update run failed", "error", err)

	return &domain.Status{
		State: domain.StateFailed,
		From:  current.String(),
		Err:   err,
	}
}

// failedStatus builds a Failed status for errors before the run started.
func failedStatus(ctx context.Context, err error) *domain.Status {
	logger.ErrorKV(ctx, "Update run failed", "error", err)

	return &domain.Status{
		State: domain.StateFailed,
		Err:   err,
	}
}

// reportOutcome summarizes the apply step for the operator.
func (r *runner) reportOutcome(ctx context.Context, report *domain.ApplyReport) {
	logger.InfoKV(ctx, "Update applied",
		"replaced", len(report.Swapped),
		"preserved", len(report.Preserved),
		"orphans", len(report.Orphans))

	// Orphan classification is advisory: nothing is deleted automatically.
	for _, orphan := range report.Orphans {
		logger.WarnKV(ctx, "Orphaned file is not part of the release; review and remove manually if unwanted",
			"path", orphan)
	}
}
