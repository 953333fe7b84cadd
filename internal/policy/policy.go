package policy

import (
	"fmt"
	"sort"

	"github.com/gobwas/glob"
)

// Rule pairs a path pattern with the rationale for preserving its matches.
type Rule struct {
	// Pattern is a glob over slash-separated relative paths.
	// `*` stays within one path segment, `**` crosses segments.
	Pattern string
	// Rationale documents why matches are operator-owned.
	Rationale string

	matcher glob.Glob
}

// Table is a compiled, ordered set of preservation rules.
type Table struct {
	rules []Rule
}

// defaultRules preserves operator configuration, gameplay data and runtime
// output of an MTA server installation, plus this tool's own metadata.
//
//nolint:gochecknoglobals // Static policy table.
var defaultRules = map[string]string{
	"mods/deathmatch/mtaserver.conf":    "operator server settings",
	"mods/deathmatch/acl.xml":           "access control lists",
	"mods/deathmatch/editor_acl.xml":    "editor access control lists",
	"mods/deathmatch/banlist.xml":       "operator ban list",
	"mods/deathmatch/*.db":              "account and registry databases",
	"mods/deathmatch/resources/**":      "operator and community resources",
	"mods/deathmatch/resource-cache/**": "resource cache built at runtime",
	"mods/deathmatch/logs/**":           "runtime logs",
	"server-id.keys":                    "server identity keys",
	"updates.log":                       "update history kept by this tool",
	"x64/config/**":                     "module configuration",
}

// New compiles a preservation table from {pattern: rationale} entries.
func New(rules map[string]string) (*Table, error) {
	compiled := make([]Rule, 0, len(rules))

	patterns := make([]string, 0, len(rules))
	for pattern := range rules {
		patterns = append(patterns, pattern)
	}

	// Deterministic rule order keeps match results stable across runs.
	sort.Strings(patterns)

	for _, pattern := range patterns {
		matcher, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile preservation pattern %q: %w", pattern, err)
		}

		compiled = append(compiled, Rule{
			Pattern:   pattern,
			Rationale: rules[pattern],
			matcher:   matcher,
		})
	}

	return &Table{rules: compiled}, nil
}

// Default returns the built-in preservation table for MTA server installations.
func Default() *Table {
	table, err := New(defaultRules)
	if err != nil {
		// The built-in patterns are compile-checked by tests.
		panic(err)
	}

	return table
}

// Match returns the first rule covering the slash-separated relative path.
func (t *Table) Match(relPath string) (Rule, bool) {
	for _, rule := range t.rules {
		if rule.matcher.Match(relPath) {
			return rule, true
		}
	}

	return Rule{}, false
}

// Rules returns the compiled rules in match order.
func (t *Table) Rules() []Rule {
	return t.rules
}
