// Package audit ties elfinfo, resolve, depgraph, policy, wheel, planner,
// repair, and report together into the two top-level operations spec.md
// §1 names: Show (inspect an archive's current compliance) and Repair
// (rewrite it to satisfy a target policy). Everything in this package is a
// thin sequencing layer; none of the algorithms themselves live here.
package audit

import "github.com/pkg/errors"

var (
	// ErrPolicyNotFound is returned when a caller names a target policy
	// (by name or alias) absent from the loaded table.
	ErrPolicyNotFound = errors.New("audit: named policy not found in policy table")

	// ErrPolicyIncompatible is returned by Repair when the graph cannot
	// satisfy target even after grafting — an unresolved dependency feeds
	// a graft candidate, or a violation/blacklist hit remains against the
	// libraries that must stay whitelisted (glibc, libstdc++, ...).
	ErrPolicyIncompatible = errors.New("audit: archive cannot satisfy the requested policy")

	// ErrNotShowCompatible is returned by the CLI's show command (not by
	// Show itself) when the archive satisfies no policy at all, including
	// the permissive "linux" default; the CLI maps it to exit code 1.
	ErrNotShowCompatible = errors.New("audit: archive satisfies no policy")
)
