// Package repair executes a planner.Plan on a scratch copy of a wheel's
// payload: copying grafted libraries into place, and invoking external
// patchelf-equivalent and strip binaries to rewrite DT_NEEDED/DT_RUNPATH
// entries.
package repair

import "github.com/pkg/errors"

// PatcherFailed wraps a failed invocation of the external binary patcher,
// carrying its captured stderr.
type PatcherFailed struct {
	BinaryPath string
	Stderr     string
	Err        error
}

func (e *PatcherFailed) Error() string {
	return "repair: patcher failed on " + e.BinaryPath + ": " + e.Err.Error() + ": " + e.Stderr
}

func (e *PatcherFailed) Unwrap() error { return e.Err }

// StripFailed wraps a failed invocation of the external strip utility.
// Stripping is best-effort: callers may choose to log and continue rather
// than abort the whole repair on a StripFailed.
type StripFailed struct {
	BinaryPath string
	Stderr     string
	Err        error
}

func (e *StripFailed) Error() string {
	return "repair: strip failed on " + e.BinaryPath + ": " + e.Err.Error() + ": " + e.Stderr
}

func (e *StripFailed) Unwrap() error { return e.Err }

// ErrCycle is returned by TopoOrder if the plan's rewrite graph contains a
// cycle, which should never happen for a well-formed depgraph.Graph (cycles
// among externals are broken by the three-colour BFS) but is checked
// defensively since TopoOrder's caller treats its absence as load-bearing
// for patch ordering correctness.
var ErrCycle = errors.New("repair: rewrite dependency graph has a cycle")
