// Package planner turns a scored dependency graph into a concrete list of
// graft and rewrite actions, without touching the filesystem beyond reading
// the bytes of libraries it needs to name. internal/repair executes the
// resulting Plan.
package planner

import "github.com/pkg/errors"

// ErrSonameConflict is returned by Build when two distinct external
// libraries cannot be assigned distinct graft names even after the hash
// suffix is widened — a caller should treat this as a fatal planning error,
// not something to retry silently.
var ErrSonameConflict = errors.New("planner: cannot assign distinct graft names")
