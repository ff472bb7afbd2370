package depgraph

import "github.com/pkg/errors"

var (
	// ErrUnresolved is returned (and recorded per-edge by Build, never
	// fatal there) when a NEEDED soname cannot be located anywhere in the
	// resolver's search order. show still reports the rest of the graph;
	// repair aborts when an unresolved edge feeds a graft candidate.
	ErrUnresolved = errors.New("depgraph: soname did not resolve to a path")

	// ErrSonameConflict is returned by Build when the same soname resolves
	// to two different absolute paths from different search contexts,
	// which the data model's node-identity invariant forbids.
	ErrSonameConflict = errors.New("depgraph: soname resolved to conflicting paths")

	// ErrHeterogeneousArchive is returned when root binaries do not share
	// a common policy architecture token.
	ErrHeterogeneousArchive = errors.New("depgraph: roots span more than one architecture")
)

// UnresolvedError carries the soname and the dependent that needed it.
type UnresolvedError struct {
	Soname    string
	Dependent string
}

func (e *UnresolvedError) Error() string {
	return "depgraph: " + e.Soname + " required by " + e.Dependent + " did not resolve"
}

func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

// SonameConflictError carries both paths a soname resolved to.
type SonameConflictError struct {
	Soname string
	PathA  string
	PathB  string
}

func (e *SonameConflictError) Error() string {
	return "depgraph: " + e.Soname + " resolved to conflicting paths " + e.PathA + " and " + e.PathB
}

func (e *SonameConflictError) Unwrap() error { return ErrSonameConflict }
