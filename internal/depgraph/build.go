package depgraph

import (
	"github.com/sirupsen/logrus"

	"github.com/pypa/auditwheel-go/internal/elfinfo"
)

// Resolver is the subset of *resolve.Resolver Build needs, declared as an
// interface so tests can supply a fixed lookup table instead of touching
// the filesystem.
type Resolver interface {
	Resolve(dependent *elfinfo.File, soname string, ancestors []*elfinfo.File) (string, bool)
}

// Build runs the fixed-point closure described in spec §4.C: every root's
// NEEDED list is resolved, each newly-discovered external library is itself
// opened and its NEEDED list resolved, until no new nodes appear. Unresolved
// sonames are collected and returned rather than treated as fatal, per
// §7's "inspection records it; repair aborts" split — the caller decides.
// A real SonameConflict (the same soname resolving to two distinct paths)
// or a HeterogeneousArchive is fatal and returned as error.
func Build(roots []*elfinfo.File, resolver Resolver, log *logrus.Entry) (*Graph, []*UnresolvedError, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	arch, err := commonArch(roots)
	if err != nil {
		return nil, nil, err
	}

	g := &Graph{Nodes: make(map[string]*Node), RootArch: arch}
	sonamePaths := make(map[string]string)
	var unresolved []*UnresolvedError

	var queue []*Node
	for _, f := range roots {
		n := &Node{
			ID:     rootID(f.Path),
			IsRoot: true,
			Path:   f.Path,
			Soname: soNameOf(f),
			File:   f,
			color:  gray,
		}
		g.Nodes[n.ID] = n
		queue = append(queue, n)
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.color == black {
			continue
		}

		for _, needed := range n.File.Needed {
			path, ok := resolver.Resolve(n.File, needed, n.ancestors)
			if !ok {
				log.WithFields(logrus.Fields{"soname": needed, "dependent": n.Path}).Debug("depgraph: unresolved")
				unresolved = append(unresolved, &UnresolvedError{Soname: needed, Dependent: n.Path})
				continue
			}

			if existing, seen := sonamePaths[needed]; seen && existing != path {
				return nil, nil, &SonameConflictError{Soname: needed, PathA: existing, PathB: path}
			}
			sonamePaths[needed] = path

			target := g.Nodes[libID(path)]
			if target == nil {
				ef, err := elfinfo.Open(path)
				if err != nil {
					log.WithFields(logrus.Fields{"path": path, "error": err}).Debug("depgraph: failed to open resolved library")
					unresolved = append(unresolved, &UnresolvedError{Soname: needed, Dependent: n.Path})
					continue
				}
				target = &Node{
					ID:                  libID(path),
					IsRoot:              false,
					Path:                path,
					Soname:              soNameOf(ef),
					File:                ef,
					ImportingRoots:      make(map[string]bool),
					VersionedSymbols:    make(map[elfinfo.SymbolVersion]bool),
					ImportedSymbolNames: make(map[string]bool),
					color:               white,
					ancestors:           append(append([]*elfinfo.File{}, n.ancestors...), n.File),
				}
				g.Nodes[target.ID] = target
			}

			g.Edges = append(g.Edges, Edge{From: n.ID, To: target.ID, Soname: needed})

			for root := range rootSet(n) {
				target.ImportingRoots[root] = true
			}
			if n.IsRoot {
				target.ImportingRoots[n.ID] = true
			}

			for sv := range n.File.VersionedSymbols[needed] {
				target.VersionedSymbols[sv] = true
			}
			for name := range n.File.ImportedSymbolNames[needed] {
				target.ImportedSymbolNames[name] = true
			}

			if target.color == white {
				target.color = gray
				queue = append(queue, target)
			}
		}
		n.color = black
	}

	// A library reached again from a new root after it was processed has
	// not handed that root on to its own dependencies; repeat until stable.
	for changed := true; changed; {
		changed = false
		for _, e := range g.Edges {
			from, to := g.Nodes[e.From], g.Nodes[e.To]
			if from.IsRoot {
				continue
			}
			for root := range from.ImportingRoots {
				if !to.ImportingRoots[root] {
					to.ImportingRoots[root] = true
					changed = true
				}
			}
		}
	}

	return g, unresolved, nil
}

func rootSet(n *Node) map[string]bool {
	if n.IsRoot {
		return nil
	}
	return n.ImportingRoots
}

func soNameOf(f *elfinfo.File) string {
	if f.Soname != "" {
		return f.Soname
	}
	return baseName(f.Path)
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func commonArch(roots []*elfinfo.File) (string, error) {
	arch := ""
	for _, f := range roots {
		a := f.Arch()
		if arch == "" {
			arch = a
		} else if arch != a {
			return "", ErrHeterogeneousArchive
		}
	}
	return arch, nil
}
