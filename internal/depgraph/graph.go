// Package depgraph builds the transitive dependency graph over an
// archive's root binaries: every external library they (transitively) need,
// resolved to a real path on the host, with the versioned ABI symbols
// actually imported from each accumulated across all of its importers.
package depgraph

import "github.com/pypa/auditwheel-go/internal/elfinfo"

// color marks a node's visitation state during the fixed-point BFS that
// builds the graph; white/gray/black terminates correctly on cycles among
// external libraries (libc/libdl commonly depend on each other).
type color int

const (
	white color = iota
	gray
	black
)

// Node is either a root binary (from the archive payload) or an external
// library resolved to an absolute host path.
type Node struct {
	ID     string // "root:<path>" or "lib:<resolved path>"
	IsRoot bool
	Path   string
	Soname string
	File   *elfinfo.File

	// ImportingRoots is the set of root-node IDs that transitively reach
	// this node; meaningless (nil) for root nodes themselves.
	ImportingRoots map[string]bool

	// VersionedSymbols is the union, across every in-edge, of the
	// versioned symbol tokens importers reference with this node as the
	// defining library. Always nil for root nodes.
	VersionedSymbols map[elfinfo.SymbolVersion]bool

	// ImportedSymbolNames is the union, across every in-edge, of the raw
	// symbol names (versioned or not) importers reference with this node
	// as the defining library; used for policy blacklist checks.
	ImportedSymbolNames map[string]bool

	color color

	// ancestors is the transitive-parent chain discovered when this node
	// was first reached, used only to feed the resolver's legacy RPATH
	// chain-walk; it is not part of the graph's public shape.
	ancestors []*elfinfo.File
}

// Edge records that From needs soname, which Graph resolved to To.
type Edge struct {
	From   string
	To     string
	Soname string
}

// Graph is the output of Build: an adjacency map over Node and Edge, keyed
// by Node.ID.
type Graph struct {
	Nodes map[string]*Node
	Edges []Edge
	// RootArch is the policy architecture token shared by every root; set
	// only when Build succeeded, i.e. the roots were architecture-homogeneous.
	RootArch string
}

func rootID(path string) string { return "root:" + path }
func libID(path string) string  { return "lib:" + path }

// Roots returns every root node; the order is not defined.
func (g *Graph) Roots() []*Node {
	var roots []*Node
	for _, n := range g.Nodes {
		if n.IsRoot {
			roots = append(roots, n)
		}
	}
	return roots
}

// External returns every external library node.
func (g *Graph) External() []*Node {
	var ext []*Node
	for _, n := range g.Nodes {
		if !n.IsRoot {
			ext = append(ext, n)
		}
	}
	return ext
}

// OutEdges returns the edges leaving node id.
func (g *Graph) OutEdges(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}
