package policy

import (
	"strings"

	"github.com/pypa/auditwheel-go/internal/depgraph"
)

// PolicyViolation records that a library imports a versioned symbol beyond
// a policy's allowed ceiling for that symbol's group.
type PolicyViolation struct {
	Library string
	Group   string
	Actual  string
	Max     string
}

// BlacklistedSymbol records that a whitelisted library's imported symbol
// set includes one a policy explicitly forbids.
type BlacklistedSymbol struct {
	Library string
	Symbol  string
}

// Result is one policy's scoring outcome against a graph.
type Result struct {
	Policy              *Policy
	GraftCandidates      []string
	Violations           []PolicyViolation
	Blacklisted          []BlacklistedSymbol
	SymbolCompatible     bool
	WhitelistCompatible  bool
}

// Scoring is the full scored table: every architecture-eligible policy's
// Result, plus the derived Best (highest-priority symbol-compatible),
// BestWhitelist (highest-priority whitelist-compatible), and Overall (the
// lower-priority, i.e. less strict, of the two — spec.md §4.D's
// min(symbol-compatible, whitelist-compatible)).
type Scoring struct {
	Results       []*Result
	Best          *Result
	BestWhitelist *Result
	Overall       *Result
}

// Score evaluates every architecture-eligible policy in table against g,
// per spec.md §4.D.
func Score(g *depgraph.Graph, table Table) Scoring {
	var s Scoring

	for _, p := range table {
		if p.Arch != "" && p.Arch != g.RootArch {
			continue
		}
		r := scoreOne(g, p)
		s.Results = append(s.Results, r)

		if r.SymbolCompatible && (s.Best == nil || r.Policy.Priority > s.Best.Policy.Priority) {
			s.Best = r
		}
		if r.WhitelistCompatible && (s.BestWhitelist == nil || r.Policy.Priority > s.BestWhitelist.Policy.Priority) {
			s.BestWhitelist = r
		}
	}

	s.Overall = lowerPriority(s.Best, s.BestWhitelist)
	return s
}

func lowerPriority(a, b *Result) *Result {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Policy.Priority <= b.Policy.Priority:
		return a
	default:
		return b
	}
}

func scoreOne(g *depgraph.Graph, p *Policy) *Result {
	r := &Result{Policy: p, SymbolCompatible: true, WhitelistCompatible: true}

	for _, node := range g.External() {
		if !p.Whitelist[node.Soname] {
			r.GraftCandidates = append(r.GraftCandidates, node.Soname)
			r.WhitelistCompatible = false
			continue
		}

		for sv := range node.VersionedSymbols {
			group := sv.Group
			if !sv.Parsed() {
				// An opaque token (e.g. GLIBC_PRIVATE) still names its group
				// before the first "_"; it never satisfies that group's ceiling.
				group, _, _ = strings.Cut(sv.Raw, "_")
			}
			max, ok := p.SymbolVersions[group]
			if !ok || !max.Parsed() {
				continue
			}
			if !sv.Parsed() || sv.Compare(max) > 0 {
				r.Violations = append(r.Violations, PolicyViolation{
					Library: node.Soname, Group: group, Actual: sv.String(), Max: max.String(),
				})
				r.SymbolCompatible = false
			}
		}

		blacklist := p.Blacklist[node.Soname]
		for name := range node.ImportedSymbolNames {
			if blacklist[name] {
				r.Blacklisted = append(r.Blacklisted, BlacklistedSymbol{Library: node.Soname, Symbol: name})
				r.SymbolCompatible = false
			}
		}
	}
	return r
}
