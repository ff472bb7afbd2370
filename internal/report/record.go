// Package report builds and renders the structured inspection result
// described in spec.md §4.H: an archive's current tag, its best-matching
// policy, its external libraries grouped by whitelisted/grafted, the
// versioned symbols it imports per library, and why any higher-priority
// policy was not satisfied. Rendering to a terminal is the only place in
// the core that produces human text; every other caller, including the
// CLI's --json mode, reads Record directly.
package report

import (
	"sort"

	"github.com/pypa/auditwheel-go/internal/depgraph"
	"github.com/pypa/auditwheel-go/internal/policy"
)

// LibraryStatus is one external library the graph depends on.
type LibraryStatus struct {
	Soname      string `json:"soname"`
	Resolved    bool   `json:"resolved"`
	Path        string `json:"path,omitempty"`
	Whitelisted bool   `json:"whitelisted"`
}

// SymbolUsage lists the versioned ABI symbols imported from one library.
type SymbolUsage struct {
	Library  string   `json:"library"`
	Versions []string `json:"versions"`
}

// PolicyReason explains why one candidate policy, ranked above the overall
// result, was not satisfied.
type PolicyReason struct {
	PolicyName string   `json:"policy"`
	Priority   int      `json:"priority"`
	Reasons    []string `json:"reasons"`
}

// Record is the full structured inspection result for one archive.
type Record struct {
	ArchiveName     string          `json:"archive"`
	CurrentTag      string          `json:"current_tag"`
	OverallPolicy   string          `json:"overall_policy,omitempty"`
	GraftCandidates []string        `json:"graft_candidates,omitempty"`
	Libraries       []LibraryStatus `json:"libraries"`
	SymbolUsage     []SymbolUsage   `json:"symbol_usage,omitempty"`
	Unsatisfied     []PolicyReason  `json:"unsatisfied,omitempty"`

	// Diagnostic carries a note for an archive that was never scored —
	// currently only the NonPlatformWheel case, where there is no graph
	// to build a normal Record from.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Build assembles a Record from a resolved graph, its policy scoring, and
// any unresolved sonames depgraph.Build reported.
func Build(archiveName, currentTag string, g *depgraph.Graph, scoring policy.Scoring, unresolved []*depgraph.UnresolvedError) *Record {
	r := &Record{ArchiveName: archiveName, CurrentTag: currentTag}

	resolvedSet := map[string]bool{}
	whitelistedBy := map[string]bool{}
	if scoring.Overall != nil {
		for lib := range scoring.Overall.Policy.Whitelist {
			whitelistedBy[lib] = true
		}
	}

	for _, n := range g.External() {
		resolvedSet[n.Soname] = true
		r.Libraries = append(r.Libraries, LibraryStatus{
			Soname:      n.Soname,
			Resolved:    true,
			Path:        n.Path,
			Whitelisted: whitelistedBy[n.Soname],
		})

		var versions []string
		for sv := range n.VersionedSymbols {
			versions = append(versions, sv.String())
		}
		if len(versions) > 0 {
			sort.Strings(versions)
			r.SymbolUsage = append(r.SymbolUsage, SymbolUsage{Library: n.Soname, Versions: versions})
		}
	}
	for _, u := range unresolved {
		if resolvedSet[u.Soname] {
			continue
		}
		r.Libraries = append(r.Libraries, LibraryStatus{Soname: u.Soname, Resolved: false})
	}
	sort.Slice(r.Libraries, func(i, j int) bool { return r.Libraries[i].Soname < r.Libraries[j].Soname })
	sort.Slice(r.SymbolUsage, func(i, j int) bool { return r.SymbolUsage[i].Library < r.SymbolUsage[j].Library })

	if scoring.Overall != nil {
		r.OverallPolicy = scoring.Overall.Policy.Name
		r.GraftCandidates = append([]string{}, scoring.Overall.GraftCandidates...)
		sort.Strings(r.GraftCandidates)
	}

	for _, res := range scoring.Results {
		if scoring.Overall != nil && res.Policy.Priority <= scoring.Overall.Policy.Priority {
			continue
		}
		var reasons []string
		for _, v := range res.Violations {
			reasons = append(reasons, v.Library+" imports "+v.Actual+" > max "+v.Max+" for "+v.Group)
		}
		for _, b := range res.Blacklisted {
			reasons = append(reasons, b.Library+" imports blacklisted symbol "+b.Symbol)
		}
		for _, c := range res.GraftCandidates {
			reasons = append(reasons, c+" is not whitelisted")
		}
		if len(reasons) == 0 {
			continue
		}
		r.Unsatisfied = append(r.Unsatisfied, PolicyReason{
			PolicyName: res.Policy.Name,
			Priority:   res.Policy.Priority,
			Reasons:    reasons,
		})
	}
	sort.Slice(r.Unsatisfied, func(i, j int) bool { return r.Unsatisfied[i].Priority > r.Unsatisfied[j].Priority })

	return r
}
