package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/pypa/auditwheel-go/internal/depgraph"
	"github.com/pypa/auditwheel-go/internal/elfinfo"
	"github.com/pypa/auditwheel-go/internal/policy"
)

func extNode(soname string, versions ...string) *depgraph.Node {
	n := &depgraph.Node{
		ID:               "lib:" + soname,
		Soname:           soname,
		Path:             "/usr/lib/" + soname,
		VersionedSymbols: map[elfinfo.SymbolVersion]bool{},
	}
	for _, v := range versions {
		n.VersionedSymbols[elfinfo.ParseSymbolVersion(v)] = true
	}
	return n
}

func graphOf(nodes ...*depgraph.Node) *depgraph.Graph {
	g := &depgraph.Graph{Nodes: map[string]*depgraph.Node{}}
	for _, n := range nodes {
		g.Nodes[n.ID] = n
	}
	return g
}

func TestBuildMarksWhitelistAndGraftCandidates(t *testing.T) {
	libc := extNode("libc.so.6", "GLIBC_2.17")
	libfoo := extNode("libfoo.so.1")
	g := graphOf(libc, libfoo)

	pol := &policy.Policy{Name: "manylinux_2_17_x86_64", Priority: 10, Whitelist: map[string]bool{"libc.so.6": true}}
	scoring := policy.Scoring{
		Results: []*policy.Result{{Policy: pol, GraftCandidates: []string{"libfoo.so.1"}, SymbolCompatible: true}},
		Overall: &policy.Result{Policy: pol, GraftCandidates: []string{"libfoo.so.1"}, SymbolCompatible: true},
	}

	r := Build("mypkg-1.0-cp311-cp311-linux_x86_64.whl", "linux_x86_64", g, scoring, nil)
	assert.Equal(t, r.OverallPolicy, "manylinux_2_17_x86_64")
	assert.Assert(t, is.Len(r.Libraries, 2))
	assert.Assert(t, is.Contains(r.GraftCandidates, "libfoo.so.1"))

	for _, lib := range r.Libraries {
		if lib.Soname == "libc.so.6" {
			assert.Assert(t, lib.Whitelisted)
		}
		if lib.Soname == "libfoo.so.1" {
			assert.Assert(t, !lib.Whitelisted)
		}
	}

	assert.Assert(t, is.Len(r.SymbolUsage, 1))
	assert.Equal(t, r.SymbolUsage[0].Library, "libc.so.6")
}

func TestBuildIncludesUnresolvedLibraries(t *testing.T) {
	g := graphOf()
	scoring := policy.Scoring{}
	unresolved := []*depgraph.UnresolvedError{{Soname: "libghost.so.1", Dependent: "/root/ext.so"}}

	r := Build("mypkg.whl", "linux_x86_64", g, scoring, unresolved)
	assert.Assert(t, is.Len(r.Libraries, 1))
	assert.Assert(t, !r.Libraries[0].Resolved)
	assert.Equal(t, r.OverallPolicy, "")
}

func TestBuildReportsUnsatisfiedHigherPolicies(t *testing.T) {
	libfoo := extNode("libc.so.6", "GLIBC_2.29")
	g := graphOf(libfoo)

	low := &policy.Policy{Name: "manylinux_2_17_x86_64", Priority: 10, Whitelist: map[string]bool{"libc.so.6": true}}
	high := &policy.Policy{Name: "manylinux_2_28_x86_64", Priority: 20, Whitelist: map[string]bool{"libc.so.6": true}}

	scoring := policy.Scoring{
		Results: []*policy.Result{
			{Policy: high, Violations: []policy.PolicyViolation{{Library: "libc.so.6", Group: "GLIBC", Actual: "GLIBC_2.29", Max: "GLIBC_2.17"}}},
			{Policy: low, SymbolCompatible: true, WhitelistCompatible: true},
		},
		Overall: &policy.Result{Policy: low, SymbolCompatible: true, WhitelistCompatible: true},
	}

	r := Build("mypkg.whl", "linux_x86_64", g, scoring, nil)
	assert.Assert(t, is.Len(r.Unsatisfied, 1))
	assert.Equal(t, r.Unsatisfied[0].PolicyName, "manylinux_2_28_x86_64")
	assert.Assert(t, is.Len(r.Unsatisfied[0].Reasons, 1))
}

func TestRenderJSONRoundTrips(t *testing.T) {
	r := &Record{ArchiveName: "mypkg.whl", CurrentTag: "linux_x86_64", OverallPolicy: "manylinux_2_17_x86_64"}
	var buf bytes.Buffer
	assert.NilError(t, RenderJSON(&buf, r))

	var got Record
	assert.NilError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, got.ArchiveName, "mypkg.whl")
}

func TestRenderPlainTextHasNoColorCodes(t *testing.T) {
	r := &Record{
		ArchiveName: "mypkg.whl", CurrentTag: "linux_x86_64", OverallPolicy: "manylinux_2_17_x86_64",
		Libraries: []LibraryStatus{{Soname: "libc.so.6", Resolved: true, Whitelisted: true, Path: "/lib/libc.so.6"}},
	}
	var buf bytes.Buffer
	Render(&buf, r)
	assert.Assert(t, is.Contains(buf.String(), "libc.so.6"))
	assert.Assert(t, is.Contains(buf.String(), "manylinux_2_17_x86_64"))
	assert.Assert(t, !bytes.Contains(buf.Bytes(), []byte("\x1b[")))
}
