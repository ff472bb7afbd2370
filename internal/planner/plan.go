package planner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pypa/auditwheel-go/internal/depgraph"
	"github.com/pypa/auditwheel-go/internal/policy"
)

// GraftAction copies one external library into the archive's graft
// directory under a new, collision-free name.
type GraftAction struct {
	SourcePath string // absolute host path of the original library
	Soname     string // its original DT_SONAME; the copy's is reset to DestName by its RewriteAction
	DestName   string // new filename within the graft directory
}

// RewriteAction patches one binary already in (or about to be in) the
// archive: a grafted copy has its own DT_SONAME reset to its new filename,
// DT_NEEDED entries referring to grafted libraries are replaced with their
// new filenames, and DT_RUNPATH is recomputed to reach the graft directory
// via an $ORIGIN-relative path.
type RewriteAction struct {
	BinaryPath    string            // absolute path of the binary to patch
	SetSoname     string            // "" unless BinaryPath is itself a grafted copy
	ReplaceNeeded map[string]string // old soname -> new graft filename
	NewRunPath    []string          // full replacement RUNPATH entry list; nil if unchanged
}

// Plan is the full set of actions internal/repair must carry out to bring
// an archive into compliance with a target policy.
type Plan struct {
	GraftDir string // e.g. "mypkg.libs", relative to the archive root
	Grafts   []GraftAction
	Rewrites []RewriteAction
}

// Build computes a Plan for graph g against target policy, grafting every
// external node not in target's whitelist and not in exclude. scratchDir is
// the extracted wheel's root on disk (used only to compute $ORIGIN-relative
// paths); distName names the graft directory as "{distName}.libs".
func Build(g *depgraph.Graph, scratchDir, distName string, target *policy.Policy, exclude map[string]bool, log *logrus.Entry) (*Plan, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	p := &Plan{GraftDir: distName + ".libs"}
	graftDirAbs := filepath.Join(scratchDir, p.GraftDir)

	destByID := map[string]string{} // node.ID -> absolute final path
	for _, n := range g.Roots() {
		destByID[n.ID] = n.Path
	}

	var toGraft []*depgraph.Node
	for _, n := range g.External() {
		if target.Whitelist[n.Soname] || exclude[n.Soname] {
			destByID[n.ID] = n.Path // stays at its host location, untouched
			continue
		}
		toGraft = append(toGraft, n)
	}
	sort.Slice(toGraft, func(i, j int) bool { return toGraft[i].Path < toGraft[j].Path })

	usedNames := map[string]string{} // destName -> SourcePath, to catch collisions
	for _, n := range toGraft {
		data, err := os.ReadFile(n.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "planner: read %s for grafting", n.Path)
		}
		destName, err := graftName(n.Soname, data, usedNames)
		if err != nil {
			return nil, err
		}
		usedNames[destName] = n.Path

		p.Grafts = append(p.Grafts, GraftAction{
			SourcePath: n.Path,
			Soname:     n.Soname,
			DestName:   destName,
		})
		destByID[n.ID] = filepath.Join(graftDirAbs, destName)
		log.WithFields(logrus.Fields{"soname": n.Soname, "dest": destName}).Info("planner: graft")
	}

	for _, n := range append(g.Roots(), toGraft...) {
		binaryPath := destByID[n.ID]

		rw := RewriteAction{BinaryPath: binaryPath}
		if newName, ok := destNameFor(p, n.Path); ok {
			rw.SetSoname = newName
		}

		replace := map[string]string{}
		for _, e := range g.OutEdges(n.ID) {
			tn := g.Nodes[e.To]
			if newName, ok := destNameFor(p, tn.Path); ok {
				replace[e.Soname] = newName
			}
		}

		if len(replace) == 0 && rw.SetSoname == "" {
			continue
		}

		if len(replace) > 0 {
			rel, err := filepath.Rel(filepath.Dir(binaryPath), graftDirAbs)
			if err != nil {
				return nil, errors.Wrapf(err, "planner: relative runpath for %s", binaryPath)
			}
			originEntry := "$ORIGIN"
			if rel != "." {
				originEntry = "$ORIGIN/" + filepath.ToSlash(rel)
			}

			runpath := []string{originEntry}
			if n.File != nil {
				for _, entry := range n.File.RunPath {
					if !strings.HasPrefix(entry, "/") && entry != originEntry {
						runpath = append(runpath, entry)
					}
				}
			}
			rw.ReplaceNeeded = replace
			rw.NewRunPath = runpath
		}

		p.Rewrites = append(p.Rewrites, rw)
	}

	sort.Slice(p.Rewrites, func(i, j int) bool { return p.Rewrites[i].BinaryPath < p.Rewrites[j].BinaryPath })
	return p, nil
}

func destNameFor(p *Plan, sourcePath string) (string, bool) {
	for _, g := range p.Grafts {
		if g.SourcePath == sourcePath {
			return g.DestName, true
		}
	}
	return "", false
}

// graftName derives {stem}-{hash8}.so[.{suffix}] from soname and data,
// widening the hash to 16 then the full digest if a collision with a
// different source is found — real-world SHA-256 prefix collisions do not
// happen in practice, but the widening keeps Build total rather than
// silently overwriting one graft with another.
func graftName(soname string, data []byte, used map[string]string) (string, error) {
	stem, suffix := splitSoname(soname)
	full := digest.FromBytes(data).Encoded()

	for _, n := range []int{8, 16, len(full)} {
		name := stem + "-" + full[:n] + ".so"
		if suffix != "" {
			name += "." + suffix
		}
		if _, taken := used[name]; !taken {
			return name, nil
		}
	}
	return "", errors.Wrapf(ErrSonameConflict, "soname %s", soname)
}

// splitSoname splits "libfoo.so.1.2.3" into stem "libfoo" and suffix
// "1.2.3"; a soname with no ".so" component (unusual, but not impossible)
// is returned whole as the stem with an empty suffix.
func splitSoname(soname string) (stem, suffix string) {
	idx := strings.Index(soname, ".so")
	if idx < 0 {
		return soname, ""
	}
	stem = soname[:idx]
	rest := strings.TrimPrefix(soname[idx+len(".so"):], ".")
	return stem, rest
}
