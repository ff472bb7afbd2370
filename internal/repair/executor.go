package repair

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pypa/auditwheel-go/internal/planner"
)

// Executor carries out a planner.Plan on a scratch copy of a wheel's
// payload, invoking the given patchelf-equivalent and (optionally) strip
// binaries.
type Executor struct {
	PatcherPath string
	StripPath   string // "" disables stripping entirely
	Log         *logrus.Entry
}

// NewExecutor builds an Executor; log may be nil, in which case a default
// logrus entry is used.
func NewExecutor(patcherPath, stripPath string, log *logrus.Entry) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{PatcherPath: patcherPath, StripPath: stripPath, Log: log}
}

// Run creates the graft directory, copies each grafted library into it,
// optionally strips the copies, then patches every affected binary in
// leaves-first topological order. It never touches the original input
// archive — scratchDir is assumed to already be a disposable extraction.
func (e *Executor) Run(ctx context.Context, scratchDir string, p *planner.Plan) error {
	graftDirAbs := filepath.Join(scratchDir, p.GraftDir)

	if len(p.Grafts) > 0 {
		if err := os.MkdirAll(graftDirAbs, 0o755); err != nil {
			return errors.Wrap(err, "repair: create graft directory")
		}
	}

	for _, ga := range p.Grafts {
		dest := filepath.Join(graftDirAbs, ga.DestName)
		if err := copyFile(ga.SourcePath, dest); err != nil {
			return errors.Wrapf(err, "repair: copy %s", ga.SourcePath)
		}
		if err := os.Chmod(dest, 0o755); err != nil {
			return errors.Wrapf(err, "repair: chmod %s", dest)
		}
		if e.StripPath != "" {
			if err := InvokeStrip(ctx, e.StripPath, dest); err != nil {
				e.Log.WithError(err).Warn("repair: strip failed, keeping unstripped copy")
			}
		}
	}

	ordered, err := TopoOrder(p)
	if err != nil {
		return err
	}
	for _, rw := range ordered {
		if err := InvokePatcher(ctx, e.PatcherPath, rw); err != nil {
			return err
		}
		e.Log.WithField("binary", rw.BinaryPath).Debug("repair: patched")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// TopoOrder returns p.Rewrites in leaves-first dependency order: a grafted
// copy whose own DT_SONAME is being reset is ordered before any rewrite
// that references its new name in a replace-needed action, per spec.md
// §5's patching-order guarantee. Ties are broken by BinaryPath for
// determinism.
func TopoOrder(p *planner.Plan) ([]planner.RewriteAction, error) {
	byPath := make(map[string]planner.RewriteAction, len(p.Rewrites))
	sonameOwner := make(map[string]string, len(p.Rewrites))
	for _, rw := range p.Rewrites {
		byPath[rw.BinaryPath] = rw
		if rw.SetSoname != "" {
			sonameOwner[rw.SetSoname] = rw.BinaryPath
		}
	}

	adj := map[string][]string{}
	indeg := map[string]int{}
	for _, rw := range p.Rewrites {
		indeg[rw.BinaryPath] = 0
	}
	for _, rw := range p.Rewrites {
		seen := map[string]bool{}
		for _, newName := range rw.ReplaceNeeded {
			prereq, ok := sonameOwner[newName]
			if !ok || prereq == rw.BinaryPath || seen[prereq] {
				continue
			}
			seen[prereq] = true
			adj[prereq] = append(adj[prereq], rw.BinaryPath)
			indeg[rw.BinaryPath]++
		}
	}

	var queue []string
	for path, d := range indeg {
		if d == 0 {
			queue = append(queue, path)
		}
	}

	var order []string
	for len(queue) > 0 {
		sort.Strings(queue)
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, dep := range adj[cur] {
			indeg[dep]--
			if indeg[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(p.Rewrites) {
		return nil, ErrCycle
	}
	result := make([]planner.RewriteAction, len(order))
	for i, path := range order {
		result[i] = byPath[path]
	}
	return result, nil
}
