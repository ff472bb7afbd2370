package audit

import (
	"context"
	"debug/elf"
	"errors"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pypa/auditwheel-go/internal/config"
	"github.com/pypa/auditwheel-go/internal/depgraph"
	"github.com/pypa/auditwheel-go/internal/elfinfo"
	"github.com/pypa/auditwheel-go/internal/planner"
	"github.com/pypa/auditwheel-go/internal/policy"
	"github.com/pypa/auditwheel-go/internal/repair"
	"github.com/pypa/auditwheel-go/internal/report"
	"github.com/pypa/auditwheel-go/internal/resolve"
	"github.com/pypa/auditwheel-go/internal/wheel"
)

// Inspection is the result of loading an archive, opening every root
// binary, and building its dependency graph — the common prefix of both
// Show and Repair.
type Inspection struct {
	Archive *wheel.Archive
	Graph   *depgraph.Graph
	Scoring policy.Scoring
}

// inspect extracts path into scratchDir, opens every ELF root it carries,
// resolves their transitive dependencies, and scores the result against
// table. unresolved is returned rather than treated as fatal, per spec.md
// §7's "inspection records it; repair aborts" split.
func inspect(archivePath, scratchDir string, table policy.Table, cfg config.Config, log *logrus.Entry) (*Inspection, []*depgraph.UnresolvedError, error) {
	a, err := wheel.Extract(archivePath, scratchDir)
	if err != nil {
		return nil, nil, err
	}
	if len(a.ELFPaths) == 0 {
		return &Inspection{Archive: a}, nil, wheel.ErrNonPlatformWheel
	}

	var roots []*elfinfo.File
	for _, rel := range a.ELFPaths {
		f, err := elfinfo.Open(filepath.Join(scratchDir, rel))
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, f)
	}

	goarch := roots[0].Arch()
	searchCfg := resolve.NewSearchConfig(joinLDPath(cfg.LDLibraryPath), goarch)
	libDir := "lib"
	if roots[0].Class == elf.ELFCLASS64 {
		libDir = "lib64"
	}
	// The $PLATFORM linker-search token is always the dependent's own
	// arch (AT_PLATFORM at runtime), never the manylinux policy tag cfg
	// carries — the latter only supplies --plat's default.
	resolver := resolve.NewResolver(searchCfg, libDir, goarch)

	for _, f := range roots {
		if f.Interpreter == "" {
			continue
		}
		if flavor, version, err := resolve.DetectLibc(f.Interpreter, searchCfg.Cache); err == nil {
			f.SetLibcFlavor(flavor, version)
		}
	}

	g, unresolved, err := depgraph.Build(roots, resolver, log)
	if err != nil {
		return nil, nil, err
	}

	scoring := policy.Score(g, table)
	return &Inspection{Archive: a, Graph: g, Scoring: scoring}, unresolved, nil
}

func joinLDPath(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	joined := paths[0]
	for _, p := range paths[1:] {
		joined += string(os.PathListSeparator) + p
	}
	return joined
}

// Show runs the inspection described in spec.md §4.H and returns the
// resulting record. It never mutates archivePath or any extracted file.
func Show(archivePath string, table policy.Table, cfg config.Config, log *logrus.Entry) (*report.Record, error) {
	scratchDir, err := wheel.NewScratchDir("")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratchDir)

	insp, unresolved, err := inspect(archivePath, scratchDir, table, cfg, log)
	if errors.Is(err, wheel.ErrNonPlatformWheel) {
		return nonPlatformRecord(archivePath, insp.Archive), nil
	}
	if err != nil {
		return nil, err
	}

	currentTag := insp.Archive.Filename.PlatTag
	rec := report.Build(filepath.Base(archivePath), currentTag, insp.Graph, insp.Scoring, unresolved)
	return rec, nil
}

// nonPlatformRecord is the Show/Repair result for an archive with no ELF
// binaries at all (spec.md §7's NonPlatformWheel, §8 scenario 6): there is
// no graph to score, so the record carries only the archive's current tag
// and a diagnostic instead of policy/library data.
func nonPlatformRecord(archivePath string, a *wheel.Archive) *report.Record {
	return &report.Record{
		ArchiveName: filepath.Base(archivePath),
		CurrentTag:  a.Filename.PlatTag,
		Diagnostic:  "NonPlatformWheel: archive contains no ELF binaries",
	}
}

// RepairOptions holds the user-facing knobs spec.md §7 supplements add on
// top of the core repair operation.
type RepairOptions struct {
	TargetPolicy string
	Exclude      []string
	OnlyPlat     bool
	Strip        bool
	PatcherPath  string
	StripPath    string
	OutputDir    string
}

// Repair rewrites the archive at archivePath to satisfy opts.TargetPolicy,
// writing the repaired wheel into opts.OutputDir and returning its path
// plus the post-repair inspection record. PatcherPath must name a
// patchelf-compatible binary; StripPath is only invoked when opts.Strip is
// set.
func Repair(ctx context.Context, archivePath string, table policy.Table, opts RepairOptions, cfg config.Config, log *logrus.Entry) (string, *report.Record, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	target := table.ByName(opts.TargetPolicy)
	if target == nil {
		return "", nil, errorsWrapPolicyNotFound(opts.TargetPolicy)
	}

	scratchDir, err := wheel.NewScratchDir("")
	if err != nil {
		return "", nil, err
	}
	defer os.RemoveAll(scratchDir)

	insp, unresolved, err := inspect(archivePath, scratchDir, table, cfg, log)
	if errors.Is(err, wheel.ErrNonPlatformWheel) {
		// A pure archive gets an empty plan and a tag-only pass (spec.md
		// §4.F.6); since it carries no platform tag to rewrite in the
		// first place, that pass is simply a no-op (§8 scenario 6).
		return archivePath, nonPlatformRecord(archivePath, insp.Archive), nil
	}
	if err != nil {
		return "", nil, err
	}
	if target.Arch != "" && target.Arch != insp.Graph.RootArch {
		return "", nil, ErrPolicyIncompatible
	}

	exclude := make(map[string]bool, len(opts.Exclude))
	for _, soname := range opts.Exclude {
		exclude[soname] = true
	}
	for _, u := range unresolved {
		if !exclude[u.Soname] && !target.Whitelist[u.Soname] {
			return "", nil, ErrPolicyIncompatible
		}
	}

	result := scoreAgainst(insp.Graph, target)
	if len(result.Violations) > 0 || len(result.Blacklisted) > 0 {
		return "", nil, ErrPolicyIncompatible
	}

	plan, err := planner.Build(insp.Graph, scratchDir, insp.Archive.Filename.Distribution, target, exclude, log)
	if err != nil {
		return "", nil, err
	}

	stripPath := ""
	if opts.Strip {
		stripPath = opts.StripPath
	}
	executor := repair.NewExecutor(opts.PatcherPath, stripPath, log)
	if err := executor.Run(ctx, scratchDir, plan); err != nil {
		return "", nil, err
	}

	aliases := legacyAliasesFor(target)
	platTag := wheel.BuildPlatTag(target.Name, aliases, opts.OnlyPlat)

	if err := insp.Archive.RewriteWheelTags(platTag); err != nil {
		return "", nil, err
	}
	if err := insp.Archive.RecomputeRecord(); err != nil {
		return "", nil, err
	}

	newName := insp.Archive.Filename.WithPlatform(platTag)
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(archivePath)
	}
	outputPath := filepath.Join(outDir, newName.String())
	if err := insp.Archive.Repack(outputPath, cfg.SourceDateEpoch); err != nil {
		return "", nil, err
	}

	rescoring := policy.Score(insp.Graph, table)
	rec := report.Build(newName.String(), platTag, insp.Graph, rescoring, nil)
	return outputPath, rec, nil
}

func scoreAgainst(g *depgraph.Graph, target *policy.Policy) *policy.Result {
	scoring := policy.Score(g, policy.Table{target})
	if scoring.Overall != nil {
		return scoring.Overall
	}
	return &policy.Result{Policy: target}
}

// legacyAliasesFor returns the pre-PEP-600 aliases for p's manylinux
// version base, or nil if p names no such base (musllinux, "linux", or an
// already-legacy tag have none).
func legacyAliasesFor(p *policy.Policy) []string {
	base, arch := wheel.SplitPlatformBaseArch(p.Name)
	alias := wheel.LegacyAlias(base)
	if alias == "" || arch == "" {
		return nil
	}
	return []string{alias + "_" + arch}
}

func errorsWrapPolicyNotFound(name string) error {
	return &policyNotFoundError{name: name}
}

type policyNotFoundError struct{ name string }

func (e *policyNotFoundError) Error() string { return "audit: policy " + e.name + " not found" }
func (e *policyNotFoundError) Unwrap() error { return ErrPolicyNotFound }
