package resolve

import (
	"os"
	"path/filepath"

	"github.com/pypa/auditwheel-go/internal/elfinfo"
)

// SearchConfig is the explicit (never package-global) set of knobs that
// change how Resolver.Resolve searches for a NEEDED library. Tests pin
// LDLibraryPath/Cache directly instead of mutating the environment or
// reading /etc/ld.so.cache.
type SearchConfig struct {
	LDLibraryPath    []string
	UseLDLibraryPath bool
	ChainWalkRPath   bool
	ConfPaths        []string
	Cache            *Cache
}

// NewSearchConfig builds a SearchConfig from the live environment: the
// process's LD_LIBRARY_PATH, /etc/ld.so.conf (with includes), and
// /etc/ld.so.cache for goarch (loaded once, reused across Resolve calls).
func NewSearchConfig(ldLibraryPath string, goarch string) SearchConfig {
	cfg := SearchConfig{
		UseLDLibraryPath: ldLibraryPath != "",
		ChainWalkRPath:   true,
		ConfPaths:        ReadLdSoConf("/etc/ld.so.conf", nil),
	}
	if ldLibraryPath != "" {
		cfg.LDLibraryPath = filepath.SplitList(ldLibraryPath)
	}
	if cache, err := LoadCache("/etc/ld.so.cache", goarch, OSVersion()); err == nil {
		cfg.Cache = cache
	}
	return cfg
}

// Resolver implements the Linux dynamic linker's NEEDED-library search
// order (man ld.so(8)) against a fixed SearchConfig.
type Resolver struct {
	cfg      SearchConfig
	libDir   string // "lib64" for 64-bit ELF classes, "lib" otherwise
	platform string
}

// NewResolver builds a Resolver. libDir and platform feed $LIB/$PLATFORM
// token expansion in RPATH/RUNPATH entries.
func NewResolver(cfg SearchConfig, libDir, platform string) *Resolver {
	return &Resolver{cfg: cfg, libDir: libDir, platform: platform}
}

// Resolve searches for soname, a direct dependency of dependent, following
// the order: literal path (if soname contains a slash); dependent's own
// RUNPATH; if RUNPATH is empty, RPATH chain-walked from dependent up
// through ancestors (gated by ChainWalkRPath); LD_LIBRARY_PATH (gated by
// UseLDLibraryPath), which therefore comes after both RUNPATH and RPATH;
// ld.so.cache; ld.so.conf paths; the default trusted directories.
func (r *Resolver) Resolve(dependent *elfinfo.File, soname string, ancestors []*elfinfo.File) (string, bool) {
	if filepath.Base(soname) != soname {
		if fileExists(soname) {
			return soname, true
		}
		return "", false
	}

	if len(dependent.RunPath) > 0 {
		if p, ok := r.searchDirs(dependent.RunPath, dependent, soname); ok {
			return p, true
		}
		// A direct RUNPATH suppresses RPATH chain-walking for this
		// dependency, but LD_LIBRARY_PATH and the cache still apply below.
	} else if r.cfg.ChainWalkRPath {
		chain := append([]*elfinfo.File{dependent}, ancestors...)
		for _, link := range chain {
			if p, ok := r.searchDirs(link.RPath, link, soname); ok {
				return p, true
			}
		}
	}

	if r.cfg.UseLDLibraryPath {
		if p, ok := r.searchPlainDirs(r.cfg.LDLibraryPath, dependent, soname); ok {
			return p, true
		}
	}

	if r.cfg.Cache != nil {
		if p := r.cfg.Cache.Path(soname); p != "" {
			return p, true
		}
	}

	if p, ok := r.searchPlainDirs(r.cfg.ConfPaths, dependent, soname); ok {
		return p, true
	}
	if p, ok := r.searchPlainDirs(defaultTrustedPaths, dependent, soname); ok {
		return p, true
	}
	return "", false
}

func (r *Resolver) searchDirs(dirs []string, owner *elfinfo.File, soname string) (string, bool) {
	origin := filepath.Dir(owner.Path)
	expanded := make([]string, len(dirs))
	for i, d := range dirs {
		expanded[i] = ExpandTokens(d, origin, r.libDir, r.platform)
	}
	return r.searchPlainDirs(expanded, owner, soname)
}

// searchPlainDirs returns the first file named soname under dirs whose ELF
// class and machine match dependent (spec.md §4.B): a multilib host's
// default trusted paths list 32-bit and 64-bit directories together, so an
// unfiltered name match can hand a 64-bit root a 32-bit library.
func (r *Resolver) searchPlainDirs(dirs []string, dependent *elfinfo.File, soname string) (string, bool) {
	for _, d := range dirs {
		candidate := filepath.Join(d, soname)
		if !fileExists(candidate) {
			continue
		}
		class, machine, err := elfinfo.Peek(candidate)
		if err != nil || class != dependent.Class || machine != dependent.Machine {
			continue
		}
		return candidate, true
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
