package wheel

import (
	"strings"

	"github.com/pypa/auditwheel-go/internal/elfinfo"
)

// Filename is a parsed wheel filename:
// {distribution}-{version}(-{build})?-{python}-{abi}-{platform}.whl
type Filename struct {
	Distribution string
	Version      string
	Build        string // "" if absent
	PyTag        string
	ABITag       string
	PlatTag      string
}

// ParseFilename splits base (no directory component) into its wheel name
// segments.
func ParseFilename(base string) (Filename, error) {
	name := strings.TrimSuffix(base, ".whl")
	if name == base {
		return Filename{}, ErrNotAWheel
	}
	parts := strings.Split(name, "-")
	if len(parts) < 5 || len(parts) > 6 {
		return Filename{}, ErrNotAWheel
	}

	f := Filename{Distribution: parts[0], Version: parts[1]}
	idx := 2
	if len(parts) == 6 {
		f.Build = parts[2]
		idx = 3
	}
	f.PyTag, f.ABITag, f.PlatTag = parts[idx], parts[idx+1], parts[idx+2]
	return f, nil
}

// legacyAliases maps a manylinux platform tag to the alias tags a repaired
// wheel should additionally carry, per spec.md §6.
var legacyAliases = map[string]string{
	"manylinux_2_5":  "manylinux1",
	"manylinux_2_12": "manylinux2010",
	"manylinux_2_17": "manylinux2014",
}

// LegacyAlias returns the pre-PEP-600 alias for a manylinux_{maj}_{min}
// platform tag base (without the trailing _{arch}), or "" if it has none.
func LegacyAlias(base string) string {
	return legacyAliases[base]
}

// WithPlatform returns f with only PlatTag replaced; Build and every other
// segment are kept as they were.
func (f Filename) WithPlatform(plat string) Filename {
	f.PlatTag = plat
	return f
}

// String renders f back into a wheel filename.
func (f Filename) String() string {
	segs := []string{f.Distribution, f.Version}
	if f.Build != "" {
		segs = append(segs, f.Build)
	}
	segs = append(segs, f.PyTag, f.ABITag, f.PlatTag)
	return strings.Join(segs, "-") + ".whl"
}

// SplitPlatformBaseArch splits a platform tag like "manylinux_2_17_x86_64"
// into its version base "manylinux_2_17" and arch suffix "x86_64".
func SplitPlatformBaseArch(plat string) (base, arch string) {
	for _, tok := range elfinfo.ArchTokens {
		suffix := "_" + tok
		if strings.HasSuffix(plat, suffix) {
			return strings.TrimSuffix(plat, suffix), tok
		}
	}
	return plat, ""
}
