// Package wheel implements the zip-format wheel archive reader/writer:
// scratch-directory extraction, WHEEL/RECORD metadata parsing and
// rewriting, filename tag manipulation, and deterministic re-packing.
package wheel

import "github.com/pkg/errors"

var (
	// ErrNotAWheel is returned when a path's basename doesn't parse as a
	// wheel filename ({name}-{ver}(-{build})?-{py}-{abi}-{plat}.whl).
	ErrNotAWheel = errors.New("wheel: filename does not match the wheel naming convention")

	// ErrNoDistInfo is returned when an archive has no *.dist-info/WHEEL
	// entry.
	ErrNoDistInfo = errors.New("wheel: archive has no *.dist-info/WHEEL entry")

	// ErrNonPlatformWheel is returned by internal/audit's inspection when
	// the archive contains no ELF binaries at all; the archive's tags are
	// not consulted.
	ErrNonPlatformWheel = errors.New("wheel: archive is not platform-specific")
)
