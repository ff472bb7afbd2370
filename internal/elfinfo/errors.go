package elfinfo

import "github.com/pkg/errors"

// Sentinel errors returned by Open. Callers distinguish them with
// errors.Is. internal/audit does not skip a file that fails to open: the
// error aborts both show and repair.
var (
	// ErrNotELF is returned when the magic bytes do not match ELF.
	ErrNotELF = errors.New("elfinfo: not an ELF file")

	// ErrUnsupportedELF is returned when the class/machine combination is
	// not one this package knows how to map to a policy architecture
	// token.
	ErrUnsupportedELF = errors.New("elfinfo: unsupported ELF class/machine")

	// ErrMalformedELF is returned when the file claims to be ELF but is
	// truncated or otherwise fails validation while reading dynamic
	// entries or version tables.
	ErrMalformedELF = errors.New("elfinfo: malformed ELF file")
)
