// Package resolve implements the portion of the Linux dynamic linker's
// library search algorithm auditwheel-go needs to turn a binary's NEEDED
// list into real paths on the build host: $ORIGIN/$LIB/$PLATFORM token
// expansion, RPATH/RUNPATH precedence, LD_LIBRARY_PATH, ld.so.cache, and
// the ld.so.conf fallback path list.
package resolve

import "github.com/pkg/errors"

var (
	// ErrLibraryNotFound describes a NEEDED entry that cannot be located
	// anywhere in the search order. Resolver.Resolve does not return it;
	// it reports that case with ok == false.
	ErrLibraryNotFound = errors.New("resolve: library not found in search path")

	// ErrUnsupportedArch describes an architecture with no ld.so.cache
	// flag mapping. No function in this package returns it: LoadCache
	// checks only the ELF/libc6 flag bits on such architectures.
	ErrUnsupportedArch = errors.New("resolve: unsupported architecture")
)
