// Package elfinfo parses a single Linux ELF shared object or executable and
// exposes the subset of its dynamic section that the rest of auditwheel-go
// needs: the soname, the needed-library list, the search-path hints baked
// into the binary, and the versioned ABI symbols it imports.
//
// Parsing never mutates the underlying file and never loads it into memory
// in full; debug/elf seeks to the offsets it needs, and this package only
// reads the sections it cares about (.dynamic, .dynsym, .gnu.version_r,
// .gnu.version_d).
package elfinfo

import (
	"debug/elf"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// LibcFlavor identifies which C library flavor a binary was linked
// against, inferred from its program interpreter.
type LibcFlavor int

const (
	LibcUnknown LibcFlavor = iota
	LibcGlibc
	LibcMusl
)

func (f LibcFlavor) String() string {
	switch f {
	case LibcGlibc:
		return "glibc"
	case LibcMusl:
		return "musl"
	default:
		return "unknown"
	}
}

// File is an immutable record of everything auditwheel-go needs from one
// parsed ELF binary. It is produced once by Open and never modified
// afterward, except for LibcFlavor/LibcVersion which the dynamic resolver
// fills in once it has located and probed the binary's libc — that requires
// filesystem access beyond what a pure parse can determine, so it is
// recorded as a post-parse annotation rather than folded into Open.
type File struct {
	Path    string
	Class   elf.Class
	Machine elf.Machine
	Data    elf.Data

	Soname      string // empty if the binary has no DT_SONAME
	Needed      []string
	RPath       []string
	RunPath     []string
	Interpreter string // empty for shared objects with no PT_INTERP

	// VersionedSymbols maps the soname of the library that defines a
	// version to the set of versioned symbol tokens imported from it.
	// Per spec, this is exactly the { (lib, sym) } pairs where lib is the
	// version's defining object, never that library's full exported set.
	VersionedSymbols map[string]map[SymbolVersion]bool

	// ImportedSymbolNames maps a needed library's soname to the set of
	// undefined symbol names resolved to it, versioned or not. Policy
	// blacklist checks (spec.md §4.D.3) match on the symbol name itself,
	// not its version, so this is tracked separately from VersionedSymbols.
	ImportedSymbolNames map[string]map[string]bool

	// UnversionedUndefined holds undefined symbol names with no version
	// attached; they cannot constrain a policy's symbol-version check.
	UnversionedUndefined map[string]bool

	LibcFlavor  LibcFlavor
	LibcVersion string
}

// SetLibcFlavor records the libc flavor/version the dynamic resolver
// determined for this binary. A later call overwrites the values of an
// earlier one; callers only do this for root binaries and only once,
// immediately after Open.
func (f *File) SetLibcFlavor(flavor LibcFlavor, version string) {
	f.LibcFlavor = flavor
	f.LibcVersion = version
}

// Open parses path as an ELF file, returning ErrNotELF if the magic bytes
// mismatch, ErrUnsupportedELF if the class/machine pair is not one Arch
// knows how to map to a policy architecture token, and ErrMalformedELF if
// the file is truncated or its dynamic/version tables cannot be read.
func Open(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotELF, err.Error())
		}
		return nil, errors.Wrap(err, "elfinfo: stat")
	}

	raw, err := elf.Open(path)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	f := &File{
		Path:    path,
		Class:   raw.Class,
		Machine: raw.Machine,
		Data:    raw.Data,
	}

	if _, err := archToken(f.Machine, f.Class, f.Data); err != nil {
		raw.Close()
		return nil, err
	}

	if sonames, err := raw.DynString(elf.DT_SONAME); err == nil && len(sonames) > 0 {
		f.Soname = sonames[0]
	}

	needed, err := raw.ImportedLibraries()
	if err != nil {
		raw.Close()
		return nil, errors.Wrap(ErrMalformedELF, err.Error())
	}
	f.Needed = needed

	if rpaths, err := raw.DynString(elf.DT_RPATH); err == nil {
		f.RPath = splitColonList(rpaths)
	}
	if runpaths, err := raw.DynString(elf.DT_RUNPATH); err == nil {
		f.RunPath = splitColonList(runpaths)
	}

	for _, p := range raw.Progs {
		if p.Type == elf.PT_INTERP {
			data := make([]byte, p.Filesz)
			if _, err := p.ReadAt(data, 0); err == nil {
				f.Interpreter = trimNulString(data)
			}
			break
		}
	}

	if err := f.loadVersionedSymbols(raw); err != nil {
		raw.Close()
		return nil, errors.Wrap(ErrMalformedELF, err.Error())
	}

	raw.Close()
	return f, nil
}

// Peek reads just the ELF class/machine pair at path, without parsing its
// dynamic section. The resolver uses this to reject a same-named candidate
// that exists on disk but was built for a different class/machine than the
// dependent that needs it, before accepting it as a resolution (spec.md
// §4.B: "search stops at the first file whose ELF class and machine match
// the dependent").
func Peek(path string) (elf.Class, elf.Machine, error) {
	raw, err := elf.Open(path)
	if err != nil {
		return 0, 0, classifyOpenError(err)
	}
	defer raw.Close()
	return raw.Class, raw.Machine, nil
}

// classifyOpenError distinguishes "this is not an ELF file at all" from
// "this claims to be ELF but is truncated/corrupt partway through the
// header or section tables". debug/elf reports both as *elf.FormatError;
// only the very first check (the magic number) tells them apart.
func classifyOpenError(err error) error {
	var fmtErr *elf.FormatError
	if errors.As(err, &fmtErr) && strings.Contains(fmtErr.Error(), "bad magic number") {
		return errors.Wrap(ErrNotELF, err.Error())
	}
	if os.IsNotExist(err) {
		return errors.Wrap(ErrNotELF, err.Error())
	}
	return errors.Wrap(ErrMalformedELF, err.Error())
}

// splitColonList flattens the (at most one, per debug/elf) DynString result
// for RPATH/RUNPATH into a list of directories; glibc treats the stored
// string itself as colon-separated.
func splitColonList(values []string) []string {
	var out []string
	for _, v := range values {
		start := 0
		for i := 0; i <= len(v); i++ {
			if i == len(v) || v[i] == ':' {
				if i > start {
					out = append(out, v[start:i])
				}
				start = i + 1
			}
		}
	}
	return out
}

func trimNulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
