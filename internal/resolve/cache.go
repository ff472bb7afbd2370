package resolve

import (
	"bytes"
	"encoding/binary"
	"os"
	"runtime"
	"sort"

	"github.com/pkg/errors"
)

// Cache is a parsed /etc/ld.so.cache: for each library soname it knows
// about, the candidate paths the linker would try, ordered the way
// ld-linux.so itself orders them (hwcap, then os version, then file
// order).
type Cache struct {
	store map[string]cacheEntries
}

// Path returns the best candidate path for name, or "" if the cache has no
// entry for it.
func (c *Cache) Path(name string) string {
	ents, ok := c.store[name]
	if !ok || len(ents) == 0 {
		return ""
	}
	return ents[0].value
}

type cacheEntry struct {
	key, value string
	flags      uint32
	osVersion  uint32
	hwcap      uint64
}

type cacheEntries []*cacheEntry

func (e cacheEntries) Len() int      { return len(e) }
func (e cacheEntries) Swap(i, j int) { e[i], e[j] = e[j], e[i] }
func (e cacheEntries) Less(i, j int) bool {
	if e[i].hwcap != e[j].hwcap {
		return e[i].hwcap > e[j].hwcap
	}
	if e[i].osVersion != e[j].osVersion {
		return e[i].osVersion > e[j].osVersion
	}
	return false
}

// archCacheFlags are the flag bits glibc's ld.so.cache uses to mark an
// entry as usable on the running architecture (sysdeps/*/dl-cache.h). Only
// the ELF/libc6 bit is checked on architectures without a distinguishing
// lib64 flag; that is weaker than glibc's own check but never accepts an
// entry the real linker would reject, since the lib64 bit is advisory on
// those arches.
const (
	flagElfLibc6   = 0x0001 | 0x0002
	flagX8664Lib64 = 0x0300
)

func wantFlags(goarch string) uint32 {
	switch goarch {
	case "amd64", "x86_64":
		return flagX8664Lib64 | flagElfLibc6
	default:
		return flagElfLibc6
	}
}

var oldMagic = []byte("ld.so-1.7.0\x00")
var newMagic = []byte("glibc-ld.so.cache1.1")

// splitOldCache strips the legacy ld.so.cache header glibc 2.2+ still
// embeds ahead of the new-format cache, and returns the new-format bytes.
func splitOldCache(b []byte) ([]byte, error) {
	const oldEntrySz = 4 + 4 + 4

	if !bytes.HasPrefix(b, oldMagic) {
		return nil, errors.New("resolve: ld.so.cache has invalid old_magic")
	}
	off := len(oldMagic)
	b = b[off:]

	if len(b) < 4 {
		return nil, errors.New("resolve: ld.so.cache truncated (nlibs)")
	}
	nlibs := int(binary.LittleEndian.Uint32(b))
	off += 4
	b = b[4:]

	skip := oldEntrySz * nlibs
	if len(b) < skip {
		return nil, errors.New("resolve: ld.so.cache truncated (libs[])")
	}
	off += skip
	b = b[skip:]

	padLen := ((off+8-1)/8)*8 - off
	if len(b) < padLen {
		return nil, errors.New("resolve: ld.so.cache truncated (pad)")
	}
	return b[padLen:], nil
}

// LoadCache loads and parses an ld.so.cache file at path (normally
// /etc/ld.so.cache). See sysdeps/generic/dl-cache.h in glibc for the format.
// hostOSVersion, from OSVersion, filters out entries the running kernel is
// too old to use; pass 0 to disable the check.
func LoadCache(path string, goarch string, hostOSVersion uint32) (*Cache, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseCache(raw, goarch, hostOSVersion)
}

func parseCache(raw []byte, goarch string, hostOSVersion uint32) (*Cache, error) {
	const entrySz = 4 + 4 + 4 + 4 + 8

	b, err := splitOldCache(raw)
	if err != nil {
		return nil, err
	}
	stringTable := b

	if !bytes.HasPrefix(b, newMagic) {
		return nil, errors.New("resolve: ld.so.cache has invalid new_magic")
	}
	b = b[len(newMagic):]

	if len(b) < 2*4+5*4 {
		return nil, errors.New("resolve: ld.so.cache truncated (new header)")
	}
	nlibs := int(binary.LittleEndian.Uint32(b))
	b = b[4:]
	lenStrings := int(binary.LittleEndian.Uint32(b))
	b = b[4+20:] // skip unused[]
	if len(b) < nlibs*entrySz {
		return nil, errors.New("resolve: ld.so.cache truncated (libs[])")
	}
	rawLibs := b[:nlibs*entrySz]
	b = b[len(rawLibs):]
	if len(b) != lenStrings {
		return nil, errors.New("resolve: lenStrings appears invalid")
	}

	getString := func(idx int) (string, error) {
		if idx < 0 || idx > len(stringTable) {
			return "", errors.New("resolve: string table index out of bounds")
		}
		end := bytes.IndexByte(stringTable[idx:], 0)
		if end < 0 {
			return "", errors.New("resolve: unterminated string in cache")
		}
		return string(stringTable[idx : idx+end]), nil
	}

	want := wantFlags(goarch)
	c := &Cache{store: make(map[string]cacheEntries)}

	for i := 0; i < nlibs; i++ {
		rawE := rawLibs[entrySz*i : entrySz*(i+1)]

		e := &cacheEntry{
			flags:     binary.LittleEndian.Uint32(rawE[0:]),
			osVersion: binary.LittleEndian.Uint32(rawE[12:]),
			hwcap:     binary.LittleEndian.Uint64(rawE[16:]),
		}
		kIdx := int(binary.LittleEndian.Uint32(rawE[4:]))
		vIdx := int(binary.LittleEndian.Uint32(rawE[8:]))

		if e.key, err = getString(kIdx); err != nil {
			return nil, err
		}
		if e.value, err = getString(vIdx); err != nil {
			return nil, err
		}

		if e.flags&want != want {
			continue
		}
		if hostOSVersion != 0 && e.osVersion != 0 && hostOSVersion < e.osVersion {
			continue
		}
		c.store[e.key] = append(c.store[e.key], e)
	}

	for lib, entries := range c.store {
		if len(entries) > 1 {
			sort.Stable(entries)
			c.store[lib] = entries
		}
	}
	return c, nil
}

// HostArch is runtime.GOARCH, exposed as a var so tests can override it.
var HostArch = runtime.GOARCH
