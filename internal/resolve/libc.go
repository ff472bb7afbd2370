package resolve

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pypa/auditwheel-go/internal/elfinfo"
)

// libcProbeTimeout bounds the glibc/musl version probe subprocess. This is
// a read-only version query, not a patch action, so it is exempt from the
// "no timeouts on patcher subprocesses" rule that governs internal/repair.
const libcProbeTimeout = 5 * time.Second

// OSVersion packs the running kernel's release (major, minor, patch) into
// the same uint32 encoding glibc stores in ld.so.cache entries, via
// uname(2) rather than the teacher's cgo getauxval call so this package
// stays cgo-free.
func OSVersion() uint32 {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return 0
	}
	release := cString(uts.Release[:])

	var digits []byte
	for i := 0; i < len(release); i++ {
		c := release[i]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		digits = append(digits, c)
	}

	var ret uint32
	n := uint(0)
	for i, f := range strings.Split(string(digits), ".") {
		if i > 2 || f == "" {
			break
		}
		var sub uint8
		for _, b := range []byte(f) {
			if b < '0' || b > '9' {
				sub = 0
				break
			}
			sub = sub*10 + (b - '0')
		}
		ret = ret<<8 | uint32(sub)
		n++
	}
	return ret << (8 * (3 - n))
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = byte(c)
	}
	return string(out)
}

// DetectLibc classifies a root binary's C library from its program
// interpreter path and, for glibc, probes the resolved libc.so through
// cache for its release string. internal/audit records the (Flavor,
// version) pair on the root File via SetLibcFlavor.
func DetectLibc(interp string, cache *Cache) (elfinfo.LibcFlavor, string, error) {
	switch {
	case strings.Contains(interp, "ld-musl-"):
		libcPath := muslLibcPath(interp, cache)
		return elfinfo.LibcMusl, muslVersion(libcPath), nil
	case strings.Contains(interp, "ld-linux") || strings.Contains(interp, "ld.so.1") || strings.Contains(interp, "ld-2"):
		libcPath := ""
		if cache != nil {
			libcPath = cache.Path("libc.so.6")
		}
		return elfinfo.LibcGlibc, glibcVersion(libcPath), nil
	default:
		return elfinfo.LibcUnknown, "", nil
	}
}

// muslLibcPath falls back to the interpreter itself, since musl's ld.so and
// libc.so are typically the same file (or a symlink to it).
func muslLibcPath(interp string, cache *Cache) string {
	if cache != nil {
		if p := cache.Path("libc.musl-" + HostArch + ".so.1"); p != "" {
			return p
		}
	}
	return interp
}

var glibcVersionMarker = []byte("release ")

func glibcVersion(libcPath string) string {
	if libcPath == "" {
		return ""
	}
	out, err := runProbe(libcPath)
	if err != nil {
		return ""
	}
	idx := bytes.Index(out, glibcVersionMarker)
	if idx < 0 {
		return ""
	}
	rest := out[idx+len(glibcVersionMarker):]
	end := bytes.IndexAny(rest, " \n,")
	if end < 0 {
		end = len(rest)
	}
	return string(rest[:end])
}

// musl's libc.so prints its version banner to stderr when run with no
// arguments, unlike glibc's stdout banner, and exits non-zero.
func muslVersion(libcPath string) string {
	if libcPath == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), libcProbeTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, libcPath)
	cmd.Stderr = &stderr
	_ = cmd.Run()

	lines := strings.Split(stderr.String(), "\n")
	for i, l := range lines {
		if strings.Contains(l, "musl libc") && i+1 < len(lines) {
			v := strings.TrimSpace(lines[i+1])
			return strings.TrimPrefix(v, "Version ")
		}
	}
	return ""
}

func runProbe(path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), libcProbeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, path).Output()
}
