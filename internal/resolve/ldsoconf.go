package resolve

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// defaultTrustedPaths are consulted after ld.so.conf and ld.so.cache, same
// as the dynamic linker's built-in default search path.
var defaultTrustedPaths = []string{"/lib", "/usr/lib", "/lib64", "/usr/lib64"}

// ReadLdSoConf parses an ld.so.conf-format file, recursively following
// "include GLOB" directives, and appends each directory it finds to paths.
// A missing file is not an error; ld.so itself tolerates an absent conf.
func ReadLdSoConf(path string, paths []string) []string {
	f, err := os.Open(path)
	if err != nil {
		return paths
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "include "); ok {
			matches, err := filepath.Glob(strings.TrimSpace(rest))
			if err != nil {
				continue
			}
			for _, m := range matches {
				paths = ReadLdSoConf(m, paths)
			}
			continue
		}
		paths = append(paths, line)
	}
	return paths
}
