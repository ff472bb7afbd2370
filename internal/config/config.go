// Package config holds the small set of invocation options spec.md §6
// sources from the environment, read once at startup into a struct rather
// than fetched ad hoc with os.Getenv deep in the call stack — the same
// "config struct built once, passed down" shape as the teacher's
// ui/config.Config, adapted from file-backed to env-backed since this tool
// names no on-disk tool configuration of its own.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the environment-sourced configuration for one invocation.
type Config struct {
	// LDLibraryPath is the parsed LD_LIBRARY_PATH search list, consulted
	// by internal/resolve when SearchConfig.UseLDLibraryPath is set.
	LDLibraryPath []string

	// SourceDateEpoch pins repacked wheel entry mtimes for reproducible
	// output; zero means "use the fixed 1980-01-01 floor" per spec.md §6.
	SourceDateEpoch int64

	// Platform is AUDITWHEEL_PLAT: the default target policy name for the
	// repair CLI's --plat option when it is not given explicitly (spec.md
	// §6). It has nothing to do with the dynamic linker's $PLATFORM token
	// expansion — that token is always the dependent binary's own arch.
	Platform string
}

// FromEnv reads LD_LIBRARY_PATH, SOURCE_DATE_EPOCH, and AUDITWHEEL_PLAT
// from the process environment. A malformed SOURCE_DATE_EPOCH is ignored
// (treated as unset) rather than failing invocation startup.
func FromEnv() Config {
	var cfg Config

	if v := os.Getenv("LD_LIBRARY_PATH"); v != "" {
		cfg.LDLibraryPath = strings.Split(v, ":")
	}

	if v := os.Getenv("SOURCE_DATE_EPOCH"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SourceDateEpoch = n
		}
	}

	cfg.Platform = os.Getenv("AUDITWHEEL_PLAT")

	return cfg
}
