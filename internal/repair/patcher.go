package repair

import (
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strings"

	"github.com/pypa/auditwheel-go/internal/planner"
)

// InvokePatcher runs patcherPath against a single binary, applying every
// action a RewriteAction carries in one invocation (set-soname,
// replace-needed per entry, set-rpath), matching patchelf's own CLI
// convention of accepting multiple flags per invocation. No timeout is
// applied; a stuck patcher surfaces only via ctx cancellation, per spec.md
// §5's "no timeouts are imposed on subprocesses".
func InvokePatcher(ctx context.Context, patcherPath string, rw planner.RewriteAction) error {
	var args []string
	if rw.SetSoname != "" {
		args = append(args, "--set-soname", rw.SetSoname)
	}

	var olds []string
	for old := range rw.ReplaceNeeded {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		args = append(args, "--replace-needed", old, rw.ReplaceNeeded[old])
	}

	if len(rw.NewRunPath) > 0 {
		args = append(args, "--set-rpath", strings.Join(rw.NewRunPath, ":"))
	}
	if len(args) == 0 {
		return nil
	}
	args = append(args, rw.BinaryPath)

	cmd := exec.CommandContext(ctx, patcherPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &PatcherFailed{BinaryPath: rw.BinaryPath, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// InvokeStrip runs stripPath against a single binary. Stripping is
// best-effort: callers decide whether a StripFailed aborts the repair or
// is merely logged.
func InvokeStrip(ctx context.Context, stripPath, binaryPath string) error {
	cmd := exec.CommandContext(ctx, stripPath, binaryPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &StripFailed{BinaryPath: binaryPath, Stderr: stderr.String(), Err: err}
	}
	return nil
}
