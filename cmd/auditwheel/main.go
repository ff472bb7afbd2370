// Command auditwheel is the thin CLI front-end over internal/audit: it
// parses flags, builds the ambient logger and environment config, and
// calls straight into Show or Repair. No auditing logic lives here.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes per spec.md §6: 0 success, 1 policy-incompatible/repair
// infeasible, 2 usage or I/O error.
const (
	exitOK              = 0
	exitPolicyIncompat  = 1
	exitUsageOrIOError  = 2
)

var (
	debugFlag      bool
	jsonFlag       bool
	policyFileFlag string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "auditwheel",
		Short: "Audit and repair the external shared-library dependencies of Python wheels",
	}
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "emit machine-readable JSON output")
	root.PersistentFlags().StringVar(&policyFileFlag, "policy-file", "", "path to the policy table JSON document (required)")

	root.AddCommand(newShowCmd())
	root.AddCommand(newRepairCmd())
	return root
}

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "auditwheel:", err)
		if code, ok := err.(exitCoder); ok {
			return code.ExitCode()
		}
		return exitUsageOrIOError
	}
	return exitOK
}

// exitCoder lets an error carry its own process exit code. Subcommands
// wrap a policy-incompatible outcome in policyError so main can return 1
// rather than the default 2 for an ordinary usage/IO failure.
type exitCoder interface {
	error
	ExitCode() int
}

type policyError struct{ err error }

func (e *policyError) Error() string { return e.err.Error() }
func (e *policyError) ExitCode() int { return exitPolicyIncompat }
func (e *policyError) Unwrap() error { return e.err }
