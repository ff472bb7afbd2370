package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pypa/auditwheel-go/internal/ambient/wlog"
	"github.com/pypa/auditwheel-go/internal/audit"
	"github.com/pypa/auditwheel-go/internal/config"
	"github.com/pypa/auditwheel-go/internal/policy"
	"github.com/pypa/auditwheel-go/internal/report"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show WHEEL",
		Short: "Inspect a wheel's external library dependencies and policy compliance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadPolicyTable()
			if err != nil {
				return err
			}

			log := wlog.New(wlog.Options{Debug: debugFlag})
			rec, err := audit.Show(args[0], table, config.FromEnv(), log)
			if err != nil {
				return err
			}

			if jsonFlag {
				if err := report.RenderJSON(os.Stdout, rec); err != nil {
					return err
				}
			} else {
				report.Render(os.Stdout, rec)
			}

			if rec.OverallPolicy == "" {
				return &policyError{err: audit.ErrNotShowCompatible}
			}
			return nil
		},
	}
	return cmd
}

func loadPolicyTable() (policy.Table, error) {
	if policyFileFlag == "" {
		return nil, &usageError{msg: "--policy-file is required"}
	}
	raw, err := os.ReadFile(policyFileFlag)
	if err != nil {
		return nil, &usageError{msg: err.Error()}
	}
	table, err := policy.Load(raw)
	if err != nil {
		return nil, &usageError{msg: err.Error()}
	}
	return table, nil
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }
func (e *usageError) ExitCode() int { return exitUsageOrIOError }
