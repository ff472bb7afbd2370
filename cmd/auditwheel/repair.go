package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pypa/auditwheel-go/internal/ambient/wlog"
	"github.com/pypa/auditwheel-go/internal/audit"
	"github.com/pypa/auditwheel-go/internal/config"
	"github.com/pypa/auditwheel-go/internal/report"
)

var (
	targetPolicyFlag string
	excludeFlag      []string
	onlyPlatFlag     bool
	stripFlag        bool
	patcherPathFlag  string
	stripPathFlag    string
	outputDirFlag    string
)

func newRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair WHEEL",
		Short: "Rewrite a wheel so its binaries satisfy a target policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadPolicyTable()
			if err != nil {
				return err
			}

			cfg := config.FromEnv()
			targetPolicy := targetPolicyFlag
			if targetPolicy == "" {
				// AUDITWHEEL_PLAT is the default for the target policy
				// option (spec.md §6), not a linker search token.
				targetPolicy = cfg.Platform
			}
			if targetPolicy == "" {
				return &usageError{msg: "--plat is required (or set AUDITWHEEL_PLAT)"}
			}
			if patcherPathFlag == "" {
				return &usageError{msg: "--patcher is required (path to a patchelf-compatible binary)"}
			}

			log := wlog.New(wlog.Options{Debug: debugFlag})
			opts := audit.RepairOptions{
				TargetPolicy: targetPolicy,
				Exclude:      excludeFlag,
				OnlyPlat:     onlyPlatFlag,
				Strip:        stripFlag,
				PatcherPath:  patcherPathFlag,
				StripPath:    stripPathFlag,
				OutputDir:    outputDirFlag,
			}

			outputPath, rec, err := audit.Repair(cmd.Context(), args[0], table, opts, cfg, log)
			if err != nil {
				if errors.Is(err, audit.ErrPolicyIncompatible) || errors.Is(err, audit.ErrPolicyNotFound) {
					return &policyError{err: err}
				}
				return err
			}

			fmt.Fprintln(os.Stdout, outputPath)
			if jsonFlag {
				return report.RenderJSON(os.Stdout, rec)
			}
			report.Render(os.Stdout, rec)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPolicyFlag, "plat", "", "target policy name or alias (required)")
	cmd.Flags().StringSliceVar(&excludeFlag, "exclude", nil, "soname to leave unpatched and excluded from grafting (repeatable)")
	cmd.Flags().BoolVar(&onlyPlatFlag, "only-plat", false, "do not add legacy manylinux alias tags")
	cmd.Flags().BoolVar(&stripFlag, "strip", false, "strip grafted libraries with --strip-path")
	cmd.Flags().StringVar(&patcherPathFlag, "patcher", "", "path to a patchelf-compatible binary (required)")
	cmd.Flags().StringVar(&stripPathFlag, "strip-path", "strip", "path to the strip binary, used only with --strip")
	cmd.Flags().StringVar(&outputDirFlag, "output-dir", "", "directory for the repaired wheel (default: alongside the input)")

	return cmd
}
