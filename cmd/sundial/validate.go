package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/audit"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/harness"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/types"
)

var (
	validateTargetsFile string
	validateCounty      string
	validateState       string
)

var validateCmd = &cobra.Command{
	Use:   "validate [apn ...]",
	Short: "Smoke-test the cluster with one valuation request per target",
	Long: `Issue one POST /valuate-property per target parcel concurrently
against the upstream pool and report per-target pass/fail plus a count
summary.

Targets are given as APN arguments (with --county and --state) or as a
targets file with one "apn,county,state" line per target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := collectTargets(args)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("no targets given")
		}

		auditLog := audit.New(audit.Options{
			Path:           cfg.Audit.Path,
			MaxGenerations: cfg.Audit.MaxGenerations,
		})
		defer auditLog.Close()

		h := harness.New(harness.Config{
			BaseURL:     cfg.Harness.BaseURL,
			Concurrency: cfg.Harness.Concurrency,
			TaskTimeout: cfg.Harness.TaskTimeout,
		}, auditLog)

		run := h.Run(context.Background(), targets)

		for _, r := range run.Results {
			if r.Passed() {
				avg := "n/a"
				if r.Summary.EstimatedValueAvg != nil {
					avg = fmt.Sprintf("$%.0f", *r.Summary.EstimatedValueAvg)
				}
				fmt.Printf("PASS %-20s %6dms  %s (%.2f ac, est %s)\n",
					r.Target, r.Latency.Milliseconds(), r.Summary.TargetProperty,
					r.Summary.TargetAcreage, avg)
			} else {
				reason := r.RawError
				if reason == "" {
					reason = fmt.Sprintf("HTTP %d", r.Status)
				}
				fmt.Printf("FAIL %-20s %6dms  %s\n", r.Target, r.Latency.Milliseconds(), reason)
			}
		}

		fmt.Printf("\n%d pass, %d fail, %d total in %s\n",
			run.Passes(), run.Failures(), len(run.Results),
			run.EndTime.Sub(run.StartTime).Round(time.Millisecond))

		if run.Failures() > 0 {
			return fmt.Errorf("%d of %d targets failed", run.Failures(), len(run.Results))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateTargetsFile, "targets", "t", "", "file with one apn,county,state per line")
	validateCmd.Flags().StringVar(&validateCounty, "county", "", "county for APN arguments")
	validateCmd.Flags().StringVar(&validateState, "state", "", "state for APN arguments")
}

// collectTargets merges APN arguments and the targets file
func collectTargets(args []string) ([]types.ValuationRequest, error) {
	var targets []types.ValuationRequest

	for _, apn := range args {
		if validateCounty == "" || validateState == "" {
			return nil, fmt.Errorf("--county and --state are required with APN arguments")
		}
		targets = append(targets, types.ValuationRequest{
			APN:    apn,
			County: validateCounty,
			State:  validateState,
		})
	}

	if validateTargetsFile != "" {
		f, err := os.Open(validateTargetsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open targets file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.Split(line, ",")
			if len(parts) != 3 {
				return nil, fmt.Errorf("targets file line %d: want apn,county,state", lineNo)
			}
			targets = append(targets, types.ValuationRequest{
				APN:    strings.TrimSpace(parts[0]),
				County: strings.TrimSpace(parts[1]),
				State:  strings.TrimSpace(parts[2]),
			})
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read targets file: %w", err)
		}
	}

	return targets, nil
}
