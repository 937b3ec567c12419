package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaserfarook1/SentinalLens/internal/audit"
	"github.com/yaserfarook1/SentinalLens/internal/baseline"
	"github.com/yaserfarook1/SentinalLens/internal/models"
	"github.com/yaserfarook1/SentinalLens/internal/reporter"
	"github.com/yaserfarook1/SentinalLens/internal/workspace"
	"github.com/yaserfarook1/SentinalLens/pkg/config"
)

// apiTokenEnv supplies the workspace API token without putting it on the
// command line.
const apiTokenEnv = "SENTINELLENS_API_TOKEN"

// NewAuditCmd creates the audit command
func NewAuditCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	var (
		lookbackStr    string
		timeoutStr     string
		baselinePath   string
		updateBaseline bool
		failOnFindings bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit workspace log tables and generate a savings report",
		Long: `Audit a security workspace: inventory its log tables, extract table
references from all detection content, and report unused tables with
tier-migration savings estimates.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyFileConfig(cmd, cfg); err != nil {
				return err
			}

			var err error
			if lookbackStr != "" {
				cfg.LookbackPeriod, err = config.ParseDuration(lookbackStr)
				if err != nil {
					return fmt.Errorf("invalid --lookback duration: %w", err)
				}
			}
			if timeoutStr != "" {
				cfg.RequestTimeout, err = config.ParseDuration(timeoutStr)
				if err != nil {
					return fmt.Errorf("invalid --timeout duration: %w", err)
				}
			}

			cfg.Normalize()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cfg, baselinePath, updateBaseline, failOnFindings)
		},
	}

	// Workspace flags
	cmd.Flags().StringVar(&cfg.WorkspaceBaseURL, "workspace-url", "", "Workspace management API base URL")
	cmd.Flags().StringVar(&cfg.WorkspaceID, "workspace-id", "", "Workspace ID to audit")
	cmd.Flags().StringVar(&cfg.Region, "region", "eastus", "Pricing region")
	cmd.Flags().StringVar(&timeoutStr, "timeout", "30s", "Per-request timeout (e.g., 30s, 2m)")
	cmd.Flags().IntVar(&cfg.RateLimit, "rate-limit", 10, "Workspace API rate limit (requests/sec)")
	cmd.Flags().StringVar(&lookbackStr, "lookback", "90d", "Usage lookback period (e.g., 30d, 90d)")

	// Offline input
	cmd.Flags().StringVar(&cfg.SnapshotPath, "snapshot", "", "Audit a YAML workspace snapshot instead of the live API")

	// Concurrency flags
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "Query extraction worker pool size")

	// Output flags
	cmd.Flags().StringVar(&cfg.OutputDir, "output", "./report", "Output directory")
	cmd.Flags().StringVar(&cfg.Format, "format", "json", "Output format (json, text, all)")

	// Analysis flags
	cmd.Flags().StringSliceVar(&cfg.ExcludeTables, "exclude-table", nil, "Table name or glob to exclude (repeatable)")
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "Baseline file of acknowledged findings")
	cmd.Flags().BoolVar(&updateBaseline, "update-baseline", false, "Record current findings in the baseline file")
	cmd.Flags().BoolVar(&failOnFindings, "fail-on-findings", false, "Exit non-zero when new findings are detected")

	// Operational flags
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Verbose logging")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Dry run mode (don't write output)")

	return cmd
}

// applyFileConfig merges .sentinellens.yaml values under explicit flags.
func applyFileConfig(cmd *cobra.Command, cfg *config.Config) error {
	fileCfg, path, err := config.AutoLoadFile()
	if err != nil {
		return err
	}
	if fileCfg == nil {
		return nil
	}

	if !cmd.Flags().Changed("workspace-url") && fileCfg.WorkspaceURL != "" {
		cfg.WorkspaceBaseURL = fileCfg.WorkspaceURL
	}
	if !cmd.Flags().Changed("workspace-id") && fileCfg.WorkspaceID != "" {
		cfg.WorkspaceID = fileCfg.WorkspaceID
	}
	if !cmd.Flags().Changed("region") && fileCfg.Region != "" {
		cfg.Region = fileCfg.Region
	}
	if !cmd.Flags().Changed("format") && fileCfg.Format != "" {
		cfg.Format = fileCfg.Format
	}
	if !cmd.Flags().Changed("snapshot") && fileCfg.Snapshot != "" {
		cfg.SnapshotPath = fileCfg.Snapshot
	}
	if !cmd.Flags().Changed("exclude-table") && len(fileCfg.ExcludeTables) > 0 {
		cfg.ExcludeTables = fileCfg.ExcludeTables
	}
	if !cmd.Flags().Changed("rate-limit") && fileCfg.RateLimit != nil {
		cfg.RateLimit = *fileCfg.RateLimit
	}
	if !cmd.Flags().Changed("concurrency") && fileCfg.Concurrency != nil {
		cfg.Concurrency = *fileCfg.Concurrency
	}
	if !cmd.Flags().Changed("timeout") && fileCfg.Timeout != "" {
		if cfg.RequestTimeout, err = config.ParseDuration(fileCfg.Timeout); err != nil {
			return fmt.Errorf("invalid timeout in %s: %w", path, err)
		}
	}
	if !cmd.Flags().Changed("lookback") && fileCfg.Lookback != "" {
		if cfg.LookbackPeriod, err = config.ParseDuration(fileCfg.Lookback); err != nil {
			return fmt.Errorf("invalid lookback in %s: %w", path, err)
		}
	}

	return nil
}

// buildWorkspace returns the snapshot or live-API collaborator.
func buildWorkspace(cfg *config.Config) (workspace.Workspace, error) {
	if cfg.SnapshotPath != "" {
		return workspace.LoadSnapshot(cfg.SnapshotPath)
	}
	if cfg.WorkspaceBaseURL == "" {
		return nil, fmt.Errorf("--workspace-url or --snapshot is required")
	}
	if cfg.APIToken == "" {
		cfg.APIToken = os.Getenv(apiTokenEnv)
	}
	return workspace.NewClient(workspace.ClientOptions{
		BaseURL:           cfg.WorkspaceBaseURL,
		Token:             cfg.APIToken,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RateLimit,
	})
}

// runAudit executes the audit workflow
func runAudit(cfg *config.Config, baselinePath string, updateBaseline, failOnFindings bool) error {
	startTime := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := buildWorkspace(cfg)
	if err != nil {
		return err
	}

	if cfg.WorkspaceID == "" {
		if snap, ok := ws.(*workspace.Snapshot); ok && snap.WorkspaceID != "" {
			cfg.WorkspaceID = snap.WorkspaceID
		} else {
			return fmt.Errorf("--workspace-id is required")
		}
	}

	runner, err := audit.NewRunner(audit.Options{
		Workspace:    ws,
		Region:       cfg.Region,
		Concurrency:  cfg.Concurrency,
		ExcludeTable: cfg.IsTableExcluded,
		Progress:     printProgress,
	})
	if err != nil {
		return err
	}

	fmt.Printf("🔍 Auditing workspace %s (lookback %d days)...\n", cfg.WorkspaceID, cfg.LookbackDays())
	run, err := runner.Run(ctx, audit.Params{
		WorkspaceID:  cfg.WorkspaceID,
		LookbackDays: cfg.LookbackDays(),
	})
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}
	report := run.Report

	fmt.Printf("✓ Analyzed %d tables: %d archive candidates, %d low usage, %d active, %d need review\n",
		report.Summary.TotalTables,
		len(report.ArchiveCandidates),
		len(report.LowUsage),
		len(report.Active),
		len(report.WarningTables),
	)
	fmt.Printf("✓ Potential savings: $%.2f/month ($%.2f/year)\n",
		report.Summary.TotalMonthlySavings, report.Summary.TotalAnnualSavings)

	newFindings := baseline.CountFindings(report)
	if baselinePath != "" || updateBaseline {
		path := baselinePath
		if path == "" {
			path = baseline.DefaultPath
		}
		newFindings, err = applyBaseline(report, path, updateBaseline)
		if err != nil {
			return err
		}
	}

	if !cfg.DryRun {
		fmt.Println("📝 Writing report...")
		if err := reporter.New(cfg).Generate(report); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		fmt.Printf("✓ Report written to: %s\n", cfg.OutputDir)
	} else {
		fmt.Println("🏃 Dry run mode - skipping output")
	}

	fmt.Printf("\n✅ Audit complete in %s\n", time.Since(startTime).Round(time.Second))

	if failOnFindings && newFindings > 0 {
		return &FindingsError{Count: newFindings}
	}
	return nil
}

// applyBaseline acknowledges known findings and optionally records the
// current ones. Returns the number of findings still unacknowledged.
func applyBaseline(report *models.Report, path string, update bool) (int, error) {
	known, err := baseline.Load(path)
	if err != nil {
		return 0, err
	}

	acknowledged, remaining := baseline.MarkKnown(report, known)
	if acknowledged > 0 {
		fmt.Printf("✓ Baseline: %d finding(s) acknowledged, %d new\n", acknowledged, remaining)
	}

	if update {
		baseline.AddAll(known, baseline.CollectFingerprints(report))
		if err := baseline.Save(path, known); err != nil {
			return 0, err
		}
		fmt.Printf("✓ Baseline updated: %s\n", path)
	}

	return remaining, nil
}

// printProgress renders orchestrator step transitions on the terminal.
func printProgress(ev models.ProgressEvent) {
	switch ev.Status {
	case "completed":
		fmt.Printf("  [%d/%d] %s\n", ev.StepIndex+1, ev.TotalSteps, ev.StepName)
	case "degraded":
		fmt.Printf("  [%d/%d] %s (partial)\n", ev.StepIndex+1, ev.TotalSteps, ev.StepName)
	case "failed":
		fmt.Printf("  [%d/%d] %s FAILED\n", ev.StepIndex+1, ev.TotalSteps, ev.StepName)
	}
}
