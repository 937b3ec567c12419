package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yaserfarook1/SentinalLens/internal/models"
	"github.com/yaserfarook1/SentinalLens/pkg/config"
)

const (
	textANSIReset = "\x1b[0m"
	textANSIBold  = "\x1b[1m"
)

// WriteText writes a human-readable text report to report.txt and stdout.
func WriteText(report *models.Report, cfg *config.Config) error {
	return writeText(report, cfg, os.Stdout)
}

func writeText(report *models.Report, cfg *config.Config, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if out == nil {
		return fmt.Errorf("writer is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rendered := renderTextReport(report, supportsANSI(out))
	outputPath := filepath.Join(cfg.OutputDir, "report.txt")

	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write report.txt: %w", err)
	}

	if _, err := io.WriteString(out, rendered); err != nil {
		return fmt.Errorf("failed to write text report to output: %w", err)
	}

	return nil
}

func renderTextReport(report *models.Report, useANSI bool) string {
	var b strings.Builder

	bold := func(s string) string {
		if useANSI {
			return textANSIBold + s + textANSIReset
		}
		return s
	}

	generatedAt := "unknown"
	if !report.Metadata.GeneratedAt.IsZero() {
		generatedAt = report.Metadata.GeneratedAt.UTC().Format(time.RFC3339)
	}

	fmt.Fprintf(&b, "%s\n", bold("Log Table Audit"))
	fmt.Fprintf(&b, "Workspace:  %s\n", report.WorkspaceID)
	fmt.Fprintf(&b, "Run:        %s\n", report.RunID)
	fmt.Fprintf(&b, "Generated:  %s\n", generatedAt)
	fmt.Fprintf(&b, "Lookback:   %d days\n\n", report.Metadata.LookbackDays)

	fmt.Fprintf(&b, "%s\n", bold("Summary"))
	fmt.Fprintf(&b, "Tables analyzed:     %d\n", report.Summary.TotalTables)
	fmt.Fprintf(&b, "Archive candidates:  %d\n", len(report.ArchiveCandidates))
	fmt.Fprintf(&b, "Low usage:           %d\n", len(report.LowUsage))
	fmt.Fprintf(&b, "Active:              %d\n", len(report.Active))
	fmt.Fprintf(&b, "Needs review:        %d\n", len(report.WarningTables))
	fmt.Fprintf(&b, "Monthly savings:     $%.2f\n", report.Summary.TotalMonthlySavings)
	fmt.Fprintf(&b, "Annual savings:      $%.2f", report.Summary.TotalAnnualSavings)
	if report.Summary.SavingsPercent > 0 {
		fmt.Fprintf(&b, " (%.1f%% of current spend)", report.Summary.SavingsPercent)
	}
	b.WriteString("\n\n")

	if len(report.ArchiveCandidates) > 0 {
		fmt.Fprintf(&b, "%s\n", bold("Archive candidates"))
		for _, rec := range report.ArchiveCandidates {
			writeRecommendation(&b, rec, true)
		}
		b.WriteString("\n")
	}

	if len(report.LowUsage) > 0 {
		fmt.Fprintf(&b, "%s\n", bold("Low usage (review before archiving)"))
		for _, rec := range report.LowUsage {
			writeRecommendation(&b, rec, true)
		}
		b.WriteString("\n")
	}

	if len(report.WarningTables) > 0 {
		fmt.Fprintf(&b, "%s\n", bold("Needs review"))
		for _, rec := range report.WarningTables {
			writeRecommendation(&b, rec, false)
		}
		b.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintf(&b, "%s\n", bold("Warnings"))
		for _, w := range report.Warnings {
			if w.TableName != "" {
				fmt.Fprintf(&b, "  [%s] %s: %s\n", w.Type, w.TableName, w.Description)
			} else {
				fmt.Fprintf(&b, "  [%s] %s\n", w.Type, w.Description)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Parse success rate: %.0f%%  (rules: %d, workbooks: %d, hunt queries: %d)\n",
		report.Metadata.ParseSuccessRate*100,
		report.Metadata.RulesAnalyzed,
		report.Metadata.WorkbooksAnalyzed,
		report.Metadata.HuntQueriesAnalyzed,
	)

	return b.String()
}

func writeRecommendation(b *strings.Builder, rec models.TableRecommendation, withSavings bool) {
	fmt.Fprintf(b, "  %-32s %-8s %8.2f GB/day  refs: %d  confidence: %s",
		rec.TableName, rec.CurrentTier, rec.IngestionGBPerDay, rec.CoverageCount, rec.Confidence)
	if withSavings && rec.Savings != nil {
		fmt.Fprintf(b, "  saves $%.2f/mo ($%.2f/yr)", rec.Savings.MonthlySavings, rec.Savings.AnnualSavings)
	}
	if rec.Acknowledged {
		b.WriteString("  [acknowledged]")
	}
	b.WriteString("\n")
	if rec.Notes != "" {
		fmt.Fprintf(b, "      %s\n", rec.Notes)
	}
}

// supportsANSI reports whether out is a terminal.
func supportsANSI(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
