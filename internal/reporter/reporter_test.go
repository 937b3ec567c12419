package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yaserfarook1/SentinalLens/internal/models"
	"github.com/yaserfarook1/SentinalLens/pkg/config"
)

func sampleReport() *models.Report {
	return &models.Report{
		Version:     models.ReportVersion,
		RunID:       "run-1",
		WorkspaceID: "ws-1",
		Summary: models.ReportSummary{
			TotalTables:         2,
			TotalMonthlySavings: 0.294,
			TotalAnnualSavings:  3.528,
			SavingsPercent:      2.3,
		},
		ArchiveCandidates: []models.TableRecommendation{
			{
				TableName:         "AuditLogs",
				CurrentTier:       models.TierHot,
				IngestionGBPerDay: 0.1,
				Bucket:            models.BucketArchiveCandidate,
				Confidence:        models.ConfidenceHigh,
				Savings: &models.SavingsEstimate{
					TableName:      "AuditLogs",
					CurrentTier:    models.TierHot,
					TargetTier:     models.TierArchive,
					MonthlySavings: 0.294,
					AnnualSavings:  3.528,
				},
			},
		},
		LowUsage:      []models.TableRecommendation{},
		Active:        []models.TableRecommendation{},
		WarningTables: []models.TableRecommendation{},
		Warnings: []models.ReportWarning{
			{Type: models.WarnComplexQuery, Description: "rule \"r9\": unresolved function call: F"},
		},
		Metadata: models.ExecutionMetadata{
			GeneratedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			LookbackDays:     90,
			ParseSuccessRate: 0.96,
			RulesAnalyzed:    25,
		},
	}
}

func TestWriteJSON(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	if err := WriteJSON(sampleReport(), cfg); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "report.json"))
	if err != nil {
		t.Fatalf("reading report.json: %v", err)
	}

	var got models.Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report.json is not valid JSON: %v", err)
	}
	if got.RunID != "run-1" || len(got.ArchiveCandidates) != 1 {
		t.Fatalf("unexpected round-tripped report: %+v", got)
	}
}

func TestWriteTextRendersSections(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	var out bytes.Buffer
	if err := writeText(sampleReport(), cfg, &out); err != nil {
		t.Fatalf("writeText: %v", err)
	}

	rendered := out.String()
	for _, want := range []string{
		"Log Table Audit",
		"ws-1",
		"Archive candidates",
		"AuditLogs",
		"saves $0.29/mo",
		"unresolved function call",
		"Parse success rate: 96%",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected rendered report to contain %q:\n%s", want, rendered)
		}
	}
	if strings.Contains(rendered, textANSIBold) {
		t.Fatalf("expected no ANSI codes for a non-terminal writer")
	}

	// File copy matches the stream.
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "report.txt"))
	if err != nil {
		t.Fatalf("reading report.txt: %v", err)
	}
	if string(data) != rendered {
		t.Fatalf("report.txt diverges from streamed output")
	}
}

func TestGenerateFormats(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Format = "all"

	if err := New(cfg).Generate(sampleReport()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, name := range []string{"report.json", "report.txt"} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, name)); err != nil {
			t.Fatalf("expected %s written: %v", name, err)
		}
	}

	cfg.Format = "xml"
	if err := New(cfg).Generate(sampleReport()); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
