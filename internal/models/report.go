package models

import "time"

// Bucket classifies a table in the final report. Every table lands in exactly
// one bucket per run.
type Bucket string

const (
	BucketArchiveCandidate Bucket = "ArchiveCandidate"
	BucketLowUsage         Bucket = "LowUsage"
	BucketActive           Bucket = "Active"
	BucketWarning          Bucket = "Warning"
)

// Warning types surfaced in report warnings.
const (
	WarnUncoveredConnector = "UNCOVERED_CONNECTOR"
	WarnAmbiguousCoverage  = "AMBIGUOUS_COVERAGE"
	WarnComplexQuery       = "COMPLEX_QUERY"
	WarnHighCostArchive    = "HIGH_COST_ARCHIVE"
	WarnZeroIngestion      = "ZERO_INGESTION"
	WarnPartialData        = "PARTIAL_DATA"
)

// TableRecommendation is one table row in the report.
type TableRecommendation struct {
	TableName           string           `json:"table_name"`
	CurrentTier         Tier             `json:"current_tier"`
	IngestionGBPerDay   float64          `json:"ingestion_gb_per_day"`
	IngestionGBPerMonth float64          `json:"ingestion_gb_per_month"`
	CoverageCount       int              `json:"coverage_count"`
	Sources             []string         `json:"sources"`
	Confidence          Confidence       `json:"confidence"`
	Bucket              Bucket           `json:"bucket"`
	Savings             *SavingsEstimate `json:"savings,omitempty"`
	Notes               string           `json:"notes,omitempty"`
	Acknowledged        bool             `json:"acknowledged,omitempty"`
}

// ConnectorCoverageItem reports, per connector, how many of its fed tables
// have detection coverage.
type ConnectorCoverageItem struct {
	TableName  string   `json:"table_name"`
	Connectors []string `json:"connectors"`
	Covered    bool     `json:"covered"`
}

// ReportWarning is a manual-review item attached to the report.
type ReportWarning struct {
	Type           string `json:"type"`
	TableName      string `json:"table_name,omitempty"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation,omitempty"`
}

// ReportSummary holds whole-workspace totals. Headline savings cover archive
// candidates only.
type ReportSummary struct {
	TotalTables              int                `json:"total_tables"`
	TotalIngestionGBPerMonth float64            `json:"total_ingestion_gb_per_month"`
	TotalMonthlySavings      float64            `json:"total_monthly_savings"`
	TotalAnnualSavings       float64            `json:"total_annual_savings"`
	SavingsPercent           float64            `json:"savings_percent"`
	TablesByTier             map[Tier]int       `json:"tables_by_tier"`
	TablesByConfidence       map[Confidence]int `json:"tables_by_confidence"`
}

// ExecutionMetadata describes how the report was produced.
type ExecutionMetadata struct {
	GeneratedAt         time.Time `json:"generated_at"`
	Duration            string    `json:"duration"`
	LookbackDays        int       `json:"lookback_days"`
	ParseSuccessRate    float64   `json:"parse_success_rate"`
	TablesAnalyzed      int       `json:"tables_analyzed"`
	RulesAnalyzed       int       `json:"rules_analyzed"`
	WorkbooksAnalyzed   int       `json:"workbooks_analyzed"`
	HuntQueriesAnalyzed int       `json:"hunt_queries_analyzed"`
	PartialData         []string  `json:"partial_data,omitempty"`
}

// Report is the immutable audit output.
type Report struct {
	Version           int                     `json:"version"`
	RunID             string                  `json:"run_id"`
	WorkspaceID       string                  `json:"workspace_id"`
	Summary           ReportSummary           `json:"summary"`
	ArchiveCandidates []TableRecommendation   `json:"archive_candidates"`
	LowUsage          []TableRecommendation   `json:"low_usage"`
	Active            []TableRecommendation   `json:"active"`
	WarningTables     []TableRecommendation   `json:"warning_tables"`
	ConnectorCoverage []ConnectorCoverageItem `json:"connector_coverage"`
	Warnings          []ReportWarning         `json:"warnings"`
	Prices            TierPrices              `json:"prices"`
	Metadata          ExecutionMetadata       `json:"metadata"`
}

// ReportVersion is the current persisted report format version.
const ReportVersion = 1
