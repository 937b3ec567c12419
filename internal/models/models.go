package models

import "time"

// Tier is a cost/performance class for stored log data.
type Tier string

const (
	TierHot     Tier = "Hot"
	TierBasic   Tier = "Basic"
	TierArchive Tier = "Archive"
)

// Confidence is a closed reliability label on an extraction or recommendation.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// rank orders confidence levels, lowest first.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceLow:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceHigh:
		return 2
	default:
		return 0
	}
}

// Worse returns the lower of two confidence levels.
func (c Confidence) Worse(other Confidence) Confidence {
	if other.rank() < c.rank() {
		return other
	}
	return c
}

// SourceKind identifies the artifact type a query string came from.
type SourceKind string

const (
	SourceRule      SourceKind = "Rule"
	SourceWorkbook  SourceKind = "Workbook"
	SourceHuntQuery SourceKind = "HuntQuery"
)

// TableFact describes one workspace table for the duration of an audit run.
// Immutable once collected.
type TableFact struct {
	Name              string  `json:"name"`
	CurrentTier       Tier    `json:"current_tier"`
	IngestionGBPerDay float64 `json:"ingestion_gb_per_day"`
	RetentionDays     int     `json:"retention_days"`
}

// QuerySource is any artifact whose definition embeds a query string that may
// reference tables.
type QuerySource struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Kind  SourceKind `json:"kind"`
	Query string     `json:"query"`
}

// ExtractionResult holds the table names extracted from one QuerySource.
// Derived each run, never persisted as authoritative truth.
type ExtractionResult struct {
	Tables     []string   `json:"tables"`
	Confidence Confidence `json:"confidence"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// SourceExtraction pairs a query source with its extraction result.
type SourceExtraction struct {
	Source QuerySource
	Result ExtractionResult
}

// CoverageEntry is the folded usage evidence for one table.
type CoverageEntry struct {
	Table      string     `json:"table"`
	Count      int        `json:"count"`
	Confidence Confidence `json:"confidence"`
	Sources    []string   `json:"sources"`
}

// ConnectorMapping maps a table name to the data connectors feeding it.
// Annotation only: connector coverage never counts as usage.
type ConnectorMapping map[string][]string

// TierPrices carries per-GB prices for each tier, as fetched for one run.
type TierPrices struct {
	Region      string            `json:"region"`
	PerGB       map[Tier]float64  `json:"per_gb"`
	RetrievedAt time.Time         `json:"retrieved_at"`
}

// Price returns the per-GB price for a tier, or 0 when unknown.
func (p TierPrices) Price(tier Tier) float64 {
	if p.PerGB == nil {
		return 0
	}
	return p.PerGB[tier]
}

// SavingsEstimate records a tier-migration saving with the prices it was
// computed from, frozen for later audit.
type SavingsEstimate struct {
	TableName         string  `json:"table_name"`
	CurrentTier       Tier    `json:"current_tier"`
	TargetTier        Tier    `json:"target_tier"`
	MonthlySavings    float64 `json:"monthly_savings"`
	AnnualSavings     float64 `json:"annual_savings"`
	CurrentPricePerGB float64 `json:"current_price_per_gb"`
	TargetPricePerGB  float64 `json:"target_price_per_gb"`
}
