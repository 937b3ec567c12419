// Package report assembles the categorized audit report.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yaserfarook1/SentinalLens/internal/costing"
	"github.com/yaserfarook1/SentinalLens/internal/models"
)

// highCostMonthlyThreshold flags archive candidates whose hot-tier cost is
// large enough that an external consumer is plausible.
const highCostMonthlyThreshold = 100.0

// Input carries everything the assembler needs for one run.
type Input struct {
	RunID       string
	WorkspaceID string
	Tables      []models.TableFact
	Coverage    map[string]models.CoverageEntry
	Connectors  models.ConnectorMapping
	Prices      models.TierPrices
	Extractions []models.SourceExtraction
	Metadata    models.ExecutionMetadata
}

// maxSourcesPerRow caps the contributing-source list on a report row.
const maxSourcesPerRow = 5

// Assemble classifies every table into exactly one bucket and computes
// report-level totals. Bucket rules are evaluated in fixed order, first match
// wins; the headline savings total covers archive candidates only.
func Assemble(in Input) *models.Report {
	var (
		archive  []models.TableRecommendation
		lowUsage []models.TableRecommendation
		active   []models.TableRecommendation
		flagged  []models.TableRecommendation
		warnings []models.ReportWarning
	)

	summary := models.ReportSummary{
		TablesByTier:       make(map[models.Tier]int),
		TablesByConfidence: make(map[models.Confidence]int),
	}
	totalMonthlyCurrentCost := 0.0
	archivePrice := in.Prices.Price(models.TierArchive)

	for _, table := range in.Tables {
		entry := in.Coverage[table.Name]
		connectors := in.Connectors[table.Name]
		currentPrice := in.Prices.Price(table.CurrentTier)

		rec := models.TableRecommendation{
			TableName:           table.Name,
			CurrentTier:         table.CurrentTier,
			IngestionGBPerDay:   table.IngestionGBPerDay,
			IngestionGBPerMonth: table.IngestionGBPerDay * 30,
			CoverageCount:       entry.Count,
			Sources:             topSources(entry.Sources),
			Confidence:          entry.Confidence,
			Notes:               buildNotes(table, entry),
		}

		switch {
		case entry.Count == 0 && len(connectors) > 0:
			rec.Bucket = models.BucketWarning
			flagged = append(flagged, rec)
			warnings = append(warnings, models.ReportWarning{
				Type:           models.WarnUncoveredConnector,
				TableName:      table.Name,
				Description:    fmt.Sprintf("no detection coverage but fed by connector(s): %s", strings.Join(connectors, ", ")),
				Recommendation: "verify the connector feed is intentional before considering archive",
			})

		case entry.Confidence == models.ConfidenceLow && entry.Count > 0:
			rec.Bucket = models.BucketWarning
			flagged = append(flagged, rec)
			warnings = append(warnings, models.ReportWarning{
				Type:           models.WarnAmbiguousCoverage,
				TableName:      table.Name,
				Description:    fmt.Sprintf("coverage evidence is ambiguous (%d low-confidence match(es))", entry.Count),
				Recommendation: "review the referencing queries manually",
			})

		case entry.Count == 0 && table.IngestionGBPerDay > 0:
			rec.Bucket = models.BucketArchiveCandidate
			savings := costing.Calculate(table.Name, table.CurrentTier, models.TierArchive,
				table.IngestionGBPerDay, currentPrice, archivePrice)
			rec.Savings = &savings
			archive = append(archive, rec)

			hotCost := costing.MonthlyCost(table.IngestionGBPerDay, currentPrice)
			if table.CurrentTier == models.TierHot && hotCost > highCostMonthlyThreshold {
				warnings = append(warnings, models.ReportWarning{
					Type:           models.WarnHighCostArchive,
					TableName:      table.Name,
					Description:    fmt.Sprintf("high-cost table ($%.2f/month) with no detection coverage", hotCost),
					Recommendation: "verify no external systems depend on this table before archiving",
				})
			}

		case entry.Count >= 1 && entry.Count <= 2:
			rec.Bucket = models.BucketLowUsage
			savings := costing.Calculate(table.Name, table.CurrentTier, models.TierArchive,
				table.IngestionGBPerDay, currentPrice, archivePrice)
			rec.Savings = &savings
			lowUsage = append(lowUsage, rec)

		case entry.Count >= 3:
			rec.Bucket = models.BucketActive
			active = append(active, rec)

		default:
			// Zero coverage, zero ingestion, no connector: nothing to save,
			// but still surfaced rather than silently dropped.
			rec.Bucket = models.BucketWarning
			flagged = append(flagged, rec)
			warnings = append(warnings, models.ReportWarning{
				Type:        models.WarnZeroIngestion,
				TableName:   table.Name,
				Description: "no detection coverage and no ingestion in the lookback window",
			})
		}

		summary.TablesByTier[table.CurrentTier]++
		summary.TablesByConfidence[rec.Confidence]++
		summary.TotalIngestionGBPerMonth += rec.IngestionGBPerMonth
		totalMonthlyCurrentCost += costing.MonthlyCost(table.IngestionGBPerDay, currentPrice)
	}

	warnings = append(warnings, extractionWarnings(in.Extractions)...)
	for _, partial := range in.Metadata.PartialData {
		warnings = append(warnings, models.ReportWarning{
			Type:        models.WarnPartialData,
			Description: partial,
		})
	}

	sortBySavings(archive)
	sortBySavings(lowUsage)
	sort.Slice(active, func(i, j int) bool {
		if active[i].CoverageCount != active[j].CoverageCount {
			return active[i].CoverageCount > active[j].CoverageCount
		}
		return active[i].TableName < active[j].TableName
	})
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].TableName < flagged[j].TableName })

	// Headline totals: archive candidates only. Low-usage savings are shown
	// per row but are not recommended, so they stay out of the total.
	for _, rec := range archive {
		summary.TotalMonthlySavings += rec.Savings.MonthlySavings
		summary.TotalAnnualSavings += rec.Savings.AnnualSavings
	}
	summary.TotalTables = len(in.Tables)
	if totalMonthlyCurrentCost > 0 {
		summary.SavingsPercent = summary.TotalMonthlySavings / totalMonthlyCurrentCost * 100
	}

	metadata := in.Metadata
	metadata.ParseSuccessRate = parseSuccessRate(in.Extractions)
	metadata.TablesAnalyzed = len(in.Tables)

	return &models.Report{
		Version:           models.ReportVersion,
		RunID:             in.RunID,
		WorkspaceID:       in.WorkspaceID,
		Summary:           summary,
		ArchiveCandidates: emptyIfNil(archive),
		LowUsage:          emptyIfNil(lowUsage),
		Active:            emptyIfNil(active),
		WarningTables:     emptyIfNil(flagged),
		ConnectorCoverage: connectorCoverage(in.Connectors, in.Coverage),
		Warnings:          warningsOrEmpty(warnings),
		Prices:            in.Prices,
		Metadata:          metadata,
	}
}

// parseSuccessRate is the share of query sources that parsed with confidence
// above Low.
func parseSuccessRate(extractions []models.SourceExtraction) float64 {
	if len(extractions) == 0 {
		return 0
	}
	ok := 0
	for _, extraction := range extractions {
		if extraction.Result.Confidence != models.ConfidenceLow {
			ok++
		}
	}
	return float64(ok) / float64(len(extractions))
}

func extractionWarnings(extractions []models.SourceExtraction) []models.ReportWarning {
	var warnings []models.ReportWarning
	for _, extraction := range extractions {
		if extraction.Result.Confidence != models.ConfidenceLow {
			continue
		}
		detail := "table references could not be extracted"
		if len(extraction.Result.Warnings) > 0 {
			detail = extraction.Result.Warnings[0]
		}
		warnings = append(warnings, models.ReportWarning{
			Type:           models.WarnComplexQuery,
			Description:    fmt.Sprintf("%s %q: %s", strings.ToLower(string(extraction.Source.Kind)), extraction.Source.ID, detail),
			Recommendation: "review the query manually to verify table extraction",
		})
	}
	return warnings
}

func connectorCoverage(connectors models.ConnectorMapping, coverage map[string]models.CoverageEntry) []models.ConnectorCoverageItem {
	items := make([]models.ConnectorCoverageItem, 0, len(connectors))
	for table, feeds := range connectors {
		items = append(items, models.ConnectorCoverageItem{
			TableName:  table,
			Connectors: feeds,
			Covered:    coverage[table].Count > 0,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TableName < items[j].TableName })
	return items
}

func buildNotes(table models.TableFact, entry models.CoverageEntry) string {
	var notes []string

	switch {
	case entry.Count == 0:
		notes = append(notes, "no detection content references this table")
	case entry.Count <= 2:
		notes = append(notes, fmt.Sprintf("only %d source(s) reference this table", entry.Count))
	}

	if table.IngestionGBPerDay > 0 && table.IngestionGBPerDay < 0.01 {
		notes = append(notes, "minimal ingestion volume")
	} else if table.IngestionGBPerDay > 10 {
		notes = append(notes, fmt.Sprintf("high ingestion: %.1f GB/day", table.IngestionGBPerDay))
	}

	if table.RetentionDays > 0 && table.RetentionDays < 30 {
		notes = append(notes, fmt.Sprintf("short retention: %d days", table.RetentionDays))
	}

	return strings.Join(notes, "; ")
}

func topSources(sources []string) []string {
	if len(sources) > maxSourcesPerRow {
		return append([]string(nil), sources[:maxSourcesPerRow]...)
	}
	if sources == nil {
		return []string{}
	}
	return sources
}

func sortBySavings(recs []models.TableRecommendation) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Savings.AnnualSavings != recs[j].Savings.AnnualSavings {
			return recs[i].Savings.AnnualSavings > recs[j].Savings.AnnualSavings
		}
		return recs[i].TableName < recs[j].TableName
	})
}

func emptyIfNil(recs []models.TableRecommendation) []models.TableRecommendation {
	if recs == nil {
		return []models.TableRecommendation{}
	}
	return recs
}

func warningsOrEmpty(warnings []models.ReportWarning) []models.ReportWarning {
	if warnings == nil {
		return []models.ReportWarning{}
	}
	return warnings
}
