// Package coverage folds extraction results into per-table usage evidence.
package coverage

import (
	"sort"
	"strings"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

// Aggregate builds a CoverageEntry for every table in tables. Coverage count
// is the number of distinct query sources whose extraction includes the table
// (case-insensitive exact match, no fuzzy matching). Entry confidence is the
// worst confidence among contributing extractions; a single ambiguous match
// must not be masked by several confident ones.
//
// Tables with zero matches are still emitted with count 0, since those are
// the interesting case. Their confidence reflects the whole extraction corpus:
// High when every extraction parsed with High confidence, Medium otherwise,
// since an imperfectly parsed corpus may have missed a reference.
func Aggregate(tables []models.TableFact, extractions []models.SourceExtraction) map[string]models.CoverageEntry {
	canonical := make(map[string]string, len(tables))
	for _, table := range tables {
		canonical[strings.ToLower(table.Name)] = table.Name
	}

	corpusConfidence := models.ConfidenceHigh
	for _, extraction := range extractions {
		corpusConfidence = corpusConfidence.Worse(extraction.Result.Confidence)
	}
	zeroConfidence := models.ConfidenceHigh
	if corpusConfidence != models.ConfidenceHigh {
		zeroConfidence = models.ConfidenceMedium
	}

	type accumulator struct {
		sources    map[string]struct{}
		order      []string
		confidence models.Confidence
	}
	acc := make(map[string]*accumulator, len(tables))

	for _, extraction := range extractions {
		seen := make(map[string]struct{}, len(extraction.Result.Tables))
		for _, name := range extraction.Result.Tables {
			table, known := canonical[strings.ToLower(name)]
			if !known {
				continue
			}
			// Duplicate mentions within one source count once.
			if _, dup := seen[table]; dup {
				continue
			}
			seen[table] = struct{}{}

			entry, ok := acc[table]
			if !ok {
				entry = &accumulator{
					sources:    make(map[string]struct{}),
					confidence: extraction.Result.Confidence,
				}
				acc[table] = entry
			}
			if _, dup := entry.sources[extraction.Source.ID]; !dup {
				entry.sources[extraction.Source.ID] = struct{}{}
				entry.order = append(entry.order, extraction.Source.ID)
			}
			entry.confidence = entry.confidence.Worse(extraction.Result.Confidence)
		}
	}

	result := make(map[string]models.CoverageEntry, len(tables))
	for _, table := range tables {
		entry, ok := acc[table.Name]
		if !ok {
			result[table.Name] = models.CoverageEntry{
				Table:      table.Name,
				Count:      0,
				Confidence: zeroConfidence,
				Sources:    []string{},
			}
			continue
		}

		sources := append([]string(nil), entry.order...)
		sort.Strings(sources)
		result[table.Name] = models.CoverageEntry{
			Table:      table.Name,
			Count:      len(entry.sources),
			Confidence: entry.confidence,
			Sources:    sources,
		}
	}

	return result
}
