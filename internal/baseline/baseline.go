// Package baseline suppresses findings a team has already reviewed. Known
// recommendations are marked acknowledged rather than removed, so reports
// stay complete.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

const (
	// DefaultPath is used when --update-baseline is enabled without an explicit --baseline path.
	DefaultPath = ".sentinellens-baseline.json"
	fileVersion = 1
)

// Set stores baseline fingerprints.
type Set map[string]struct{}

// File is the persisted baseline JSON payload.
type File struct {
	Version      int      `json:"version"`
	Fingerprints []string `json:"fingerprints"`
}

// Load reads a baseline file. Missing files return an empty set.
func Load(path string) (Set, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("baseline path is empty")
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse baseline file: %w", err)
	}
	if file.Version != 0 && file.Version != fileVersion {
		return nil, fmt.Errorf("unsupported baseline version: %d", file.Version)
	}

	set := Set{}
	for _, fingerprint := range file.Fingerprints {
		if fingerprint == "" {
			continue
		}
		set[fingerprint] = struct{}{}
	}

	return set, nil
}

// Save writes a baseline file with sorted, unique fingerprints.
func Save(path string, set Set) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return errors.New("baseline path is empty")
	}

	dir := filepath.Dir(trimmed)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create baseline directory: %w", err)
		}
	}

	payload := File{
		Version:      fileVersion,
		Fingerprints: Sorted(set),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline file: %w", err)
	}

	if err := os.WriteFile(trimmed, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}

	return nil
}

// AddAll inserts fingerprints into the target set.
func AddAll(target Set, fingerprints []string) {
	for _, fingerprint := range fingerprints {
		if fingerprint == "" {
			continue
		}
		target[fingerprint] = struct{}{}
	}
}

// Sorted returns sorted fingerprints from a set.
func Sorted(set Set) []string {
	fingerprints := make([]string, 0, len(set))
	for fingerprint := range set {
		fingerprints = append(fingerprints, fingerprint)
	}
	sort.Strings(fingerprints)
	return fingerprints
}

// CountFindings returns the number of report rows treated as findings.
func CountFindings(report *models.Report) int {
	if report == nil {
		return 0
	}
	return len(report.ArchiveCandidates) + len(report.LowUsage) + len(report.WarningTables)
}

// CountNew returns the number of findings not yet acknowledged.
func CountNew(report *models.Report) int {
	if report == nil {
		return 0
	}
	count := 0
	for _, bucket := range findingBuckets(report) {
		for _, rec := range bucket.recs {
			if !rec.Acknowledged {
				count++
			}
		}
	}
	return count
}

// CollectFingerprints extracts fingerprints for all current findings in the report.
func CollectFingerprints(report *models.Report) []string {
	set := Set{}
	if report == nil {
		return []string{}
	}

	for _, bucket := range findingBuckets(report) {
		for _, rec := range bucket.recs {
			set[FingerprintRecommendation(bucket.category, rec)] = struct{}{}
		}
	}

	return Sorted(set)
}

// MarkKnown flags findings already present in the baseline as acknowledged.
// Nothing is removed from the report.
func MarkKnown(report *models.Report, known Set) (acknowledged int, remaining int) {
	if report == nil {
		return 0, 0
	}
	if len(known) == 0 {
		return 0, CountFindings(report)
	}

	mark := func(category string, recs []models.TableRecommendation) {
		for i := range recs {
			fingerprint := FingerprintRecommendation(category, recs[i])
			if _, exists := known[fingerprint]; exists {
				recs[i].Acknowledged = true
				acknowledged++
			}
		}
	}

	mark("archive_candidate", report.ArchiveCandidates)
	mark("low_usage", report.LowUsage)
	mark("warning", report.WarningTables)

	return acknowledged, CountNew(report)
}

// FingerprintRecommendation returns a stable fingerprint for one finding.
// Volatile fields (volumes, savings, counts) are deliberately excluded so a
// finding stays acknowledged as its numbers drift.
func FingerprintRecommendation(category string, rec models.TableRecommendation) string {
	return hash("recommendation", category, rec.TableName, string(rec.CurrentTier))
}

type findingBucket struct {
	category string
	recs     []models.TableRecommendation
}

func findingBuckets(report *models.Report) []findingBucket {
	return []findingBucket{
		{"archive_candidate", report.ArchiveCandidates},
		{"low_usage", report.LowUsage},
		{"warning", report.WarningTables},
	}
}

func hash(parts ...string) string {
	canonical := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
