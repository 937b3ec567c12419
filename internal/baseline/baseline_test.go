package baseline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

func rec(name string, tier models.Tier) models.TableRecommendation {
	return models.TableRecommendation{TableName: name, CurrentTier: tier}
}

func TestCollectFingerprintsDeterministic(t *testing.T) {
	reportA := &models.Report{
		ArchiveCandidates: []models.TableRecommendation{
			{TableName: "AuditLogs", CurrentTier: models.TierHot, IngestionGBPerDay: 0.1, CoverageCount: 0},
		},
		LowUsage: []models.TableRecommendation{
			{TableName: "Rare", CurrentTier: models.TierHot, CoverageCount: 1},
		},
		WarningTables: []models.TableRecommendation{
			{TableName: "Ambiguous", CurrentTier: models.TierBasic},
		},
	}

	// Same findings with different volatile numbers must fingerprint the same.
	reportB := &models.Report{
		ArchiveCandidates: []models.TableRecommendation{
			{TableName: "AuditLogs", CurrentTier: models.TierHot, IngestionGBPerDay: 7.7, CoverageCount: 0},
		},
		LowUsage: []models.TableRecommendation{
			{TableName: "Rare", CurrentTier: models.TierHot, CoverageCount: 2},
		},
		WarningTables: []models.TableRecommendation{
			{TableName: "Ambiguous", CurrentTier: models.TierBasic},
		},
	}

	fingerprintsA := CollectFingerprints(reportA)
	fingerprintsB := CollectFingerprints(reportB)
	if !reflect.DeepEqual(fingerprintsA, fingerprintsB) {
		t.Fatalf("expected deterministic fingerprints, got %v vs %v", fingerprintsA, fingerprintsB)
	}
	if len(fingerprintsA) != 3 {
		t.Fatalf("expected 3 fingerprints, got %d", len(fingerprintsA))
	}
}

func TestMarkKnownAcknowledgesWithoutRemoving(t *testing.T) {
	report := &models.Report{
		ArchiveCandidates: []models.TableRecommendation{
			rec("AuditLogs", models.TierHot),
			rec("OldAlerts", models.TierHot),
		},
		LowUsage: []models.TableRecommendation{
			rec("Rare", models.TierBasic),
		},
	}

	known := Set{}
	AddAll(known, []string{
		FingerprintRecommendation("archive_candidate", rec("AuditLogs", models.TierHot)),
		FingerprintRecommendation("low_usage", rec("Rare", models.TierBasic)),
	})

	acknowledged, remaining := MarkKnown(report, known)
	if acknowledged != 2 {
		t.Fatalf("expected 2 acknowledged, got %d", acknowledged)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 new finding, got %d", remaining)
	}

	// Nothing is dropped from the report.
	if len(report.ArchiveCandidates) != 2 || len(report.LowUsage) != 1 {
		t.Fatalf("baseline must not remove findings")
	}
	if !report.ArchiveCandidates[0].Acknowledged || report.ArchiveCandidates[1].Acknowledged {
		t.Fatalf("unexpected acknowledgement flags: %+v", report.ArchiveCandidates)
	}
	if !report.LowUsage[0].Acknowledged {
		t.Fatalf("expected low-usage finding acknowledged")
	}
}

func TestMarkKnownDistinguishesCategories(t *testing.T) {
	report := &models.Report{
		ArchiveCandidates: []models.TableRecommendation{rec("AuditLogs", models.TierHot)},
	}

	// Known as a low-usage finding, not as an archive candidate.
	known := Set{}
	AddAll(known, []string{
		FingerprintRecommendation("low_usage", rec("AuditLogs", models.TierHot)),
	})

	acknowledged, remaining := MarkKnown(report, known)
	if acknowledged != 0 || remaining != 1 {
		t.Fatalf("category must be part of the fingerprint: ack=%d remaining=%d", acknowledged, remaining)
	}
}

func TestLoadMissingFileReturnsEmptySet(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %d entries", len(set))
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "baseline.json")

	set := Set{}
	AddAll(set, []string{"bbb", "aaa", "aaa", ""})
	if err := Save(path, set); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading baseline: %v", err)
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("baseline is not valid JSON: %v", err)
	}
	if file.Version != fileVersion {
		t.Fatalf("expected version %d, got %d", fileVersion, file.Version)
	}
	if !reflect.DeepEqual(file.Fingerprints, []string{"aaa", "bbb"}) {
		t.Fatalf("expected sorted unique fingerprints, got %v", file.Fingerprints)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(Sorted(loaded), []string{"aaa", "bbb"}) {
		t.Fatalf("unexpected round-trip: %v", Sorted(loaded))
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := os.WriteFile(path, []byte(`{"version":99,"fingerprints":[]}`), 0o644); err != nil {
		t.Fatalf("writing baseline: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}
