package workspace

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

// Snapshot is a Workspace backed by a YAML file. It serves offline audits and
// deterministic tests without touching the management API.
type Snapshot struct {
	WorkspaceID string              `yaml:"workspace_id"`
	Tables      []snapshotTable     `yaml:"tables"`
	Rules       []snapshotQuery     `yaml:"rules"`
	Workbooks   []snapshotWorkbook  `yaml:"workbooks"`
	HuntQueries []snapshotQuery     `yaml:"hunt_queries"`
	Connectors  []snapshotConnector `yaml:"connectors"`
	Prices      snapshotPrices      `yaml:"prices"`
}

type snapshotTable struct {
	Name              string  `yaml:"name"`
	Tier              string  `yaml:"tier"`
	IngestionGBPerDay float64 `yaml:"ingestion_gb_per_day"`
	RetentionDays     int     `yaml:"retention_days"`
}

type snapshotQuery struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Query string `yaml:"query"`
}

type snapshotWorkbook struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Queries []string `yaml:"queries"`
}

type snapshotConnector struct {
	Name   string   `yaml:"name"`
	Tables []string `yaml:"tables"`
}

type snapshotPrices struct {
	Region string             `yaml:"region"`
	PerGB  map[string]float64 `yaml:"per_gb"`
}

// LoadSnapshot reads and validates a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	if len(snap.Prices.PerGB) == 0 {
		return nil, fmt.Errorf("snapshot %s has no tier prices", path)
	}
	return &snap, nil
}

func (s *Snapshot) ListTables(_ context.Context, _ string) ([]models.TableFact, error) {
	tables := make([]models.TableFact, 0, len(s.Tables))
	for _, t := range s.Tables {
		tables = append(tables, models.TableFact{
			Name:          t.Name,
			CurrentTier:   models.Tier(t.Tier),
			RetentionDays: t.RetentionDays,
		})
	}
	return tables, nil
}

func (s *Snapshot) IngestionVolumes(_ context.Context, _ string, _ int) (map[string]float64, error) {
	volumes := make(map[string]float64, len(s.Tables))
	for _, t := range s.Tables {
		volumes[t.Name] = t.IngestionGBPerDay
	}
	return volumes, nil
}

func (s *Snapshot) ListRules(_ context.Context, _ string) ([]models.QuerySource, error) {
	return s.sources(s.Rules, models.SourceRule), nil
}

func (s *Snapshot) ListWorkbooks(_ context.Context, _ string) ([]models.QuerySource, error) {
	var sources []models.QuerySource
	for _, wb := range s.Workbooks {
		for i, q := range wb.Queries {
			sources = append(sources, models.QuerySource{
				ID:    fmt.Sprintf("%s#%d", wb.ID, i),
				Name:  wb.Name,
				Kind:  models.SourceWorkbook,
				Query: q,
			})
		}
	}
	return sources, nil
}

func (s *Snapshot) ListHuntQueries(_ context.Context, _ string) ([]models.QuerySource, error) {
	return s.sources(s.HuntQueries, models.SourceHuntQuery), nil
}

func (s *Snapshot) ListConnectors(_ context.Context, _ string) (models.ConnectorMapping, error) {
	mapping := make(models.ConnectorMapping)
	for _, conn := range s.Connectors {
		for _, table := range conn.Tables {
			mapping[table] = append(mapping[table], conn.Name)
		}
	}
	return mapping, nil
}

func (s *Snapshot) TierPrices(_ context.Context, _ string) (models.TierPrices, error) {
	prices := models.TierPrices{
		Region:      s.Prices.Region,
		PerGB:       make(map[models.Tier]float64, len(s.Prices.PerGB)),
		RetrievedAt: time.Now().UTC(),
	}
	for tier, price := range s.Prices.PerGB {
		prices.PerGB[models.Tier(tier)] = price
	}
	return prices, nil
}

func (s *Snapshot) sources(queries []snapshotQuery, kind models.SourceKind) []models.QuerySource {
	out := make([]models.QuerySource, 0, len(queries))
	for _, q := range queries {
		out = append(out, models.QuerySource{ID: q.ID, Name: q.Name, Kind: kind, Query: q.Query})
	}
	return out
}
