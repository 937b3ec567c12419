// Package workspace defines the collaborator surface the audit consumes and
// provides two implementations: a rate-limited HTTP client and a file-backed
// snapshot for offline audits and tests.
package workspace

import (
	"context"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

// Workspace is the set of remote collaborator calls an audit run performs.
// Implementations must be safe for use by concurrent runs.
type Workspace interface {
	// ListTables returns every table in the workspace with tier and
	// retention metadata. Ingestion volumes are filled in separately.
	ListTables(ctx context.Context, workspaceID string) ([]models.TableFact, error)

	// IngestionVolumes returns GB/day per table over the lookback window.
	IngestionVolumes(ctx context.Context, workspaceID string, lookbackDays int) (map[string]float64, error)

	// ListRules returns analytics rules as query sources.
	ListRules(ctx context.Context, workspaceID string) ([]models.QuerySource, error)

	// ListWorkbooks returns one query source per embedded workbook query.
	ListWorkbooks(ctx context.Context, workspaceID string) ([]models.QuerySource, error)

	// ListHuntQueries returns saved hunt queries as query sources.
	ListHuntQueries(ctx context.Context, workspaceID string) ([]models.QuerySource, error)

	// ListConnectors maps table names to the data connectors feeding them.
	ListConnectors(ctx context.Context, workspaceID string) (models.ConnectorMapping, error)

	// TierPrices returns current per-GB prices for the region.
	TierPrices(ctx context.Context, region string) (models.TierPrices, error)
}
