// Package audit orchestrates a full workspace audit: collecting facts from
// the workspace, extracting table references from detection content,
// aggregating coverage and assembling the categorized savings report.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yaserfarook1/SentinalLens/internal/coverage"
	"github.com/yaserfarook1/SentinalLens/internal/models"
	"github.com/yaserfarook1/SentinalLens/internal/report"
	"github.com/yaserfarook1/SentinalLens/internal/workspace"
)

// Store persists runs and their reports. The runner treats persistence as
// best effort when no store is configured.
type Store interface {
	SaveRun(ctx context.Context, run *models.AuditRun) error
	SaveReport(ctx context.Context, runID string, rep *models.Report) error
}

// Options configures a Runner.
type Options struct {
	Workspace workspace.Workspace
	Store     Store
	Region    string
	// Concurrency bounds the extraction worker pool.
	Concurrency int
	// ExcludeTable filters tables out of the audit entirely.
	ExcludeTable func(name string) bool
	// Progress receives an event at every step transition.
	Progress func(models.ProgressEvent)
	Logger   *slog.Logger

	retry retryConfig
}

// Runner executes audit runs against one workspace collaborator.
type Runner struct {
	opts Options
}

// NewRunner validates options and returns a runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Workspace == nil {
		return nil, fmt.Errorf("audit: workspace is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.retry.maxAttempts == 0 {
		opts.retry = defaultRetryConfig()
	}
	return &Runner{opts: opts}, nil
}

// Params identifies one audit run.
type Params struct {
	WorkspaceID  string
	LookbackDays int
}

// runState accumulates intermediate results across steps.
type runState struct {
	tables      []models.TableFact
	volumes     map[string]float64
	sources     []models.QuerySource
	connectors  models.ConnectorMapping
	prices      models.TierPrices
	extractions []models.SourceExtraction
	coverage    map[string]models.CoverageEntry
	report      *models.Report

	partial    []string
	ruleCount  int
	wbCount    int
	huntCount  int
}

// step is one unit of the fixed audit sequence. Critical step failures abort
// the run; non-critical failures degrade it to partial data.
type step struct {
	name     string
	critical bool
	remote   bool
	fn       func(ctx context.Context, st *runState) error
}

// Run executes the fixed audit step sequence for one workspace and returns
// the finished run. Cancellation is honored at step boundaries.
func (r *Runner) Run(ctx context.Context, params Params) (*models.AuditRun, error) {
	if params.WorkspaceID == "" {
		return nil, fmt.Errorf("audit: workspace ID is required")
	}
	if params.LookbackDays <= 0 {
		params.LookbackDays = 90
	}

	run := &models.AuditRun{
		ID:           uuid.NewString(),
		WorkspaceID:  params.WorkspaceID,
		LookbackDays: params.LookbackDays,
		Status:       models.RunQueued,
	}
	return run, r.Execute(ctx, run)
}

// Execute drives an already-allocated run through the step sequence. The API
// server allocates the run up front so its ID is known before work starts.
func (r *Runner) Execute(ctx context.Context, run *models.AuditRun) error {
	st := &runState{}
	steps := r.plan(run, st)

	run.Status = models.RunRunning
	run.StartedAt = time.Now().UTC()
	r.saveRun(ctx, run)

	logger := r.opts.Logger.With(
		slog.String("run_id", run.ID),
		slog.String("workspace_id", run.WorkspaceID),
	)
	logger.Info("audit run started", slog.Int("lookback_days", run.LookbackDays))

	for i, s := range steps {
		if err := contextError(ctx); err != nil {
			return r.fail(ctx, run, i, len(steps), s.name, fmt.Errorf("cancelled: %w", err))
		}

		run.StepIndex = i
		r.emit(run, i, len(steps), s.name, "running")

		started := time.Now()
		err := r.runStep(ctx, s)
		record := models.StepRecord{
			Index:     i,
			Name:      s.name,
			StartedAt: started.UTC(),
			Duration:  time.Since(started),
		}

		switch {
		case err == nil:
			run.Steps = append(run.Steps, record)
			r.emit(run, i, len(steps), s.name, "completed")

		case contextError(ctx) != nil:
			record.Error = err.Error()
			run.Steps = append(run.Steps, record)
			return r.fail(ctx, run, i, len(steps), s.name, fmt.Errorf("cancelled: %w", contextError(ctx)))

		case s.critical:
			record.Error = err.Error()
			run.Steps = append(run.Steps, record)
			return r.fail(ctx, run, i, len(steps), s.name, err)

		default:
			record.Warning = err.Error()
			run.Steps = append(run.Steps, record)
			st.partial = append(st.partial, fmt.Sprintf("%s unavailable: %v", s.name, err))
			logger.Warn("step degraded", slog.String("step", s.name), slog.String("error", err.Error()))
			r.emit(run, i, len(steps), s.name, "degraded")
		}
	}

	now := time.Now().UTC()
	run.Status = models.RunCompleted
	run.CompletedAt = &now
	run.Report = st.report
	r.saveRun(ctx, run)

	logger.Info("audit run completed",
		slog.Duration("duration", now.Sub(run.StartedAt)),
		slog.Int("tables", len(st.tables)),
		slog.Int("archive_candidates", len(st.report.ArchiveCandidates)),
	)
	return nil
}

func (r *Runner) runStep(ctx context.Context, s step) error {
	if !s.remote {
		return s.fn(ctx, nil)
	}
	return executeWithRetry(ctx, r.opts.retry, func() error { return s.fn(ctx, nil) })
}

// plan binds the step sequence to one run's state. Steps close over st so
// runStep stays uniform.
func (r *Runner) plan(run *models.AuditRun, st *runState) []step {
	ws := r.opts.Workspace

	return []step{
		{name: "inventory_tables", critical: true, remote: true, fn: func(ctx context.Context, _ *runState) error {
			tables, err := ws.ListTables(ctx, run.WorkspaceID)
			if err != nil {
				return err
			}
			st.tables = r.filterTables(tables)
			return nil
		}},
		{name: "ingestion_volumes", critical: true, remote: true, fn: func(ctx context.Context, _ *runState) error {
			volumes, err := ws.IngestionVolumes(ctx, run.WorkspaceID, run.LookbackDays)
			if err != nil {
				return err
			}
			st.volumes = volumes
			for i := range st.tables {
				st.tables[i].IngestionGBPerDay = volumes[st.tables[i].Name]
			}
			return nil
		}},
		{name: "rule_definitions", remote: true, fn: func(ctx context.Context, _ *runState) error {
			rules, err := ws.ListRules(ctx, run.WorkspaceID)
			if err != nil {
				return err
			}
			st.ruleCount = len(rules)
			st.sources = append(st.sources, rules...)
			return nil
		}},
		{name: "workbook_definitions", remote: true, fn: func(ctx context.Context, _ *runState) error {
			workbooks, err := ws.ListWorkbooks(ctx, run.WorkspaceID)
			if err != nil {
				return err
			}
			st.wbCount = len(workbooks)
			st.sources = append(st.sources, workbooks...)
			return nil
		}},
		{name: "hunt_query_definitions", remote: true, fn: func(ctx context.Context, _ *runState) error {
			hunts, err := ws.ListHuntQueries(ctx, run.WorkspaceID)
			if err != nil {
				return err
			}
			st.huntCount = len(hunts)
			st.sources = append(st.sources, hunts...)
			return nil
		}},
		{name: "data_connectors", remote: true, fn: func(ctx context.Context, _ *runState) error {
			connectors, err := ws.ListConnectors(ctx, run.WorkspaceID)
			if err != nil {
				return err
			}
			st.connectors = connectors
			return nil
		}},
		{name: "extract_query_sources", critical: true, fn: func(ctx context.Context, _ *runState) error {
			pool := NewExtractorPool(r.opts.Concurrency)
			extractions, err := pool.ExtractAll(ctx, st.sources)
			if err != nil {
				return err
			}
			st.extractions = extractions
			return nil
		}},
		{name: "aggregate_coverage", critical: true, fn: func(_ context.Context, _ *runState) error {
			st.coverage = coverage.Aggregate(st.tables, st.extractions)
			return nil
		}},
		{name: "tier_prices", critical: true, remote: true, fn: func(ctx context.Context, _ *runState) error {
			prices, err := ws.TierPrices(ctx, r.opts.Region)
			if err != nil {
				return fmt.Errorf("pricing unavailable: %w", err)
			}
			st.prices = prices
			return nil
		}},
		{name: "assemble_report", critical: true, fn: func(_ context.Context, _ *runState) error {
			st.report = report.Assemble(report.Input{
				RunID:       run.ID,
				WorkspaceID: run.WorkspaceID,
				Tables:      st.tables,
				Coverage:    st.coverage,
				Connectors:  st.connectors,
				Prices:      st.prices,
				Extractions: st.extractions,
				Metadata: models.ExecutionMetadata{
					GeneratedAt:         time.Now().UTC(),
					Duration:            time.Since(run.StartedAt).Round(time.Millisecond).String(),
					LookbackDays:        run.LookbackDays,
					RulesAnalyzed:       st.ruleCount,
					WorkbooksAnalyzed:   st.wbCount,
					HuntQueriesAnalyzed: st.huntCount,
					PartialData:         st.partial,
				},
			})
			run.Status = models.RunAwaitingReport
			return nil
		}},
		{name: "persist_report", fn: func(ctx context.Context, _ *runState) error {
			if r.opts.Store == nil {
				return nil
			}
			return r.opts.Store.SaveReport(ctx, run.ID, st.report)
		}},
	}
}

func (r *Runner) filterTables(tables []models.TableFact) []models.TableFact {
	if r.opts.ExcludeTable == nil {
		return tables
	}
	kept := tables[:0]
	for _, t := range tables {
		if !r.opts.ExcludeTable(t.Name) {
			kept = append(kept, t)
		}
	}
	return kept
}

func (r *Runner) fail(ctx context.Context, run *models.AuditRun, index, total int, stepName string, err error) error {
	now := time.Now().UTC()
	run.Status = models.RunFailed
	run.CompletedAt = &now
	run.Error = err.Error()
	r.saveRun(ctx, run)

	r.opts.Logger.Error("audit run failed",
		slog.String("run_id", run.ID),
		slog.String("step", stepName),
		slog.String("error", err.Error()),
	)
	r.emit(run, index, total, stepName, "failed")
	return &StepError{Step: stepName, Critical: true, Err: err}
}

func (r *Runner) emit(run *models.AuditRun, index, total int, stepName, status string) {
	if r.opts.Progress == nil {
		return
	}
	r.opts.Progress(models.ProgressEvent{
		RunID:      run.ID,
		StepIndex:  index,
		TotalSteps: total,
		StepName:   stepName,
		Status:     status,
		Timestamp:  time.Now().UTC(),
	})
}

// saveRun persists run state transitions when a store is configured. Failures
// are logged, not fatal: the in-memory run remains authoritative.
func (r *Runner) saveRun(ctx context.Context, run *models.AuditRun) {
	if r.opts.Store == nil {
		return
	}
	if err := r.opts.Store.SaveRun(ctx, run); err != nil {
		r.opts.Logger.Warn("persisting run state failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}
