package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yaserfarook1/SentinalLens/internal/kql"
	"github.com/yaserfarook1/SentinalLens/internal/models"
)

type extractJob struct {
	index  int
	source models.QuerySource
}

type extractResult struct {
	index      int
	extraction models.SourceExtraction
}

// ExtractorPool fans query sources out across a bounded set of workers.
// Results are reassembled in input order so runs stay deterministic.
type ExtractorPool struct {
	workers int
	jobs    chan extractJob
	results chan extractResult
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewExtractorPool creates a pool with the given worker count.
func NewExtractorPool(workers int) *ExtractorPool {
	if workers <= 0 {
		workers = 1
	}
	return &ExtractorPool{
		workers: workers,
		jobs:    make(chan extractJob, workers*2),
		results: make(chan extractResult, workers*2),
	}
}

// Start launches the workers. Calling Start twice is a no-op.
func (p *ExtractorPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *ExtractorPool) worker(id int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extractor worker panic recovered",
				slog.Int("worker_id", id),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
		p.wg.Done()
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			res := extractResult{
				index: job.index,
				extraction: models.SourceExtraction{
					Source: job.source,
					Result: kql.Extract(job.source.Query),
				},
			}
			// The send must stay cancellable: once the consumer stops
			// draining results, an unguarded send would block forever.
			select {
			case <-p.ctx.Done():
				return
			case p.results <- res:
			}
		}
	}
}

// ExtractAll processes every source and returns extractions in input order.
// The pool is single-use: create a fresh one per run.
func (p *ExtractorPool) ExtractAll(ctx context.Context, sources []models.QuerySource) ([]models.SourceExtraction, error) {
	p.Start(ctx)
	// Cancel before waiting: workers blocked on a result send need the pool
	// context closed to unblock, or Wait would never return after the consumer
	// loop exits on cancellation.
	defer func() {
		p.cancel()
		p.wg.Wait()
	}()

	go func() {
		for i, source := range sources {
			select {
			case <-p.ctx.Done():
				return
			case p.jobs <- extractJob{index: i, source: source}:
			}
		}
		close(p.jobs)
	}()

	extractions := make([]models.SourceExtraction, len(sources))
	for range sources {
		select {
		case <-p.ctx.Done():
			return nil, contextError(p.ctx)
		case res := <-p.results:
			extractions[res.index] = res.extraction
		}
	}

	return extractions, nil
}
