// Package ingest runs scraped outlet records through the
// validate-summarize-embed-store pipeline, one at a time or in bulk.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/pkg/fn"
	"github.com/syahrilshahiran/mindhive-engine/pkg/metrics"
	"github.com/syahrilshahiran/mindhive-engine/pkg/ollama"
	"github.com/syahrilshahiran/mindhive-engine/pkg/resilience"
)

// BulkJobName keys the mutual-exclusion lock for bulk upserts.
const BulkJobName = "bulk-upsert"

// Embedder turns an outlet summary into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (ollama.Embedding, error)
}

// Indexer stores an outlet vector in the semantic index.
type Indexer interface {
	Add(ctx context.Context, outletID string, embedding []float32, summary string) error
}

// OutletWriter persists validated outlets.
type OutletWriter interface {
	Upsert(ctx context.Context, o domain.Outlet) error
}

// summarized is an outlet with its embedding text attached.
type summarized struct {
	outlet  domain.Outlet
	summary string
}

// embedded adds the vector produced from the summary.
type embedded struct {
	summarized
	emb ollama.Embedding
}

// Pipeline is the ingestion flow shared by the NATS consumer and bulk jobs.
type Pipeline struct {
	embedder Embedder
	index    Indexer
	outlets  OutletWriter
	breaker  *resilience.Breaker
	locks    *resilience.JobLock
	log      *slog.Logger

	ingested *metrics.Counter
	failed   *metrics.Counter
	rejected *metrics.Counter

	run fn.Stage[domain.ScrapedOutlet, domain.Outlet]
}

// New builds an ingestion pipeline. The breaker guards the embedding service;
// transient embed failures are retried before it trips.
func New(embedder Embedder, index Indexer, outlets OutletWriter, locks *resilience.JobLock, reg *metrics.Registry, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		embedder: embedder,
		index:    index,
		outlets:  outlets,
		locks:    locks,
		log:      log,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
	if reg != nil {
		p.ingested = reg.Counter("ingest_outlets_total", "Outlets ingested successfully.")
		p.failed = reg.Counter("ingest_failures_total", "Outlets that failed ingestion.")
		p.rejected = reg.Counter("ingest_rejected_total", "Outlets rejected at validation.")
	}
	p.run = fn.Then(
		fn.Then(p.validateStage(), p.summarizeStage()),
		fn.Then(p.embedStage(), p.storeStage()),
	)
	return p
}

func (p *Pipeline) validateStage() fn.Stage[domain.ScrapedOutlet, domain.Outlet] {
	return func(_ context.Context, raw domain.ScrapedOutlet) fn.Result[domain.Outlet] {
		return fn.FromPair(domain.ValidateScraped(raw))
	}
}

func (p *Pipeline) summarizeStage() fn.Stage[domain.Outlet, summarized] {
	return fn.MapStage(func(o domain.Outlet) summarized {
		return summarized{outlet: o, summary: o.Summary()}
	})
}

func (p *Pipeline) embedStage() fn.Stage[summarized, embedded] {
	raw := func(ctx context.Context, s summarized) fn.Result[embedded] {
		emb, err := p.embedder.Embed(ctx, s.summary)
		if err != nil {
			return fn.Errf[embedded]("embed %s: %w: %w", s.outlet.ID, domain.ErrEmbeddingService, err)
		}
		return fn.Ok(embedded{summarized: s, emb: emb})
	}
	return fn.RetryStage(fn.DefaultRetry, resilience.BreakerStage(p.breaker, raw))
}

func (p *Pipeline) storeStage() fn.Stage[embedded, domain.Outlet] {
	return func(ctx context.Context, e embedded) fn.Result[domain.Outlet] {
		if err := p.outlets.Upsert(ctx, e.outlet); err != nil {
			return fn.Errf[domain.Outlet]("store outlet %s: %w", e.outlet.ID, err)
		}
		if err := p.index.Add(ctx, e.outlet.ID, e.emb.Values, e.summary); err != nil {
			return fn.Errf[domain.Outlet]("index outlet %s: %w", e.outlet.ID, err)
		}
		return fn.Ok(e.outlet)
	}
}

// IngestOne runs a single scraped record through the full pipeline.
func (p *Pipeline) IngestOne(ctx context.Context, raw domain.ScrapedOutlet) error {
	_, err := p.run(ctx, raw).Unwrap()
	switch {
	case err == nil:
		if p.ingested != nil {
			p.ingested.Inc()
		}
		return nil
	case errors.Is(err, domain.ErrInvalidOutlet) || errors.Is(err, domain.ErrInvalidCoordinate):
		if p.rejected != nil {
			p.rejected.Inc()
		}
		return err
	default:
		if p.failed != nil {
			p.failed.Inc()
		}
		return err
	}
}

// BulkUpsert ingests a batch of scraped records, collecting per-item failures
// instead of aborting. Only one bulk job runs at a time.
func (p *Pipeline) BulkUpsert(ctx context.Context, raws []domain.ScrapedOutlet) (domain.Report, error) {
	if !p.locks.TryAcquire(BulkJobName) {
		return domain.Report{}, fmt.Errorf("bulk upsert: %w", domain.ErrRebuildInProgress)
	}
	defer p.locks.Release(BulkJobName)

	var report domain.Report
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := p.IngestOne(ctx, raw)
		switch {
		case err == nil:
			report.Processed++
		case errors.Is(err, domain.ErrInvalidOutlet) || errors.Is(err, domain.ErrInvalidCoordinate):
			p.log.Warn("skipping invalid record", "source_id", raw.SourceID, "err", err)
			report.Skip()
		default:
			report.Fail(raw.SourceID, err)
		}
	}
	p.log.Info("bulk upsert done",
		"processed", report.Processed, "skipped", report.Skipped, "failed", len(report.Failures))
	return report, nil
}
