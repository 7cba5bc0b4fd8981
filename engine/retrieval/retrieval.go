// Package retrieval orchestrates query-time retrieval: embed the question,
// search the vector index, and optionally narrow hits to the catchment of a
// reference outlet.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/pkg/ollama"
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (ollama.Embedding, error)
}

// Searcher is the vector index search surface.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredOutlet, error)
}

// CatchmentReader reports the neighbors within catchment distance of an
// outlet, keyed by outlet ID with the stored distance in km.
type CatchmentReader interface {
	CatchmentOf(ctx context.Context, outletID string) (map[string]float64, error)
}

// Orchestrator wires the retrieval stages together.
type Orchestrator struct {
	embedder  Embedder
	searcher  Searcher
	catchment CatchmentReader
	log       *slog.Logger
}

// New creates a retrieval orchestrator.
func New(embedder Embedder, searcher Searcher, catchment CatchmentReader, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{embedder: embedder, searcher: searcher, catchment: catchment, log: log}
}

// Retrieve embeds the query and returns the topK most similar outlets. When
// localOutletID is set, hits are narrowed to that outlet's catchment plus the
// outlet itself. If narrowing would leave nothing, the unfiltered hits come
// back with Relaxed set so the caller can say the locality constraint was
// dropped.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, topK int, localOutletID string) (domain.RetrievalResult, error) {
	ctx, span := otel.Tracer("retrieval").Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("top_k", topK), attribute.Bool("locality", localOutletID != ""))

	emb, err := o.embedder.Embed(ctx, query)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("embed query: %w: %w", domain.ErrEmbeddingService, err)
	}

	hits, err := o.searcher.Search(ctx, emb.Values, topK)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("vector search: %w", err)
	}

	if localOutletID == "" || len(hits) == 0 {
		return domain.RetrievalResult{Hits: hits}, nil
	}

	neighbors, err := o.catchment.CatchmentOf(ctx, localOutletID)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("catchment of %s: %w", localOutletID, err)
	}

	local := make([]domain.ScoredOutlet, 0, len(hits))
	for _, h := range hits {
		if h.OutletID == localOutletID {
			local = append(local, h)
			continue
		}
		if _, ok := neighbors[h.OutletID]; ok {
			local = append(local, h)
		}
	}
	if len(local) == 0 {
		o.log.Info("no hits inside catchment, relaxing locality",
			"outlet_id", localOutletID, "hits", len(hits))
		return domain.RetrievalResult{Hits: hits, Relaxed: true}, nil
	}
	return domain.RetrievalResult{Hits: local}, nil
}
