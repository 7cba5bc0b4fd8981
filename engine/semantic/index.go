package semantic

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
)

// State is the lifecycle phase of the index.
type State string

const (
	StateEmpty      State = "empty"
	StatePopulated  State = "populated"
	StateRebuilding State = "rebuilding"
)

// Store is what the Index needs from the vector backend.
type Store interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, rec VectorRecord) error
	Search(ctx context.Context, embedding []float32, topK int, modelVersion string) ([]SearchResult, error)
}

// Index wraps the vector store with an embedding-model contract: a single
// serving model version and dimensionality that every stored and queried
// vector must match. During a rebuild, writes target the next version while
// search keeps serving the old one, so results never go sparse mid-rebuild;
// CompleteRebuild promotes the next version once vectors exist under it.
type Index struct {
	store Store

	mu           sync.RWMutex
	state        State
	prevState    State
	modelVersion string
	dims         int
	nextVersion  string
	nextDims     int
	count        int
}

// NewIndex creates an empty index bound to the given model version and
// dimensionality.
func NewIndex(store Store, modelVersion string, dims int) *Index {
	return &Index{
		store:        store,
		state:        StateEmpty,
		modelVersion: modelVersion,
		dims:         dims,
	}
}

// State reports the current lifecycle phase.
func (ix *Index) State() State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state
}

// ModelVersion reports the model version search currently targets.
func (ix *Index) ModelVersion() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.modelVersion
}

// Prepare makes sure the backing collection exists for the configured dims.
func (ix *Index) Prepare(ctx context.Context) error {
	ix.mu.RLock()
	dims := ix.dims
	ix.mu.RUnlock()
	return ix.store.EnsureCollection(ctx, dims)
}

// writeTarget is the version and dims new vectors are written under: the
// next version during a rebuild, the serving version otherwise.
func (ix *Index) writeTarget() (string, int) {
	if ix.state == StateRebuilding {
		return ix.nextVersion, ix.nextDims
	}
	return ix.modelVersion, ix.dims
}

// Add stores one outlet vector under the current write target.
func (ix *Index) Add(ctx context.Context, outletID string, embedding []float32, summary string) error {
	ix.mu.Lock()
	version, dims := ix.writeTarget()
	if len(embedding) != dims {
		ix.mu.Unlock()
		return fmt.Errorf("add outlet %s: got %d dims, index expects %d: %w",
			outletID, len(embedding), dims, domain.ErrDimensionMismatch)
	}
	ix.mu.Unlock()

	err := ix.store.Upsert(ctx, VectorRecord{
		OutletID:     outletID,
		Embedding:    embedding,
		ModelVersion: version,
		Summary:      summary,
	})
	if err != nil {
		return err
	}

	ix.mu.Lock()
	ix.count++
	if ix.state == StateEmpty {
		ix.state = StatePopulated
	}
	ix.mu.Unlock()
	return nil
}

// Search runs k-NN cosine search over current-version vectors. Results come
// back best first; equal scores are ordered by outlet ID so repeated queries
// agree with each other.
func (ix *Index) Search(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredOutlet, error) {
	ix.mu.RLock()
	dims, version := ix.dims, ix.modelVersion
	ix.mu.RUnlock()

	if len(embedding) != dims {
		return nil, fmt.Errorf("search: got %d dims, index expects %d: %w",
			len(embedding), dims, domain.ErrDimensionMismatch)
	}
	if topK <= 0 {
		return nil, nil
	}

	raw, err := ix.store.Search(ctx, embedding, topK, version)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.ScoredOutlet, len(raw))
	for i, r := range raw {
		hits[i] = domain.ScoredOutlet{
			OutletID: r.OutletID,
			Score:    r.Score,
			Summary:  r.Summary,
		}
	}
	// The backend already ranks by score; re-sorting pins down tie order.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].OutletID < hits[j].OutletID
	})
	return hits, nil
}

// BeginRebuild starts re-embedding under a new model version and
// dimensionality. Writes switch to the new version immediately; search keeps
// serving the old version until CompleteRebuild promotes the new one, so
// old-version vectors stay searchable while their replacements land.
func (ix *Index) BeginRebuild(newVersion string, newDims int) (string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.state == StateRebuilding {
		return "", domain.ErrRebuildInProgress
	}
	old := ix.modelVersion
	ix.prevState = ix.state
	ix.state = StateRebuilding
	ix.nextVersion = newVersion
	ix.nextDims = newDims
	ix.count = 0
	return old, nil
}

// CompleteRebuild promotes the new version to serving. If the rebuild wrote
// nothing, the old version keeps serving and the index returns to its prior
// state rather than going dark.
func (ix *Index) CompleteRebuild() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.state != StateRebuilding {
		return
	}
	if ix.count > 0 {
		ix.modelVersion = ix.nextVersion
		ix.dims = ix.nextDims
		ix.state = StatePopulated
	} else {
		ix.state = ix.prevState
	}
}
