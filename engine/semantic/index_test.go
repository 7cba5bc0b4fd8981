package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
)

type memStore struct {
	records   map[string]VectorRecord
	results   []SearchResult
	searchErr error

	lastVersion string
	lastTopK    int
}

func newMemStore() *memStore {
	return &memStore{records: map[string]VectorRecord{}}
}

func (m *memStore) EnsureCollection(context.Context, int) error { return nil }

func (m *memStore) Upsert(_ context.Context, rec VectorRecord) error {
	m.records[rec.OutletID] = rec
	return nil
}

func (m *memStore) Search(_ context.Context, _ []float32, topK int, version string) ([]SearchResult, error) {
	m.lastVersion = version
	m.lastTopK = topK
	return m.results, m.searchErr
}

func TestIndex_AddPopulates(t *testing.T) {
	store := newMemStore()
	ix := NewIndex(store, "v1", 3)

	if ix.State() != StateEmpty {
		t.Fatalf("state = %q, want empty", ix.State())
	}
	err := ix.Add(context.Background(), "out-1", []float32{0.1, 0.2, 0.3}, "sum")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if ix.State() != StatePopulated {
		t.Errorf("state = %q, want populated", ix.State())
	}
	if store.records["out-1"].ModelVersion != "v1" {
		t.Errorf("stored version = %q, want v1", store.records["out-1"].ModelVersion)
	}
}

func TestIndex_AddDimensionMismatch(t *testing.T) {
	ix := NewIndex(newMemStore(), "v1", 3)
	err := ix.Add(context.Background(), "out-1", []float32{0.1, 0.2}, "sum")
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
	if ix.State() != StateEmpty {
		t.Errorf("a rejected add must not populate the index")
	}
}

func TestIndex_SearchDimensionMismatch(t *testing.T) {
	ix := NewIndex(newMemStore(), "v1", 3)
	_, err := ix.Search(context.Background(), []float32{0.1}, 5)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestIndex_SearchTargetsCurrentVersion(t *testing.T) {
	store := newMemStore()
	ix := NewIndex(store, "v1", 2)

	if _, err := ix.Search(context.Background(), []float32{0.1, 0.2}, 4); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.lastVersion != "v1" {
		t.Errorf("search version = %q, want v1", store.lastVersion)
	}
	if store.lastTopK != 4 {
		t.Errorf("topK = %d, want 4", store.lastTopK)
	}
}

func TestIndex_SearchTieBreak(t *testing.T) {
	store := newMemStore()
	store.results = []SearchResult{
		{OutletID: "out-c", Score: 0.9},
		{OutletID: "out-a", Score: 0.9},
		{OutletID: "out-b", Score: 0.95},
	}
	ix := NewIndex(store, "v1", 2)

	hits, err := ix.Search(context.Background(), []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"out-b", "out-a", "out-c"}
	for i, id := range want {
		if hits[i].OutletID != id {
			t.Errorf("hits[%d] = %q, want %q", i, hits[i].OutletID, id)
		}
	}
}

func TestIndex_SearchCarriesHitFields(t *testing.T) {
	store := newMemStore()
	store.results = []SearchResult{
		{OutletID: "out-1", Score: 0.92, Summary: "McDonald's KLCC", ModelVersion: "v1"},
	}
	ix := NewIndex(store, "v1", 2)

	hits, err := ix.Search(context.Background(), []float32{0.1, 0.2}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].OutletID != "out-1" || hits[0].Score != 0.92 || hits[0].Summary != "McDonald's KLCC" {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestIndex_SearchZeroTopK(t *testing.T) {
	ix := NewIndex(newMemStore(), "v1", 2)
	hits, err := ix.Search(context.Background(), []float32{0.1, 0.2}, 0)
	if err != nil || hits != nil {
		t.Fatalf("hits = %v, err = %v, want nil, nil", hits, err)
	}
}

func TestIndex_Rebuild(t *testing.T) {
	store := newMemStore()
	ix := NewIndex(store, "v1", 2)
	if err := ix.Add(context.Background(), "out-1", []float32{0.1, 0.2}, "s"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	old, err := ix.BeginRebuild("v2", 3)
	if err != nil {
		t.Fatalf("BeginRebuild: %v", err)
	}
	if old != "v1" {
		t.Errorf("old version = %q, want v1", old)
	}
	if ix.State() != StateRebuilding {
		t.Errorf("state = %q, want rebuilding", ix.State())
	}

	// A second rebuild cannot start while one runs.
	if _, err := ix.BeginRebuild("v3", 3); !errors.Is(err, domain.ErrRebuildInProgress) {
		t.Fatalf("err = %v, want ErrRebuildInProgress", err)
	}

	// Search keeps serving the old version and its dims during the rebuild.
	if _, err := ix.Search(context.Background(), []float32{0.1, 0.2}, 2); err != nil {
		t.Fatalf("Search during rebuild: %v", err)
	}
	if store.lastVersion != "v1" {
		t.Errorf("search version = %q, want v1 while rebuilding", store.lastVersion)
	}

	// Writes target the new version and its dims.
	if err := ix.Add(context.Background(), "out-1", []float32{0.1, 0.2, 0.3}, "s"); err != nil {
		t.Fatalf("re-embed Add: %v", err)
	}
	if store.records["out-1"].ModelVersion != "v2" {
		t.Errorf("re-embedded version = %q, want v2", store.records["out-1"].ModelVersion)
	}

	ix.CompleteRebuild()
	if ix.State() != StatePopulated {
		t.Errorf("state = %q, want populated", ix.State())
	}
	if ix.ModelVersion() != "v2" {
		t.Errorf("serving version = %q, want v2 after completion", ix.ModelVersion())
	}
	if _, err := ix.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 2); err != nil {
		t.Fatalf("Search after rebuild: %v", err)
	}
	if store.lastVersion != "v2" {
		t.Errorf("search version = %q, want v2 after completion", store.lastVersion)
	}
}

func TestIndex_RebuildWithNothingReembedded(t *testing.T) {
	store := newMemStore()
	ix := NewIndex(store, "v1", 2)
	if err := ix.Add(context.Background(), "out-1", []float32{0.1, 0.2}, "s"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := ix.BeginRebuild("v2", 2); err != nil {
		t.Fatalf("BeginRebuild: %v", err)
	}
	ix.CompleteRebuild()

	// Nothing landed under v2, so the old version keeps serving.
	if ix.State() != StatePopulated {
		t.Errorf("state = %q, want populated", ix.State())
	}
	if ix.ModelVersion() != "v1" {
		t.Errorf("serving version = %q, want v1", ix.ModelVersion())
	}
}

func TestIndex_EmptyRebuildOnEmptyIndex(t *testing.T) {
	ix := NewIndex(newMemStore(), "v1", 2)
	if _, err := ix.BeginRebuild("v2", 2); err != nil {
		t.Fatalf("BeginRebuild: %v", err)
	}
	ix.CompleteRebuild()
	if ix.State() != StateEmpty {
		t.Errorf("state = %q, want empty", ix.State())
	}
}
