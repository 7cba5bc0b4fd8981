package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/pkg/ollama"
)

type fakeEmbedder struct {
	emb ollama.Embedding
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) (ollama.Embedding, error) {
	return f.emb, f.err
}

type fakeSearcher struct {
	hits []domain.ScoredOutlet
	err  error
}

func (f *fakeSearcher) Search(context.Context, []float32, int) ([]domain.ScoredOutlet, error) {
	return f.hits, f.err
}

type fakeCatchment struct {
	neighbors map[string]float64
	err       error
}

func (f *fakeCatchment) CatchmentOf(context.Context, string) (map[string]float64, error) {
	return f.neighbors, f.err
}

func testOrchestrator(hits []domain.ScoredOutlet, neighbors map[string]float64) *Orchestrator {
	return New(
		&fakeEmbedder{emb: ollama.Embedding{Values: []float32{0.1, 0.2}, ModelVersion: "v1"}},
		&fakeSearcher{hits: hits},
		&fakeCatchment{neighbors: neighbors},
		nil,
	)
}

func TestRetrieve_NoLocality(t *testing.T) {
	hits := []domain.ScoredOutlet{
		{OutletID: "out-1", Score: 0.9},
		{OutletID: "out-2", Score: 0.8},
	}
	res, err := testOrchestrator(hits, nil).Retrieve(context.Background(), "24 hour outlets", 5, "")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Relaxed {
		t.Error("no locality given, nothing to relax")
	}
	if len(res.Hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(res.Hits))
	}
}

func TestRetrieve_LocalityKeepsCatchmentAndSelf(t *testing.T) {
	hits := []domain.ScoredOutlet{
		{OutletID: "out-ref", Score: 0.95},
		{OutletID: "out-near", Score: 0.9},
		{OutletID: "out-far", Score: 0.85},
	}
	neighbors := map[string]float64{"out-near": 1.2}

	res, err := testOrchestrator(hits, neighbors).Retrieve(context.Background(), "drive thru", 5, "out-ref")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Relaxed {
		t.Error("survivors exist, must not relax")
	}
	if len(res.Hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(res.Hits))
	}
	if res.Hits[0].OutletID != "out-ref" || res.Hits[1].OutletID != "out-near" {
		t.Errorf("hits = %v", res.Hits)
	}
}

func TestRetrieve_LocalityRelaxesWhenEmpty(t *testing.T) {
	hits := []domain.ScoredOutlet{
		{OutletID: "out-far", Score: 0.85},
	}
	res, err := testOrchestrator(hits, map[string]float64{}).Retrieve(context.Background(), "birthday party", 5, "out-ref")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !res.Relaxed {
		t.Error("expected relaxed result")
	}
	if len(res.Hits) != 1 || res.Hits[0].OutletID != "out-far" {
		t.Errorf("hits = %v, want the unfiltered hit back", res.Hits)
	}
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	o := New(
		&fakeEmbedder{err: errors.New("connection refused")},
		&fakeSearcher{},
		&fakeCatchment{},
		nil,
	)
	_, err := o.Retrieve(context.Background(), "anything", 5, "")
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("err = %v, want ErrEmbeddingService", err)
	}
}

func TestRetrieve_SearchFailure(t *testing.T) {
	o := New(
		&fakeEmbedder{emb: ollama.Embedding{Values: []float32{0.1}}},
		&fakeSearcher{err: errors.New("unavailable")},
		&fakeCatchment{},
		nil,
	)
	if _, err := o.Retrieve(context.Background(), "anything", 5, ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestRetrieve_CatchmentFailure(t *testing.T) {
	o := New(
		&fakeEmbedder{emb: ollama.Embedding{Values: []float32{0.1}}},
		&fakeSearcher{hits: []domain.ScoredOutlet{{OutletID: "out-1"}}},
		&fakeCatchment{err: errors.New("neo4j down")},
		nil,
	)
	if _, err := o.Retrieve(context.Background(), "anything", 5, "out-ref"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRetrieve_EmptyHitsSkipCatchment(t *testing.T) {
	o := New(
		&fakeEmbedder{emb: ollama.Embedding{Values: []float32{0.1}}},
		&fakeSearcher{hits: nil},
		&fakeCatchment{err: errors.New("should not be called")},
		nil,
	)
	res, err := o.Retrieve(context.Background(), "anything", 5, "out-ref")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Hits) != 0 || res.Relaxed {
		t.Errorf("res = %+v, want empty unrelaxed", res)
	}
}
