// Package catchment derives the catchment graph: undirected edges between
// outlets whose great-circle distance is at most domain.CatchmentRadiusKM.
// The edge set is fully recomputed per run and published atomically so
// readers never see a mix of old and new edges.
package catchment

import (
	"context"
	"log/slog"
	"sort"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/engine/geo"
	"github.com/syahrilshahiran/mindhive-engine/pkg/resilience"
)

// JobName keys the mutual-exclusion lock for catchment rebuilds.
const JobName = "catchment-rebuild"

// PairScanner produces the raw edge set from a batch of outlets. The brute
// scanner evaluates every unordered pair; a spatial index (grid or k-d
// bucketing) can replace it without changing the edge contract.
type PairScanner interface {
	Scan(outlets []domain.Outlet) ([]domain.CatchmentEdge, domain.Report)
}

// BruteScanner evaluates all O(n²) unordered pairs. Fine for a catalog in the
// low thousands.
type BruteScanner struct {
	RadiusKM float64
}

// NewBruteScanner returns a scanner with the standard catchment radius.
func NewBruteScanner() BruteScanner {
	return BruteScanner{RadiusKM: domain.CatchmentRadiusKM}
}

// Scan computes edges for every unordered pair of geocoded outlets. Outlets
// with missing or invalid coordinates are counted as skipped, never fatal.
// The boundary is inclusive: exactly RadiusKM counts as within catchment.
func (s BruteScanner) Scan(outlets []domain.Outlet) ([]domain.CatchmentEdge, domain.Report) {
	var report domain.Report

	type located struct {
		id    string
		coord domain.Coordinate
	}
	sites := make([]located, 0, len(outlets))
	for _, o := range outlets {
		c, ok := o.Coordinate()
		if !ok {
			report.Skip()
			continue
		}
		if err := domain.ValidateCoordinate(c); err != nil {
			report.Skip()
			report.Fail(o.ID, err)
			continue
		}
		sites = append(sites, located{id: o.ID, coord: c})
	}

	var edges []domain.CatchmentEdge
	for i := 0; i < len(sites); i++ {
		for j := i + 1; j < len(sites); j++ {
			d, err := geo.DistanceKM(sites[i].coord, sites[j].coord)
			if err != nil {
				// both coordinates already validated; keep the guard anyway
				report.Fail(sites[i].id, err)
				continue
			}
			if d <= s.RadiusKM {
				edges = append(edges, newEdge(sites[i].id, sites[j].id, d))
			}
			report.Processed++
		}
	}

	sort.Slice(edges, func(a, b int) bool {
		if edges[a].A != edges[b].A {
			return edges[a].A < edges[b].A
		}
		return edges[a].B < edges[b].B
	})
	return edges, report
}

// newEdge stores the unordered pair once, with A < B.
func newEdge(a, b string, distanceKM float64) domain.CatchmentEdge {
	if b < a {
		a, b = b, a
	}
	return domain.CatchmentEdge{A: a, B: b, DistanceKM: distanceKM}
}

// EdgeStore persists a full edge set atomically and serves neighborhood reads.
type EdgeStore interface {
	Publish(ctx context.Context, edges []domain.CatchmentEdge) error
	CatchmentOf(ctx context.Context, outletID string) (map[string]float64, error)
}

// Builder runs the full rebuild: scan all pairs, then atomically replace the
// published edge set.
type Builder struct {
	scanner PairScanner
	store   EdgeStore
	lock    *resilience.JobLock
	log     *slog.Logger
}

// NewBuilder creates a Builder. A nil scanner defaults to the brute scanner.
func NewBuilder(scanner PairScanner, store EdgeStore, lock *resilience.JobLock, log *slog.Logger) *Builder {
	if scanner == nil {
		scanner = NewBruteScanner()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{scanner: scanner, store: store, lock: lock, log: log}
}

// Rebuild computes and publishes the catchment graph for the given outlet
// universe. At most one rebuild runs at a time; a second concurrent call
// fails fast with domain.ErrRebuildInProgress. Per-item problems land in the
// report; only a failed publish is fatal.
func (b *Builder) Rebuild(ctx context.Context, outlets []domain.Outlet) (domain.Report, error) {
	if b.lock != nil {
		if !b.lock.TryAcquire(JobName) {
			return domain.Report{}, domain.ErrRebuildInProgress
		}
		defer b.lock.Release(JobName)
	}

	edges, report := b.scanner.Scan(outlets)
	b.log.Info("catchment scan complete",
		"outlets", len(outlets),
		"edges", len(edges),
		"skipped", report.Skipped,
		"failures", len(report.Failures),
	)

	if err := b.store.Publish(ctx, edges); err != nil {
		return report, err
	}
	return report, nil
}
