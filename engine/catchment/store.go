package catchment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
)

const publishBatch = 1000

// Neo4jStore persists NEAR relationships between Outlet nodes. Each publish
// writes the new edge set under a fresh generation tag and drops every other
// generation inside the same transaction, so readers observe either the old
// set or the new set, never a mixture.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStore creates a store on the given driver.
func NewNeo4jStore(driver neo4j.DriverWithContext) *Neo4jStore {
	return &Neo4jStore{driver: driver}
}

var _ EdgeStore = (*Neo4jStore)(nil)

// Publish atomically replaces the catchment edge set.
func (s *Neo4jStore) Publish(ctx context.Context, edges []domain.CatchmentEdge) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	gen := uuid.NewString()

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for start := 0; start < len(edges); start += publishBatch {
			end := start + publishBatch
			if end > len(edges) {
				end = len(edges)
			}
			rows := make([]map[string]any, 0, end-start)
			for _, e := range edges[start:end] {
				rows = append(rows, map[string]any{
					"a":           e.A,
					"b":           e.B,
					"distance_km": e.DistanceKM,
				})
			}
			_, err := tx.Run(ctx,
				`UNWIND $rows AS row
				 MATCH (a:Outlet {id: row.a}), (b:Outlet {id: row.b})
				 CREATE (a)-[:NEAR {distance_km: row.distance_km, gen: $gen}]->(b)`,
				map[string]any{"rows": rows, "gen": gen},
			)
			if err != nil {
				return nil, fmt.Errorf("catchment: write edges: %w", err)
			}
		}

		// Drop every previous generation in the same transaction.
		_, err := tx.Run(ctx,
			`MATCH ()-[r:NEAR]->() WHERE r.gen <> $gen DELETE r`,
			map[string]any{"gen": gen},
		)
		if err != nil {
			return nil, fmt.Errorf("catchment: drop old generations: %w", err)
		}
		return nil, nil
	})
	return err
}

// CatchmentOf returns neighbor outlet IDs and their distances for one outlet.
// The undirected MATCH recovers symmetry from the single stored direction.
func (s *Neo4jStore) CatchmentOf(ctx context.Context, outletID string) (map[string]float64, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (a:Outlet {id: $id})-[r:NEAR]-(b:Outlet)
		 RETURN b.id AS id, r.distance_km AS distance_km`,
		map[string]any{"id": outletID},
	)
	if err != nil {
		return nil, fmt.Errorf("catchment: neighbors of %s: %w", outletID, err)
	}

	neighbors := make(map[string]float64)
	for result.Next(ctx) {
		rec := result.Record()
		id, _ := rec.Get("id")
		dist, _ := rec.Get("distance_km")
		sid, ok := id.(string)
		if !ok {
			continue
		}
		if d, ok := dist.(float64); ok {
			neighbors[sid] = d
		}
	}
	return neighbors, nil
}
