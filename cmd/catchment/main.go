// Command catchment recomputes the outlet catchment graph. It loads every
// outlet from Neo4j, scans all pairs for those within catchment distance, and
// atomically replaces the published NEAR edge set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/syahrilshahiran/mindhive-engine/engine/catchment"
	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/engine/outlets"
	"github.com/syahrilshahiran/mindhive-engine/pkg/metrics"
	"github.com/syahrilshahiran/mindhive-engine/pkg/resilience"
)

func main() {
	_ = godotenv.Load()

	radius := flag.Float64("radius-km", domain.CatchmentRadiusKM, "catchment radius in km")
	metricsPort := flag.Int("metrics-port", 0, "serve /metrics on this port while running (0 disables)")
	dryRun := flag.Bool("dry-run", false, "scan and report without publishing edges")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(*radius, *metricsPort, *dryRun, logger); err != nil {
		logger.Error("rebuild failed", "err", err)
		os.Exit(1)
	}
}

func run(radiusKM float64, metricsPort int, dryRun bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if radiusKM <= 0 {
		return fmt.Errorf("radius-km must be positive, got %g", radiusKM)
	}

	reg := metrics.New()
	if metricsPort > 0 {
		reg.CollectRuntime("catchment", 15*time.Second)
		reg.ServeAsync(metricsPort)
	}
	pairGauge := reg.Gauge("catchment_pairs_scanned", "Outlet pairs evaluated in the last rebuild.")
	durHist := reg.Histogram("catchment_rebuild_seconds", "Rebuild wall time.", []float64{1, 5, 15, 60, 300})

	driver, err := neo4j.NewDriverWithContext(
		envOr("NEO4J_URL", "neo4j://localhost:7687"),
		neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""),
	)
	if err != nil {
		return fmt.Errorf("neo4j connect: %w", err)
	}
	defer driver.Close(ctx)

	outletStore := outlets.New(driver)
	all, err := outletStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load outlets: %w", err)
	}
	logger.Info("outlets loaded", "count", len(all))

	scanner := catchment.BruteScanner{RadiusKM: radiusKM}

	var store catchment.EdgeStore = catchment.NewNeo4jStore(driver)
	if dryRun {
		store = discardStore{}
	}

	builder := catchment.NewBuilder(scanner, store, resilience.NewJobLock(), logger)

	start := time.Now()
	report, err := builder.Rebuild(ctx, all)
	if err != nil {
		return err
	}
	durHist.Since(start)

	neighbors := 0
	if len(all) > 0 {
		// Rough published-edge count from the reference outlet, logged for
		// operator sanity only.
		m, err := store.CatchmentOf(ctx, all[0].ID)
		if err == nil {
			neighbors = len(m)
		}
	}
	pairGauge.Set(int64(report.Processed))

	logger.Info("rebuild complete",
		"radius_km", radiusKM,
		"pairs_scanned", report.Processed,
		"skipped", report.Skipped,
		"failures", len(report.Failures),
		"sample_neighbors", neighbors,
		"took", time.Since(start).Round(time.Millisecond),
	)
	for _, f := range report.Failures {
		logger.Warn("outlet failed", "outlet_id", f.OutletID, "reason", f.Reason)
	}
	return nil
}

// discardStore satisfies EdgeStore for dry runs.
type discardStore struct{}

func (discardStore) Publish(context.Context, []domain.CatchmentEdge) error { return nil }
func (discardStore) CatchmentOf(context.Context, string) (map[string]float64, error) {
	return nil, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
