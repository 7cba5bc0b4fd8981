// Command ingest feeds scraped outlet records into the pipeline. It consumes
// records from NATS and also watches a directory for JSON batch files, the
// format the scraper drops.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/engine/ingest"
	"github.com/syahrilshahiran/mindhive-engine/engine/outlets"
	"github.com/syahrilshahiran/mindhive-engine/engine/semantic"
	"github.com/syahrilshahiran/mindhive-engine/pkg/metrics"
	"github.com/syahrilshahiran/mindhive-engine/pkg/ollama"
	"github.com/syahrilshahiran/mindhive-engine/pkg/resilience"
)

var met = metrics.New()

var (
	mFilesProcessed = met.Counter("outlet_ingest_files_processed_total", "Batch files processed")
	mFileRecords    = met.Counter("outlet_ingest_file_records_total", "Records read from batch files")
	mLastScan       = met.Gauge("outlet_ingest_last_scan_timestamp", "Epoch of last directory scan")
	mBatchDur       = met.Histogram("outlet_ingest_batch_duration_seconds", "Per-file bulk upsert time", nil)
)

func main() {
	_ = godotenv.Load()

	var (
		dataDir     = flag.String("dir", "/var/lib/outlet-engine/incoming", "directory to watch for JSON batch files")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		embedModel  = flag.String("model", envOr("EMBED_MODEL", "nomic-embed-text"), "Ollama embedding model")
		embedDims   = flag.Int("dims", 768, "embedding dimensionality")
		embedRPS    = flag.Float64("embed-rps", 5, "embedding calls per second")
		neo4jURL    = flag.String("neo4j", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j bolt URL")
		neo4jUser   = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "outlets"), "Qdrant collection name")
		natsURL     = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL (empty disables the consumer)")
		interval    = flag.Duration("interval", 30*time.Second, "directory scan interval")
		stateFile   = flag.String("state", "", "processed-files state path (defaults to <dir>/.ingest-state.json)")
		metricsPort = flag.Int("metrics-port", 9091, "Prometheus metrics port")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	met.CollectRuntime("outlet_ingest", 15*time.Second)
	met.ServeAsync(*metricsPort)

	// Connect Neo4j
	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		log.Error("neo4j connect failed", "err", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Error("neo4j verify failed", "err", err)
		os.Exit(1)
	}
	log.Info("connected to Neo4j")

	// Connect Qdrant
	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer vs.Close()

	index := semantic.NewIndex(vs, *embedModel, *embedDims)
	if err := index.Prepare(ctx); err != nil {
		log.Error("qdrant ensure collection failed", "err", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", *embedDims)

	embedder := ollama.NewEmbedClient(*ollamaURL, *embedModel, *embedRPS, 30*time.Second)
	outletStore := outlets.New(driver)

	pipeline := ingest.New(embedder, index, outletStore, resilience.NewJobLock(), met, log)

	// NATS consumer
	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL, nats.Name("outlet-ingest"))
		if err != nil {
			log.Error("nats connect failed", "err", err)
			os.Exit(1)
		}
		defer nc.Drain()

		sub, err := pipeline.StartConsumer(nc)
		if err != nil {
			log.Error("nats subscribe failed", "err", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()
		log.Info("consuming from NATS", "subject", ingest.SubjectIngest)
	}

	// Directory watcher
	if *stateFile == "" {
		*stateFile = filepath.Join(*dataDir, ".ingest-state.json")
	}
	processed := loadState(*stateFile)
	os.MkdirAll(*dataDir, 0o755)
	log.Info("watching for outlet batch files", "dir", *dataDir, "interval", *interval)

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		entries, err := os.ReadDir(*dataDir)
		if err != nil {
			log.Error("readdir failed", "err", err)
			return
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name()[0] == '.' {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			key := fmt.Sprintf("%s:%d", e.Name(), info.Size())
			if processed[key] {
				continue
			}

			path := filepath.Join(*dataDir, e.Name())
			start := time.Now()
			report, err := processFile(ctx, path, pipeline)
			mBatchDur.Since(start)
			mFilesProcessed.Inc()
			if err != nil {
				log.Error("batch file failed", "file", e.Name(), "err", err)
				continue
			}
			log.Info("batch file done", "file", e.Name(),
				"processed", report.Processed, "skipped", report.Skipped, "failures", len(report.Failures))

			// Files with failures stay unmarked so the next scan retries them.
			if len(report.Failures) == 0 {
				processed[key] = true
				saveState(*stateFile, processed)
			}
		}
	}

	scan()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

// processFile reads a JSON batch file and runs it through a bulk upsert. The
// file holds either a JSON array of records or newline-delimited objects.
func processFile(ctx context.Context, path string, pipeline *ingest.Pipeline) (domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Report{}, err
	}

	records, err := decodeRecords(data)
	if err != nil {
		return domain.Report{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	mFileRecords.Add(int64(len(records)))

	return pipeline.BulkUpsert(ctx, records)
}

func decodeRecords(data []byte) ([]domain.ScrapedOutlet, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []domain.ScrapedOutlet
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var records []domain.ScrapedOutlet
	dec := json.NewDecoder(strings.NewReader(trimmed))
	for dec.More() {
		var rec domain.ScrapedOutlet
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func loadState(path string) map[string]bool {
	m := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	json.Unmarshal(data, &m)
	return m
}

func saveState(path string, m map[string]bool) {
	data, _ := json.Marshal(m)
	os.WriteFile(path, data, 0o644)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
