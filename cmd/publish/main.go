// Command publish replays a JSON batch file of scraped outlet records onto
// the NATS ingest subject, one message per record. Useful for backfills and
// for re-driving dead-lettered records after a fix.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/engine/ingest"
	"github.com/syahrilshahiran/mindhive-engine/pkg/natsutil"
)

func main() {
	_ = godotenv.Load()

	var (
		file    = flag.String("file", "", "JSON batch file of outlet records (array or NDJSON)")
		natsURL = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
		subject = flag.String("subject", ingest.SubjectIngest, "subject to publish to")
		pace    = flag.Duration("pace", 0, "delay between messages")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: publish -file outlets.json [-nats url] [-subject subj]")
		os.Exit(2)
	}

	records, err := readRecords(*file)
	if err != nil {
		log.Error("read batch file failed", "file", *file, "err", err)
		os.Exit(1)
	}

	nc, err := nats.Connect(*natsURL, nats.Name("outlet-publish"))
	if err != nil {
		log.Error("nats connect failed", "err", err)
		os.Exit(1)
	}
	defer nc.Drain()

	ctx := context.Background()
	published := 0
	for _, rec := range records {
		if err := natsutil.Publish(ctx, nc, *subject, rec); err != nil {
			log.Error("publish failed", "source_id", rec.SourceID, "err", err)
			continue
		}
		published++
		if *pace > 0 {
			time.Sleep(*pace)
		}
	}
	if err := nc.Flush(); err != nil {
		log.Error("flush failed", "err", err)
	}
	log.Info("done", "subject", *subject, "published", published, "total", len(records))
}

func readRecords(path string) ([]domain.ScrapedOutlet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
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

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
