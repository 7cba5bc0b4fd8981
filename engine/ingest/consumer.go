package ingest

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/pkg/natsutil"
)

const (
	// SubjectIngest carries scraped outlet records into the pipeline.
	SubjectIngest = "engine.outlets.ingest"
	// SubjectDLQ receives records that could not be ingested.
	SubjectDLQ = "engine.outlets.ingest.dlq"
)

// deadLetter wraps a failed record with the reason it was parked.
type deadLetter struct {
	Record domain.ScrapedOutlet `json:"record"`
	Reason string               `json:"reason"`
}

// consumeRecord runs one record through the pipeline and parks failures on
// the dead letter subject. Validation rejects and exhausted embed retries
// both dead-letter rather than being retried forever.
func (p *Pipeline) consumeRecord(ctx context.Context, raw domain.ScrapedOutlet, dlq func(context.Context, deadLetter) error) {
	err := p.IngestOne(ctx, raw)
	if err == nil {
		p.log.Debug("ingested outlet", "source_id", raw.SourceID)
		return
	}
	if errors.Is(err, domain.ErrInvalidOutlet) || errors.Is(err, domain.ErrInvalidCoordinate) {
		p.log.Warn("rejecting invalid record", "source_id", raw.SourceID, "err", err)
	} else {
		p.log.Error("ingest failed", "source_id", raw.SourceID, "err", err)
	}
	if dlqErr := dlq(ctx, deadLetter{Record: raw, Reason: err.Error()}); dlqErr != nil {
		p.log.Error("dead letter publish failed", "source_id", raw.SourceID, "err", dlqErr)
	}
}

// StartConsumer subscribes the pipeline to the ingest subject.
func (p *Pipeline) StartConsumer(nc *nats.Conn) (*nats.Subscription, error) {
	dlq := func(ctx context.Context, dl deadLetter) error {
		return natsutil.Publish(ctx, nc, SubjectDLQ, dl)
	}
	handler := func(ctx context.Context, raw domain.ScrapedOutlet) {
		p.consumeRecord(ctx, raw, dlq)
	}
	onBad := func(data []byte, err error) {
		p.log.Warn("dropping malformed ingest message", "bytes", len(data), "err", err)
	}
	return natsutil.Subscribe(nc, SubjectIngest, handler, onBad)
}
