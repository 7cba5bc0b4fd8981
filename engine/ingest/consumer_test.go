package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/syahrilshahiran/mindhive-engine/pkg/resilience"
)

type dlqCapture struct {
	letters []deadLetter
	err     error
}

func (d *dlqCapture) publish(_ context.Context, dl deadLetter) error {
	d.letters = append(d.letters, dl)
	return d.err
}

func TestConsumeRecord_SuccessSkipsDLQ(t *testing.T) {
	p := New(&fakeEmbedder{}, &fakeIndexer{}, &fakeWriter{}, resilience.NewJobLock(), nil, nil)
	dlq := &dlqCapture{}

	p.consumeRecord(context.Background(), validScraped("src-1"), dlq.publish)

	if len(dlq.letters) != 0 {
		t.Errorf("dead letters = %v, want none", dlq.letters)
	}
}

func TestConsumeRecord_InvalidRecordDeadLetters(t *testing.T) {
	p := New(&fakeEmbedder{}, &fakeIndexer{}, &fakeWriter{}, resilience.NewJobLock(), nil, nil)
	dlq := &dlqCapture{}

	raw := validScraped("src-bad")
	raw.Name = ""
	p.consumeRecord(context.Background(), raw, dlq.publish)

	if len(dlq.letters) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(dlq.letters))
	}
	dl := dlq.letters[0]
	if dl.Record.SourceID != "src-bad" {
		t.Errorf("record = %+v", dl.Record)
	}
	if !strings.Contains(dl.Reason, "name") {
		t.Errorf("reason = %q, want the rejected field named", dl.Reason)
	}
}

func TestConsumeRecord_PipelineFailureDeadLetters(t *testing.T) {
	p := New(&fakeEmbedder{err: errors.New("connection refused")}, &fakeIndexer{}, &fakeWriter{}, resilience.NewJobLock(), nil, nil)
	noRetry(p)
	dlq := &dlqCapture{}

	p.consumeRecord(context.Background(), validScraped("src-1"), dlq.publish)

	if len(dlq.letters) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(dlq.letters))
	}
	if !strings.Contains(dlq.letters[0].Reason, "connection refused") {
		t.Errorf("reason = %q", dlq.letters[0].Reason)
	}
}

func TestConsumeRecord_DLQPublishFailureDoesNotPanic(t *testing.T) {
	p := New(&fakeEmbedder{err: errors.New("down")}, &fakeIndexer{}, &fakeWriter{}, resilience.NewJobLock(), nil, nil)
	noRetry(p)
	dlq := &dlqCapture{err: errors.New("nats unavailable")}

	p.consumeRecord(context.Background(), validScraped("src-1"), dlq.publish)

	if len(dlq.letters) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(dlq.letters))
	}
}
