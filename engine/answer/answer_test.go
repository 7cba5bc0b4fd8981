package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
)

type fakeRetriever struct {
	res domain.RetrievalResult
	err error
}

func (f *fakeRetriever) Retrieve(context.Context, string, int, string) (domain.RetrievalResult, error) {
	return f.res, f.err
}

type fakeChat struct {
	reply string
	err   error

	lastSystem string
	lastUser   string
}

func (f *fakeChat) Complete(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	return f.reply, f.err
}

func hits(scored ...domain.ScoredOutlet) domain.RetrievalResult {
	return domain.RetrievalResult{Hits: scored}
}

func TestAnswerQuestion_GroundedReply(t *testing.T) {
	chat := &fakeChat{reply: "The KLCC outlet is open 24 hours."}
	svc := New(&fakeRetriever{res: hits(
		domain.ScoredOutlet{OutletID: "out-1", Score: 0.9, Summary: "McDonald's KLCC is open 24 hours."},
		domain.ScoredOutlet{OutletID: "out-2", Score: 0.7, Summary: "McDonald's Ampang has a drive-thru."},
	)}, chat, nil)

	ans, err := svc.AnswerQuestion(context.Background(), "Which outlets are open 24 hours?", "")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if ans.Text != "The KLCC outlet is open 24 hours." {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.Sources) != 2 || ans.Sources[0] != "out-1" {
		t.Errorf("sources = %v", ans.Sources)
	}
	if !strings.Contains(chat.lastUser, "McDonald's KLCC") {
		t.Errorf("context missing from prompt: %q", chat.lastUser)
	}
	if !strings.Contains(chat.lastUser, "Which outlets are open 24 hours?") {
		t.Errorf("question missing from prompt: %q", chat.lastUser)
	}
}

func TestAnswerQuestion_DropsLowSimilarity(t *testing.T) {
	chat := &fakeChat{reply: "ok"}
	svc := New(&fakeRetriever{res: hits(
		domain.ScoredOutlet{OutletID: "out-1", Score: 0.9, Summary: "relevant summary"},
		domain.ScoredOutlet{OutletID: "out-2", Score: 0.1, Summary: "noise summary"},
	)}, chat, nil)

	ans, err := svc.AnswerQuestion(context.Background(), "anything", "")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "out-1" {
		t.Errorf("sources = %v, want only out-1", ans.Sources)
	}
	if strings.Contains(chat.lastUser, "noise summary") {
		t.Error("low-similarity hit leaked into the prompt")
	}
}

func TestAnswerQuestion_NoRelevantContext(t *testing.T) {
	chat := &fakeChat{}
	svc := New(&fakeRetriever{res: hits(
		domain.ScoredOutlet{OutletID: "out-1", Score: 0.05, Summary: "noise"},
	)}, chat, nil)

	ans, err := svc.AnswerQuestion(context.Background(), "anything", "")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if chat.lastUser != "" {
		t.Error("chat must not be called without context")
	}
	if !strings.Contains(ans.Text, "couldn't find") {
		t.Errorf("text = %q", ans.Text)
	}
}

func TestAnswerQuestion_EmptyQuestion(t *testing.T) {
	svc := New(&fakeRetriever{}, &fakeChat{}, nil)
	_, err := svc.AnswerQuestion(context.Background(), "   ", "")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestAnswerQuestion_RetrieveFailure(t *testing.T) {
	svc := New(&fakeRetriever{err: errors.New("qdrant down")}, &fakeChat{}, nil)
	if _, err := svc.AnswerQuestion(context.Background(), "anything", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnswerQuestion_SynthesisTimeout(t *testing.T) {
	svc := New(&fakeRetriever{res: hits(
		domain.ScoredOutlet{OutletID: "out-1", Score: 0.9, Summary: "s"},
	)}, &fakeChat{err: context.DeadlineExceeded}, nil)
	svc.timeout = 10 * time.Millisecond

	_, err := svc.AnswerQuestion(context.Background(), "anything", "")
	if !errors.Is(err, domain.ErrSynthesisTimeout) {
		t.Fatalf("err = %v, want ErrSynthesisTimeout", err)
	}
}

func TestAnswerQuestion_RelaxedPropagates(t *testing.T) {
	chat := &fakeChat{reply: "ok"}
	svc := New(&fakeRetriever{res: domain.RetrievalResult{
		Hits:    []domain.ScoredOutlet{{OutletID: "out-1", Score: 0.9, Summary: "s"}},
		Relaxed: true,
	}}, chat, nil)

	ans, err := svc.AnswerQuestion(context.Background(), "anything", "out-ref")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if !ans.Relaxed {
		t.Error("relaxed flag lost")
	}
	if !strings.Contains(chat.lastUser, "city-wide") {
		t.Error("relaxation note missing from prompt")
	}
}
