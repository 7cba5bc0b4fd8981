// Package answer turns retrieval hits into a grounded natural-language answer
// about McDonald's Malaysia outlets.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
)

const (
	// Hits below this cosine similarity add noise instead of grounding and
	// are dropped from the context.
	similarityFloor = 0.3

	defaultTopK    = 5
	defaultTimeout = 60 * time.Second
)

const systemPrompt = `You are a helpful assistant answering questions about McDonald's outlets in Kuala Lumpur, Malaysia.
Answer using only the outlet information provided in the context. Mention outlets by name.
If the context does not contain the answer, say you don't know rather than guessing.`

// Retriever provides ranked outlet context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, localOutletID string) (domain.RetrievalResult, error)
}

// ChatCompleter generates a completion from a system and user prompt.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Answer is a synthesized response with the outlets that grounded it.
type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
	Relaxed bool     `json:"relaxed,omitempty"`
}

// Service runs the retrieve-then-synthesize flow.
type Service struct {
	retriever Retriever
	chat      ChatCompleter
	log       *slog.Logger

	topK    int
	timeout time.Duration
}

// New creates an answer service with default topK and synthesis timeout.
func New(retriever Retriever, chat ChatCompleter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		retriever: retriever,
		chat:      chat,
		log:       log,
		topK:      defaultTopK,
		timeout:   defaultTimeout,
	}
}

// AnswerQuestion retrieves context for the question and asks the chat model
// for a grounded answer. localOutletID optionally narrows context to outlets
// near that one.
func (s *Service) AnswerQuestion(ctx context.Context, question, localOutletID string) (Answer, error) {
	ctx, span := otel.Tracer("answer").Start(ctx, "answer.AnswerQuestion")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, &domain.ValidationError{Field: "question", Value: "", Wrapped: errors.New("must not be empty")}
	}

	res, err := s.retriever.Retrieve(ctx, question, s.topK, localOutletID)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}

	var (
		lines   []string
		sources []string
	)
	for _, h := range res.Hits {
		if h.Score < similarityFloor {
			continue
		}
		lines = append(lines, h.Summary)
		sources = append(sources, h.OutletID)
	}
	span.SetAttributes(attribute.Int("context_outlets", len(sources)))

	if len(lines) == 0 {
		// Nothing relevant enough to ground an answer. Don't let the model
		// improvise one.
		return Answer{
			Text:    "I couldn't find any outlet information matching your question.",
			Relaxed: res.Relaxed,
		}, nil
	}

	user := buildUserPrompt(question, lines, res.Relaxed)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.chat.Complete(ctx, systemPrompt, user)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Answer{}, fmt.Errorf("chat completion after %s: %w", s.timeout, domain.ErrSynthesisTimeout)
		}
		return Answer{}, fmt.Errorf("chat completion: %w", err)
	}

	s.log.Info("answer synthesized",
		"question_len", len(question), "sources", len(sources), "relaxed", res.Relaxed)
	return Answer{Text: text, Sources: sources, Relaxed: res.Relaxed}, nil
}

func buildUserPrompt(question string, contextLines []string, relaxed bool) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, line := range contextLines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if relaxed {
		b.WriteString("\nNote: no outlets within the requested area matched, so the context covers outlets city-wide.\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
