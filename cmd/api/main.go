// Package main implements the outlet proximity and retrieval API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/syahrilshahiran/mindhive-engine/engine/answer"
	"github.com/syahrilshahiran/mindhive-engine/engine/catchment"
	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/engine/geo"
	"github.com/syahrilshahiran/mindhive-engine/engine/outlets"
	"github.com/syahrilshahiran/mindhive-engine/engine/retrieval"
	"github.com/syahrilshahiran/mindhive-engine/engine/semantic"
	"github.com/syahrilshahiran/mindhive-engine/pkg/metrics"
	"github.com/syahrilshahiran/mindhive-engine/pkg/mid"
	"github.com/syahrilshahiran/mindhive-engine/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	OllamaURL  string
	EmbedModel string
	ChatModel  string
	EmbedDims  int
	EmbedRPS   float64
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	CORSOrigin string
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel: envOr("EMBED_MODEL", "nomic-embed-text"),
		ChatModel:  envOr("CHAT_MODEL", "llama3.2"),
		EmbedDims:  envIntOr("EMBED_DIMS", 768),
		EmbedRPS:   envFloatOr("EMBED_RPS", 5),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "outlets"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)

	outletStore := outlets.New(neo4jDriver)
	edgeStore := catchment.NewNeo4jStore(neo4jDriver)

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	index := semantic.NewIndex(vectorStore, cfg.EmbedModel, cfg.EmbedDims)
	if err := index.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}

	// --- Ollama clients ---
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedRPS, 30*time.Second)
	chat := ollama.NewChatClient(cfg.OllamaURL, cfg.ChatModel, 90*time.Second)

	// --- Retrieval and answering ---
	retriever := retrieval.New(embedder, index, edgeStore, logger)
	answerSvc := answer.New(retriever, chat, logger)

	reg := metrics.New()
	reg.CollectRuntime("api", 15*time.Second)

	srv := newServer(outletStore, edgeStore, answerSvc, logger)

	// --- Build HTTP server ---
	mux := srv.routes()
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("outlet-api"),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

// --- Server ---

// OutletReader is the slice of the outlet store the handlers use.
type OutletReader interface {
	Get(ctx context.Context, id string) (domain.Outlet, error)
	GetAll(ctx context.Context) ([]domain.Outlet, error)
}

// CatchmentReader reports stored catchment neighbors of an outlet.
type CatchmentReader interface {
	CatchmentOf(ctx context.Context, outletID string) (map[string]float64, error)
}

// Answerer produces grounded answers about outlets.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question, localOutletID string) (answer.Answer, error)
}

type server struct {
	outlets   OutletReader
	catchment CatchmentReader
	answers   Answerer
	log       *slog.Logger
}

func newServer(o OutletReader, c CatchmentReader, a Answerer, log *slog.Logger) *server {
	return &server{outlets: o, catchment: c, answers: a, log: log}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/outlets", s.handleListOutlets)
	mux.HandleFunc("GET /api/outlets/{id}", s.handleGetOutlet)
	mux.HandleFunc("GET /api/outlets/{id}/catchment", s.handleCatchment)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListOutlets returns all outlets, optionally narrowed to those within
// radius_km of a lat/lon point.
func (s *server) handleListOutlets(w http.ResponseWriter, r *http.Request) {
	all, err := s.outlets.GetAll(r.Context())
	if err != nil {
		s.log.Error("list outlets failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	q := r.URL.Query()
	if q.Get("lat") == "" && q.Get("lon") == "" {
		writeJSON(w, http.StatusOK, map[string]any{"outlets": all, "count": len(all)})
		return
	}

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon must both be valid numbers")
		return
	}
	radius := domain.CatchmentRadiusKM
	if v := q.Get("radius_km"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			writeError(w, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
	}
	center := domain.Coordinate{Lat: lat, Lon: lon}
	if err := domain.ValidateCoordinate(center); err != nil {
		writeError(w, http.StatusBadRequest, "lat/lon out of range")
		return
	}

	filtered := make([]domain.Outlet, 0, len(all))
	for _, o := range all {
		c, ok := o.Coordinate()
		if !ok {
			continue
		}
		d, err := geo.DistanceKM(center, c)
		if err != nil {
			continue
		}
		if d <= radius {
			filtered = append(filtered, o)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"outlets": filtered, "count": len(filtered)})
}

func (s *server) handleGetOutlet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, err := s.outlets.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "outlet not found")
		return
	}
	if err != nil {
		s.log.Error("get outlet failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// neighborEntry is one catchment neighbor in the API response.
type neighborEntry struct {
	OutletID   string  `json:"outlet_id"`
	DistanceKM float64 `json:"distance_km"`
}

func (s *server) handleCatchment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.outlets.Get(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "outlet not found")
			return
		}
		s.log.Error("get outlet failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	neighbors, err := s.catchment.CatchmentOf(r.Context(), id)
	if err != nil {
		s.log.Error("catchment lookup failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	entries := make([]neighborEntry, 0, len(neighbors))
	for nid, dist := range neighbors {
		entries = append(entries, neighborEntry{OutletID: nid, DistanceKM: dist})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outlet_id": id,
		"radius_km": domain.CatchmentRadiusKM,
		"neighbors": entries,
		"count":     len(entries),
	})
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Question string `json:"question"`
	OutletID string `json:"outlet_id,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Relaxed bool     `json:"relaxed,omitempty"`
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ans, err := s.answers.AnswerQuestion(r.Context(), req.Question, req.OutletID)
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Error())
		case errors.Is(err, domain.ErrSynthesisTimeout):
			writeError(w, http.StatusGatewayTimeout, "answer synthesis timed out")
		case errors.Is(err, domain.ErrEmbeddingService):
			writeError(w, http.StatusBadGateway, "embedding service unavailable")
		default:
			s.log.Error("chat failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:  ans.Text,
		Sources: ans.Sources,
		Relaxed: ans.Relaxed,
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
