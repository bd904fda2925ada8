package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codegend/internal/manager"
	"codegend/pkg/types"
)

// Service defines the methods required by the HTTP API layer;
// *manager.Manager satisfies it.
type Service interface {
	Create(ctx context.Context, prompt string) (types.Generation, error)
	Get(ctx context.Context, id string) (types.Generation, error)
	List(ctx context.Context, limit int) ([]types.Generation, error)
	Delete(ctx context.Context, id string) error
	Stop(ctx context.Context, id, output string) error
	MarkFailed(ctx context.Context, id, errMsg, output string) error
	ListModels(ctx context.Context) ([]types.Model, error)
	CurrentModel() string
	SetModel(ctx context.Context, name string) error
	Health(ctx context.Context) types.HealthResponse
	Ready() bool
	Run(ctx context.Context, id string, t manager.Transport) manager.Result
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}

	// The WebSocket route stays outside the compressed group.
	r.Get("/ws/generate/{id}", h.serveWS)

	r.Group(func(r chi.Router) {
		// Compression for JSON endpoints
		r.Use(middleware.Compress(5))

		r.Post("/generate", h.generate)
		r.Get("/history", h.history)
		r.Get("/history/{id}", h.getGeneration)
		r.Delete("/history/{id}", h.deleteGeneration)
		r.Post("/history/{id}/fail", h.failGeneration)
		r.Post("/stop/{id}", h.stop)
		r.Get("/models", h.models)
		r.Post("/models/set", h.setModel)
		r.Get("/health", h.health)
		r.Get("/ready", h.ready)
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	mountFrontend(r, frontendDir)
	return r
}

type handlers struct {
	svc Service
}

// decodeJSON enforces the JSON content type and body limit.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies are reported as 400 too, to avoid leaking the limit.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lvl := requestLogLevel(r)
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	g, err := h.svc.Create(r.Context(), req.Prompt)
	if err != nil {
		logRequest(r, lvl, "generate", writeServiceError(w, err), start, err)
		return
	}
	writeJSON(w, http.StatusOK, types.GenerateResponse{ID: g.ID})
	logRequest(r, lvl, "generate", http.StatusOK, start, nil)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	gens, err := h.svc.List(r.Context(), limit)
	if err != nil {
		logRequest(r, requestLogLevel(r), "history", writeServiceError(w, err), time.Now(), err)
		return
	}
	writeJSON(w, http.StatusOK, types.HistoryResponse{Generations: gens})
}

func (h *handlers) getGeneration(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *handlers) deleteGeneration(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.StatusResponse{Status: "deleted"})
}

func (h *handlers) failGeneration(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.FailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Error) == "" {
		req.Error = "Generation failed"
	}
	if err := h.svc.MarkFailed(r.Context(), chi.URLParam(r, "id"), req.Error, req.Output); err != nil {
		logRequest(r, requestLogLevel(r), "mark failed", writeServiceError(w, err), start, err)
		return
	}
	writeJSON(w, http.StatusOK, types.StatusResponse{Status: "failed"})
}

// stop accepts whatever body a beacon or fetch sends and always answers
// stopped; the write is idempotent and best-effort from the client's view.
func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		// Truncated or oversized bodies are treated as empty.
		body = nil
	}
	output := stopOutput(r.Header.Get("Content-Type"), body)
	err = h.svc.Stop(r.Context(), id, output)
	writeJSON(w, http.StatusOK, types.StatusResponse{Status: "stopped"})
	logRequest(r, requestLogLevel(r), "stop", http.StatusOK, start, err)
}

func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels(r.Context())
	resp := types.ModelsResponse{Models: models, Current: h.svc.CurrentModel()}
	if err != nil {
		resp.Models = []types.Model{}
		resp.Error = err.Error()
	}
	if resp.Models == nil {
		resp.Models = []types.Model{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) setModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.SetModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetModel(r.Context(), req.Model); err != nil {
		logRequest(r, requestLogLevel(r), "set model", writeServiceError(w, err), start, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SetModelResponse{Status: "success", Model: h.svc.CurrentModel()})
	logRequest(r, requestLogLevel(r), "set model", http.StatusOK, start, nil)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ready() {
		writeJSON(w, http.StatusOK, types.StatusResponse{Status: "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, types.StatusResponse{Status: "draining"})
}
