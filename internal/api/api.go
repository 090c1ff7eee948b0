// ABOUTME: HTTP front door exposing query submission, the tool catalog, and pool status
// ABOUTME: Maps error kinds to HTTP status codes and enforces the per-request timeout

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/toolgate/internal/catalog"
	"github.com/2389/toolgate/internal/errkind"
	"github.com/2389/toolgate/internal/pool"
	"github.com/2389/toolgate/internal/query"
)

// Orchestrator is the request-handling surface the API fronts.
type Orchestrator interface {
	Query(ctx context.Context, q string) (*query.Response, error)
}

// StatusSource exposes the pool's observable state.
type StatusSource interface {
	Stats() pool.Stats
	Catalog() *catalog.Catalog
}

// Handler serves the gateway's HTTP API.
type Handler struct {
	orchestrator   Orchestrator
	status         StatusSource
	requestTimeout time.Duration
	logger         *slog.Logger
}

// New creates an API handler. A zero requestTimeout disables the per-request
// deadline.
func New(orch Orchestrator, status StatusSource, requestTimeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orchestrator:   orch,
		status:         status,
		requestTimeout: requestTimeout,
		logger:         logger.With("component", "api"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.handleQuery)
	mux.HandleFunc("GET /api/tools", h.handleTools)
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query must not be empty"})
		return
	}

	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	resp, err := h.orchestrator.Query(ctx, req.Query)
	if err != nil {
		h.logger.Warn("query failed", "request_id", resp.RequestID, "error", err)
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// toolInfo is the wire shape for one catalog entry.
type toolInfo struct {
	Name        string          `json:"name"`
	Server      string          `json:"server"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

func (h *Handler) handleTools(w http.ResponseWriter, r *http.Request) {
	descs := h.status.Catalog().Descriptors()
	tools := make([]toolInfo, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, toolInfo{
			Name:        d.Qualified,
			Server:      d.Server,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools, "count": len(tools)})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Stats())
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps an error kind to the HTTP status the caller sees.
// Backpressure is 429, a tripped backend is 503, a blown deadline is 504,
// and everything else is an internal error.
func statusFor(err error) int {
	switch errkind.KindOf(err) {
	case errkind.ResourceExhausted, errkind.PoolExhausted, errkind.RateLimit:
		return http.StatusTooManyRequests
	case errkind.CircuitOpen:
		return http.StatusServiceUnavailable
	case errkind.Timeout:
		return http.StatusGatewayTimeout
	case errkind.Validation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
