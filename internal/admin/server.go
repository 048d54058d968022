package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/internal/backend"
	"github.com/cachegate/cachegate/internal/eviction"
)

// ledger is the slice of the retry ledger the admin surface needs.
type ledger interface {
	Reprocess(ctx context.Context) (evicted, failed int)
	Len() int
	RecentFailures() []string
}

// Handler serves the operator surface: read-only status plus the manual
// overrides that bypass transaction gating entirely.
type Handler struct {
	selector *backend.Selector
	ledger   ledger
	nodeID   string
	logger   zerolog.Logger
}

// NewHandler creates the admin handler.
func NewHandler(selector *backend.Selector, ledger ledger, nodeID string, logger zerolog.Logger) *Handler {
	return &Handler{
		selector: selector,
		ledger:   ledger,
		nodeID:   nodeID,
		logger:   logger,
	}
}

// NewHTTPServer creates the admin HTTP server.
func NewHTTPServer(address string, port int, h *Handler) *http.Server {
	if port == 0 {
		port = 8080
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /status", h.status)
	mux.HandleFunc("POST /reprocess", h.reprocess)
	mux.HandleFunc("POST /evict", h.forceEvict)
	mux.HandleFunc("POST /evict-all", h.forceEvictAll)
	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", address, port),
		Handler: mux,
	}
}

type statusResponse struct {
	NodeID         string                  `json:"node_id"`
	ActiveBackend  string                  `json:"active_backend"`
	Degraded       bool                    `json:"degraded"`
	Backends       []backend.BackendStatus `json:"backends"`
	PendingEntries int                     `json:"pending_entries"`
	LedgerEntries  int                     `json:"ledger_entries"`
	RecentFailures []string                `json:"recent_failures"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	active, ok := h.selector.Active(r.Context())
	resp := statusResponse{
		NodeID:         h.nodeID,
		ActiveBackend:  active.Name(),
		Degraded:       !ok,
		Backends:       h.selector.Status(r.Context()),
		PendingEntries: eviction.PendingCount(),
		LedgerEntries:  h.ledger.Len(),
		RecentFailures: h.ledger.RecentFailures(),
	}
	writeJSON(w, http.StatusOK, resp)
}

type reprocessResponse struct {
	Evicted   int `json:"evicted"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

func (h *Handler) reprocess(w http.ResponseWriter, r *http.Request) {
	h.logger.Info().Msg("Manual ledger reprocess triggered")

	evicted, failed := h.ledger.Reprocess(r.Context())
	writeJSON(w, http.StatusOK, reprocessResponse{
		Evicted:   evicted,
		Failed:    failed,
		Remaining: h.ledger.Len(),
	})
}

type evictRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	Region     string `json:"region,omitempty"`
}

// forceEvict applies one eviction directly through the selector, bypassing
// transaction gating. Without an entity id it evicts the whole type/region.
func (h *Handler) forceEvict(w http.ResponseWriter, r *http.Request) {
	var req evictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.EntityType == "" {
		writeError(w, http.StatusBadRequest, "entity_type is required")
		return
	}

	active, ok := h.selector.Active(r.Context())
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no cache backend available")
		return
	}

	op := eviction.OpUpdate
	if req.EntityID == "" {
		op = eviction.OpBulk
	}
	ev := eviction.New(req.EntityType, req.EntityID, req.Region, op)

	if err := eviction.Apply(r.Context(), active, ev); err != nil {
		h.logger.Error().Err(err).Str("entity_type", req.EntityType).Msg("Forced eviction failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.logger.Info().
		Str("entity_type", req.EntityType).
		Str("entity_id", req.EntityID).
		Str("backend", active.Name()).
		Msg("Forced eviction applied")
	writeJSON(w, http.StatusOK, map[string]string{"backend": active.Name()})
}

// forceEvictAll clears the active backend completely.
func (h *Handler) forceEvictAll(w http.ResponseWriter, r *http.Request) {
	active, ok := h.selector.Active(r.Context())
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no cache backend available")
		return
	}

	if err := active.Clear(r.Context()); err != nil {
		h.logger.Error().Err(err).Str("backend", active.Name()).Msg("Cache clear failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.logger.Info().Str("backend", active.Name()).Msg("Cache cleared")
	writeJSON(w, http.StatusOK, map[string]string{"backend": active.Name()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
