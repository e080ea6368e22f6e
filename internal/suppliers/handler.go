package suppliers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vendora/vendora/internal/auth"
	"github.com/vendora/vendora/internal/observability"
	"github.com/vendora/vendora/internal/platform/httpx"
	"github.com/vendora/vendora/internal/shared"
)

// ReindexScheduler enqueues a tenant-wide search reindex.
type ReindexScheduler interface {
	EnqueueSearchReindex(ctx context.Context, tenantID uuid.UUID) error
}

// Handler exposes the supplier ingestion and lookup endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	reindex ReindexScheduler
	metrics *observability.Metrics
}

// NewHandler constructs a handler. reindex and metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, reindex ReindexScheduler, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, reindex: reindex, metrics: metrics}
}

// Ingest resolves one observation: POST /ingest.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "request body must be valid JSON")
		return
	}
	if tenantID, ok := auth.TenantFromContext(r.Context()); ok && req.TenantID != tenantID.String() {
		httpx.RespondError(w, fmt.Errorf("%w: tenantId does not match the authenticated tenant", httpx.ErrForbidden))
		return
	}

	result, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		h.respondIngestError(w, r, err)
		return
	}
	h.observe(result.Action)
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondIngestError(w http.ResponseWriter, r *http.Request, err error) {
	var structural *StructuralValidationError
	if errors.As(err, &structural) {
		fields := make([]httpx.FieldProblem, 0, len(structural.Violations))
		for _, v := range structural.Violations {
			fields = append(fields, httpx.FieldProblem{Field: v.Field, Reason: v.Reason})
		}
		httpx.ValidationProblem(w, "ingestion request failed structural validation", fields)
		return
	}
	var duplicate *DuplicateIdentifierError
	if errors.As(err, &duplicate) {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, duplicate.Error()))
		return
	}
	h.logger.Error("ingest supplier", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

// Show returns one supplier: GET /{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: supplier id must be a UUID", httpx.ErrValidation))
		return
	}
	sup, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get supplier", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

// List returns active suppliers: GET /?search=&page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 50),
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	items, total, err := h.service.List(r.Context(), tenantID, filter)
	if err != nil {
		h.logger.Error("list suppliers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Supplier{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

// Delete soft-deletes a supplier: DELETE /{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: supplier id must be a UUID", httpx.ErrValidation))
		return
	}
	if err := h.service.Delete(r.Context(), tenantID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("delete supplier", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reindex queues a full rebuild of the tenant's search index:
// POST /reindex.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if h.reindex == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "job queue is not configured")
		return
	}
	if err := h.reindex.EnqueueSearchReindex(r.Context(), tenantID); err != nil {
		h.logger.Error("enqueue reindex", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) observe(action string) {
	if h.metrics != nil {
		h.metrics.ObserveIngestion(action)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
