// Package rest exposes the sweet shop over HTTP.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	sweeterrors "github.com/abgdnv/sweetshop/internal/errors"
	"github.com/abgdnv/sweetshop/internal/service"
	"github.com/abgdnv/sweetshop/pkg/auth"
	"github.com/abgdnv/sweetshop/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// retryAfterSeconds is advertised on 503 responses caused by contention or an open circuit.
const retryAfterSeconds = "1"

type Handler struct {
	inventory service.Inventory
	catalog   service.Catalog
	verifier  auth.Verifier
	adminRole string
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewHandler(inventory service.Inventory, catalog service.Catalog, verifier auth.Verifier, adminRole string, logger *slog.Logger) *Handler {
	return &Handler{
		inventory: inventory,
		catalog:   catalog,
		verifier:  verifier,
		adminRole: adminRole,
		validate:  validator.New(),
		logger:    logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the sweets API behind bearer authentication.
// Deleting and restocking additionally require the admin role.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(h.verifier, h.logger))
		r.Route("/api/sweets", func(r chi.Router) {
			r.Get("/", h.ListAll)
			r.Post("/", h.Create)
			r.Get("/search", h.Search)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.FindByID)
				r.Put("/", h.Update)
				r.Post("/purchase", h.Purchase)

				r.With(auth.RequireRole(h.adminRole, h.logger)).Delete("/", h.Delete)
				r.With(auth.RequireRole(h.adminRole, h.logger)).Post("/restock", h.Restock)
			})
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

// ListAll returns the whole catalog.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.ListAll(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch sweets")
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved sweet list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// Search filters the catalog by the optional name, category, minPrice and maxPrice query parameters.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var filter service.SearchFilter
	q := r.URL.Query()
	if name := q.Get("name"); name != "" {
		filter.Name = &name
	}
	if category := q.Get("category"); category != "" {
		filter.Category = &category
	}
	var ok bool
	if filter.MinPrice, ok = web.ParseOptionalFloat(w, r, h.logger, "minPrice"); !ok {
		return
	}
	if filter.MaxPrice, ok = web.ParseOptionalFloat(w, r, h.logger, "maxPrice"); !ok {
		return
	}

	list, err := h.catalog.Search(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to search sweets")
		return
	}
	h.logger.DebugContext(r.Context(), "Search completed", "query", r.URL.RawQuery, "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// FindByID returns a single sweet.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	found, err := h.inventory.FindByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to retrieve sweet with ID %s", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// Create adds a new sweet.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto service.SweetCreateDto
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}
	created, err := h.inventory.AddSweet(r.Context(), dto)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to create sweet")
		return
	}
	h.logger.InfoContext(r.Context(), "Sweet created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondJSON(w, h.logger, http.StatusCreated, created)
}

// Update replaces all mutable fields of a sweet.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var dto service.SweetUpdateDto
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}
	updated, err := h.inventory.UpdateSweet(r.Context(), id, dto)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to update sweet with ID %s", id))
		return
	}
	h.logger.InfoContext(r.Context(), "Sweet updated successfully", "ID", updated.ID, "Version", updated.Version)
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

// Delete removes a sweet. Admin only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.inventory.DeleteSweet(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to delete sweet with ID %s", id))
		return
	}
	h.logger.InfoContext(r.Context(), "Sweet deleted successfully", "ID", id)
	web.RespondJSON(w, h.logger, http.StatusOK, map[string]string{"message": "Sweet deleted"})
}

// Purchase sells qty items, one when qty is omitted.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	qty, ok := web.ParseInt32Or(w, r, h.logger, "qty", 1)
	if !ok {
		return
	}
	receipt, err := h.inventory.Purchase(r.Context(), id, qty)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to purchase sweet with ID %s", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, receipt)
}

// Restock adds qty items to the shelf. Admin only.
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	qty, ok := web.ParseInt32(w, r, h.logger, "qty")
	if !ok {
		return
	}
	receipt, err := h.inventory.Restock(r.Context(), id, qty)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to restock sweet with ID %s", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, receipt)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.logger.WarnContext(r.Context(), "Validation errors occurred", "error", err)
		web.RespondValidationErrors(w, h.logger, err)
		return false
	}
	return true
}

// respondServiceError maps engine errors to HTTP statuses. Unknown errors become 500 with fallback as message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	ctx := r.Context()
	var stockErr *sweeterrors.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		h.logger.InfoContext(ctx, "Insufficient stock", "available", stockErr.Available, "requested", stockErr.Requested)
		web.RespondError(w, h.logger, http.StatusConflict, stockErr.Error())
	case errors.Is(err, sweeterrors.ErrSweetNotFound):
		h.logger.WarnContext(ctx, "Sweet not found", "path", r.URL.Path)
		web.RespondError(w, h.logger, http.StatusNotFound, notFoundMessage(r))
	case errors.Is(err, sweeterrors.ErrDuplicateName):
		web.RespondError(w, h.logger, http.StatusConflict, sweeterrors.ErrDuplicateName.Error())
	case errors.Is(err, sweeterrors.ErrInvalidValue), errors.Is(err, sweeterrors.ErrInvalidQuantity):
		web.RespondError(w, h.logger, http.StatusBadRequest, causeOf(err))
	case errors.Is(err, sweeterrors.ErrConflict), errors.Is(err, sweeterrors.ErrStoreUnavailable):
		h.logger.WarnContext(ctx, "Transient failure", "error", err)
		w.Header().Set("Retry-After", retryAfterSeconds)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Service is temporarily unavailable, retry later")
	default:
		h.logger.ErrorContext(ctx, fallback, "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, fallback)
	}
}

func notFoundMessage(r *http.Request) string {
	if id, err := uuid.Parse(chi.URLParam(r, "id")); err == nil {
		return fmt.Sprintf("Sweet with ID %s not found", id)
	}
	return sweeterrors.ErrSweetNotFound.Error()
}

// causeOf strips the "failed to ... with ID x: " prefixes the service adds, keeping the client-facing reason.
func causeOf(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{sweeterrors.ErrInvalidValue, sweeterrors.ErrInvalidQuantity} {
		if i := strings.Index(msg, sentinel.Error()); i >= 0 {
			return msg[i:]
		}
	}
	return msg
}
