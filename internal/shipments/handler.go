package shipments

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mftcargo/tracker/internal/platform/httpx"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/status"
)

const idempotencyScope = "shipment:create"

// Idempotency claims Idempotency-Key headers.
type Idempotency interface {
	Claim(ctx context.Context, key, scope string) error
	Release(ctx context.Context, key, scope string) error
}

// Handler exposes shipment endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency Idempotency
}

// NewHandler creates a new handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, idempotency Idempotency) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, idempotency: idempotency}
}

// envelope is the public lookup response shape.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MountRoutes registers the admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/statuses", h.statuses)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

// MountPublicRoutes registers the unauthenticated lookups.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/", h.trackByCustomer)
	r.Get("/{trackingNumber}", h.track)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list shipments failed", err)
		return
	}
	if list == nil {
		list = []Shipment{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"type": "list", "data": list, "pagination": page})
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{Search: q.Get("q")}
	if raw := q.Get("status"); raw != "" {
		code, err := status.Parse(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = &code
	}
	filter.Unassigned = q.Get("unassigned") == "true"
	for name, dst := range map[string]**int64{"manifestId": &filter.ManifestID, "customerId": &filter.CustomerID} {
		if raw := q.Get(name); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return filter, shared.Validationf("invalid %s", name)
			}
			*dst = &id
		}
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("perPage"))
	return filter, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.Claim(r.Context(), key, idempotencyScope); err != nil {
			h.fail(w, "claim idempotency key failed", err)
			return
		}
	}
	detail, err := h.service.Create(r.Context(), in)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if rerr := h.idempotency.Release(r.Context(), key, idempotencyScope); rerr != nil {
				h.logger.Warn("release idempotency key failed", slog.Any("error", rerr))
			}
		}
		h.fail(w, "create shipment failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) statuses(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, status.All())
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get shipment failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, envelope{Type: "detail", Data: detail})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var patch Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.fail(w, "update shipment failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete shipment failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Track(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		h.fail(w, "track shipment failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, envelope{Type: "single", Data: detail})
}

func (h *Handler) trackByCustomer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.service.TrackByCustomer(r.Context(), q.Get("customerCode"), q.Get("phoneNumber"))
	if err != nil {
		h.fail(w, "track customer shipments failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, envelope{Type: "list", Data: list})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, "error", err)
	}
	httpx.RespondError(w, err)
}
