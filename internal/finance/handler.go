package finance

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mftcargo/tracker/internal/platform/httpx"
	"github.com/mftcargo/tracker/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler exposes bookkeeping over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions", h.list)
	r.Post("/transactions", h.create)
	r.Delete("/transactions/{id}", h.delete)
	r.Get("/stats", h.stats)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list transactions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create transaction failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete transaction failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("startDate"), false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := parseDate(q.Get("endDate"), true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stats, err := h.service.Stats(r.Context(), from, to)
	if err != nil {
		h.fail(w, "transaction stats failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	var (
		f   Filter
		err error
	)
	if f.ManifestID, err = optionalID(q.Get("manifestId"), "manifestId"); err != nil {
		return f, err
	}
	if f.ShipmentID, err = optionalID(q.Get("shipmentId"), "shipmentId"); err != nil {
		return f, err
	}
	switch t := Type(q.Get("type")); t {
	case "", Income, Expense:
		f.Type = t
	default:
		return f, shared.Validationf("invalid type %q", t)
	}
	if f.From, err = parseDate(q.Get("startDate"), false); err != nil {
		return f, err
	}
	if f.To, err = parseDate(q.Get("endDate"), true); err != nil {
		return f, err
	}
	return f, nil
}

func optionalID(raw, name string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, shared.Validationf("invalid %s", name)
	}
	return &id, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, shared.Validationf("invalid date %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, "error", err)
	}
	httpx.RespondError(w, err)
}
