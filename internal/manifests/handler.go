package manifests

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mftcargo/tracker/internal/platform/httpx"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/status"
)

// Handler exposes manifest endpoints.
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
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/stages", h.stages)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/shipments", h.assign)
	r.Delete("/{id}/shipments", h.unassign)
	r.Put("/{id}/shipments", h.sync)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list manifests failed", err)
		return
	}
	if list == nil {
		list = []Summary{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create manifest failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) stages(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, status.Stages())
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get manifest failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
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
	m, cascade, err := h.service.UpdateStage(r.Context(), id, patch)
	if err != nil {
		h.fail(w, "update manifest failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"manifest": m, "cascade": cascade})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete manifest failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) membership(r *http.Request) (int64, []int64, error) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		return 0, nil, err
	}
	var in MembershipInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		return 0, nil, err
	}
	if err := shared.Validate(in); err != nil {
		return 0, nil, err
	}
	return id, in.ShipmentIDs, nil
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	id, ids, err := h.membership(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.service.AssignShipments(r.Context(), id, ids)
	if err != nil {
		h.fail(w, "assign shipments failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	id, ids, err := h.membership(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.service.UnassignShipments(r.Context(), id, ids)
	if err != nil {
		h.fail(w, "unassign shipments failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	id, ids, err := h.membership(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.SyncMembership(r.Context(), id, ids)
	if err != nil {
		h.fail(w, "sync manifest shipments failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, "error", err)
	}
	httpx.RespondError(w, err)
}
