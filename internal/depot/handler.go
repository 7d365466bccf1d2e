package depot

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mftcargo/tracker/internal/platform/httpx"
	"github.com/mftcargo/tracker/internal/shared"
)

// Handler exposes the depot unloading session.
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

type selectRequest struct {
	ManifestID int64 `json:"manifestId" validate:"required,gt=0"`
}

type scanRequest struct {
	Code string `json:"code" validate:"max=64"`
}

// MountRoutes registers the admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/session", h.selectManifest)
	r.Delete("/session", h.clear)
	r.Post("/scan", h.scan)
	r.Get("/board", h.board)
	r.Post("/approve", h.approve)
}

func (h *Handler) selectManifest(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.Select(r.Context(), req.ManifestID)
	if err != nil {
		h.fail(w, "select depot manifest failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.fail(w, "clear depot session failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Scan(r.Context(), req.Code)
	if err != nil {
		h.fail(w, "depot scan failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Board(r.Context())
	if err != nil {
		h.fail(w, "depot board failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Approve(r.Context())
	if err != nil {
		h.fail(w, "depot approve failed", err)
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
