package handler

import (
	"net/http"

	"trash4cash/internal/platform/middleware"
	"trash4cash/pkg/platform/httputil"
)

type openRequest struct {
	ID string `json:"id"`
}

func (h *Handler) HandleDialog(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	h.respond(w, ws, http.StatusOK, p.Dialog())
}

func (h *Handler) HandleDialogOpen(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[openRequest](ctx, w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := p.Open(ctx, req.ID); err != nil {
		h.fail(w, r, ws, err, "open dialog failed")
		return
	}
	h.respond(w, ws, http.StatusOK, p.Dialog())
}

// HandleDialogStatus implements POST /api/{resource}/dialog/status. The
// cached rows are patched before the backend answers and restored if it
// rejects the change.
func (h *Handler) HandleDialogStatus(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[statusRequest](ctx, w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := p.UpdateStatus(ctx, req.Status); err != nil {
		h.fail(w, r, ws, err, "status update failed")
		return
	}
	h.respond(w, ws, http.StatusOK, p.Dialog())
}

func (h *Handler) HandleDialogDelete(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	if err := p.Delete(r.Context()); err != nil {
		h.fail(w, r, ws, err, "delete failed")
		return
	}
	h.respond(w, ws, http.StatusOK, p.Dialog())
}

func (h *Handler) HandleDialogClose(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	p.Close()
	h.respond(w, ws, http.StatusOK, p.Dialog())
}
