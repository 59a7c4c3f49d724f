package handler

import (
	"net/http"

	"trash4cash/internal/platform/middleware"
	"trash4cash/pkg/platform/httputil"
)

type pageRequest struct {
	Page int `json:"page"`
}

type limitRequest struct {
	Limit int `json:"limit"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type searchRequest struct {
	Term string `json:"term"`
}

// HandleView implements GET /api/{resource}: the list state, loaded through
// the cache.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	h.respond(w, ws, http.StatusOK, p.View(r.Context()))
}

func (h *Handler) HandleSetPage(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[pageRequest](ctx, w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := p.SetPage(ctx, req.Page); err != nil {
		h.fail(w, r, ws, err, "set page failed")
		return
	}
	h.respond(w, ws, http.StatusOK, p.State())
}

func (h *Handler) HandleSetLimit(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[limitRequest](ctx, w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := p.SetLimit(ctx, req.Limit); err != nil {
		h.fail(w, r, ws, err, "set limit failed")
		return
	}
	h.respond(w, ws, http.StatusOK, p.State())
}

func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[statusRequest](ctx, w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := p.SetStatusFilter(ctx, req.Status); err != nil {
		h.fail(w, r, ws, err, "set status filter failed")
		return
	}
	h.respond(w, ws, http.StatusOK, p.State())
}

func (h *Handler) HandleSetSearch(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[searchRequest](ctx, w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := p.SetSearchTerm(ctx, req.Term); err != nil {
		h.fail(w, r, ws, err, "set search term failed")
		return
	}
	h.respond(w, ws, http.StatusOK, p.State())
}

func (h *Handler) HandleRefetch(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	p.Refetch(r.Context())
	h.respond(w, ws, http.StatusOK, p.State())
}
