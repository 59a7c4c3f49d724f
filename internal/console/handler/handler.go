// Package handler exposes the console over HTTP. Every session-bound
// response carries the notifications raised while it was handled.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trash4cash/internal/auth"
	"trash4cash/internal/console"
	"trash4cash/internal/forms"
	"trash4cash/internal/notify"
	"trash4cash/internal/platform/middleware"
	"trash4cash/internal/resource/models"
	id "trash4cash/pkg/domain"
	dErrors "trash4cash/pkg/domain-errors"
	"trash4cash/pkg/platform/httputil"
)

// AuthService manages operator sessions.
type AuthService interface {
	Login(ctx context.Context, form *forms.LoginForm) (*auth.Session, error)
	Logout(ctx context.Context, sessionID id.SessionID) error
	Resolve(ctx context.Context, sessionID id.SessionID) (*auth.Session, error)
	UpdateUser(ctx context.Context, sessionID id.SessionID, user models.User) error
}

type Handler struct {
	auth      AuthService
	manager   *console.Manager
	logger    *slog.Logger
	maxUpload int64
}

// DefaultMaxUpload bounds multipart bodies (waste type images).
const DefaultMaxUpload = 5 << 20

func New(authSvc AuthService, manager *console.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{auth: authSvc, manager: manager, logger: logger, maxUpload: DefaultMaxUpload}
}

// Register mounts the console API.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/login", h.HandleLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(h.auth, h.logger))

		r.Post("/api/logout", h.HandleLogout)
		r.Get("/api/me", h.HandleMe)
		r.Get("/api/dashboard", h.HandleDashboard)
		r.Patch("/api/profile", h.HandleUpdateProfile)
		r.Post("/api/profile/password", h.HandleChangePassword)

		r.Route("/api/{resource}", func(r chi.Router) {
			r.Get("/", h.HandleView)
			r.Post("/", h.HandleCreate)
			r.Post("/page", h.HandleSetPage)
			r.Post("/limit", h.HandleSetLimit)
			r.Post("/status", h.HandleSetStatus)
			r.Post("/search", h.HandleSetSearch)
			r.Post("/refetch", h.HandleRefetch)

			r.Get("/dialog", h.HandleDialog)
			r.Post("/dialog/open", h.HandleDialogOpen)
			r.Post("/dialog/status", h.HandleDialogStatus)
			r.Post("/dialog/delete", h.HandleDialogDelete)
			r.Post("/dialog/close", h.HandleDialogClose)

			r.Patch("/{id}", h.HandleUpdate)
			r.Post("/{id}/cancel", h.HandleCancel)
			r.Get("/{id}/dropoffs", h.HandleUserDropoffs)
		})
	})
}

// envelope is the body of every session-bound response.
type envelope struct {
	Data          any                   `json:"data,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
}

type errorEnvelope struct {
	httputil.ErrorBody
	Notifications []notify.Notification `json:"notifications"`
}

type loginResponse struct {
	SessionID string      `json:"sessionId"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// workspace returns the caller's workspace, reopening it after a restart
// when the session outlived the process.
func (h *Handler) workspace(r *http.Request) (*console.Workspace, bool) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		return nil, false
	}
	return h.manager.Open(session), true
}

// OnUnauthorized drops the session carried by ctx. It is installed as the
// gateway's 401 hook: a token the backend rejects is never sent again.
func (h *Handler) OnUnauthorized(ctx context.Context) {
	session, ok := middleware.GetSession(ctx)
	if !ok {
		return
	}
	if err := h.auth.Logout(ctx, session.ID); err != nil {
		h.logger.WarnContext(ctx, "failed to drop rejected session", "error", err)
	}
	h.manager.Close(session.ID)
	h.logger.InfoContext(ctx, "session dropped after backend rejected its token",
		"session_id", session.ID.String(),
		"request_id", middleware.GetRequestID(ctx),
	)
}

// dropped reports whether the workspace was closed while handling the
// request.
func (h *Handler) dropped(ws *console.Workspace) bool {
	_, live := h.manager.Get(ws.SessionID())
	return !live
}

func (h *Handler) respond(w http.ResponseWriter, ws *console.Workspace, status int, data any) {
	if h.dropped(ws) {
		h.writeError(w, ws, auth.ErrSessionExpired)
		return
	}
	httputil.WriteJSON(w, status, envelope{Data: data, Notifications: ws.Notifications()})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, ws *console.Workspace, err error, msg string) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", middleware.GetRequestID(ctx),
	)
	if ws != nil && h.dropped(ws) {
		err = auth.ErrSessionExpired
	}
	h.writeError(w, ws, err)
}

func (h *Handler) writeError(w http.ResponseWriter, ws *console.Workspace, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		domainErr = &dErrors.Error{Code: dErrors.CodeInternal}
	}
	notes := []notify.Notification{}
	if ws != nil {
		notes = ws.Notifications()
	}
	httputil.WriteJSON(w, httputil.StatusFor(domainErr.Code), errorEnvelope{
		ErrorBody:     httputil.ErrorBody{Error: domainErr.Code, Description: domainErr.Message},
		Notifications: notes,
	})
}

// panel resolves the {resource} path segment.
func (h *Handler) panel(w http.ResponseWriter, r *http.Request) (*console.Workspace, console.Panel, bool) {
	ws, ok := h.workspace(r)
	if !ok {
		httputil.WriteError(w, auth.ErrNotLoggedIn)
		return nil, nil, false
	}
	kind, err := models.ParseKind(chi.URLParam(r, "resource"))
	if err != nil {
		h.fail(w, r, ws, err, "unknown resource")
		return nil, nil, false
	}
	p, err := ws.Panel(kind)
	if err != nil {
		h.fail(w, r, ws, err, "unknown resource")
		return nil, nil, false
	}
	return ws, p, true
}

// HandleLogin implements POST /api/login.
//
// Input: { "email": "admin@trash4cash.id", "password": "..." }
// Output: { "sessionId": "...", "user": {...}, "expiresAt": "..." }
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	form, ok := httputil.DecodeJSON[forms.LoginForm](ctx, w, r, h.logger, requestID)
	if !ok {
		return
	}
	session, err := h.auth.Login(ctx, form)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	h.manager.Open(session)

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		SessionID: session.ID.String(),
		User:      session.User,
		ExpiresAt: session.ExpiresAt,
	})
}

// HandleLogout implements POST /api/logout. It drops the token and every
// cached query of the session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := middleware.GetSession(ctx)
	if err := h.auth.Logout(ctx, session.ID); err != nil {
		h.fail(w, r, nil, err, "logout failed")
		return
	}
	h.manager.Close(session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(r)
	if !ok {
		httputil.WriteError(w, auth.ErrNotLoggedIn)
		return
	}
	h.respond(w, ws, http.StatusOK, ws.User())
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(r)
	if !ok {
		httputil.WriteError(w, auth.ErrNotLoggedIn)
		return
	}
	h.respond(w, ws, http.StatusOK, ws.Dashboard().Stats(r.Context()))
}
