package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trash4cash/internal/auth"
	"trash4cash/internal/forms"
	"trash4cash/internal/platform/middleware"
	"trash4cash/internal/resource/models"
	dErrors "trash4cash/pkg/domain-errors"
	"trash4cash/pkg/platform/httputil"
)

// HandleUpdateProfile implements PATCH /api/profile. The body is JSON or
// multipart/form-data with optional "profileImage" and "backgroundPhoto"
// files. The session keeps the updated profile.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(r)
	if !ok {
		httputil.WriteError(w, auth.ErrNotLoggedIn)
		return
	}
	ctx := r.Context()
	form, err := h.decodeProfileForm(r)
	if err != nil {
		h.fail(w, r, ws, err, "invalid profile body")
		return
	}
	current := ws.User()
	updated, err := ws.Mutations().UpdateProfile(ctx, current.ID, form)
	if err != nil {
		h.fail(w, r, ws, err, "profile update failed")
		return
	}

	user := current
	if updated != nil {
		user = *updated
		if user.Email == "" {
			user.Email = current.Email
		}
	} else {
		user.Name, user.Phone, user.Address = form.Name, form.Phone, form.Address
	}
	ws.SetUser(user)
	if err := h.auth.UpdateUser(ctx, ws.SessionID(), user); err != nil {
		h.logger.WarnContext(ctx, "failed to store updated profile",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
	h.respond(w, ws, http.StatusOK, ws.User())
}

// HandleChangePassword implements POST /api/profile/password.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(r)
	if !ok {
		httputil.WriteError(w, auth.ErrNotLoggedIn)
		return
	}
	ctx := r.Context()
	form, ok := httputil.DecodeJSON[forms.PasswordForm](ctx, w, r, h.logger, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := ws.Mutations().ChangePassword(ctx, ws.User().ID, form); err != nil {
		h.fail(w, r, ws, err, "password change failed")
		return
	}
	h.respond(w, ws, http.StatusOK, nil)
}

// HandleUserDropoffs implements GET /api/users/{id}/dropoffs.
func (h *Handler) HandleUserDropoffs(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(r)
	if !ok {
		httputil.WriteError(w, auth.ErrNotLoggedIn)
		return
	}
	if chi.URLParam(r, "resource") != models.KindUser.String() {
		h.fail(w, r, ws, dErrors.New(dErrors.CodeNotFound, "only users have dropoffs"), "user dropoffs failed")
		return
	}
	items, err := ws.UserDropoffs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, ws, err, "user dropoffs failed")
		return
	}
	h.respond(w, ws, http.StatusOK, items)
}

func (h *Handler) decodeProfileForm(r *http.Request) (*forms.ProfileForm, error) {
	if !isMultipart(r) {
		return decodeBody[forms.ProfileForm](r)
	}
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body")
	}
	form := &forms.ProfileForm{
		Name:    formValue(r, "name"),
		Phone:   formValue(r, "phone"),
		Address: formValue(r, "address"),
	}
	var err error
	if form.ProfileImage, err = formFile(r, "profileImage"); err != nil {
		return nil, err
	}
	if form.BackgroundPhoto, err = formFile(r, "backgroundPhoto"); err != nil {
		return nil, err
	}
	return form, nil
}
