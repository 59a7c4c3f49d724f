package handler

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"trash4cash/internal/forms"
	"trash4cash/internal/gateway"
	"trash4cash/internal/platform/middleware"
	"trash4cash/internal/resource/models"
	dErrors "trash4cash/pkg/domain-errors"
	"trash4cash/pkg/platform/httputil"
)

// HandleCreate implements POST /api/{resource}. Waste types accept either
// JSON or multipart/form-data with an "image" file.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	svc := ws.Mutations()

	var (
		created any
		err     error
	)
	switch p.Kind() {
	case models.KindDropoff:
		form, ok := httputil.DecodeJSON[forms.DropoffForm](ctx, w, r, h.logger, requestID)
		if !ok {
			return
		}
		created, err = svc.CreateDropoff(ctx, form)
	case models.KindWasteType:
		form, derr := h.decodeWasteTypeForm(r)
		if derr != nil {
			h.fail(w, r, ws, derr, "invalid waste type body")
			return
		}
		created, err = svc.CreateWasteType(ctx, form)
	case models.KindWasteBank:
		form, ok := httputil.DecodeJSON[forms.WasteBankForm](ctx, w, r, h.logger, requestID)
		if !ok {
			return
		}
		created, err = svc.CreateWasteBank(ctx, form)
	default:
		err = dErrors.New(dErrors.CodeBadRequest, p.Kind().Label()+"s cannot be created from the console")
	}
	if err != nil {
		h.fail(w, r, ws, err, "create failed")
		return
	}
	h.respond(w, ws, http.StatusCreated, created)
}

// HandleUpdate implements PATCH /api/{resource}/{id} for waste types and
// waste banks.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	recordID := chi.URLParam(r, "id")
	svc := ws.Mutations()

	var (
		updated any
		err     error
	)
	switch p.Kind() {
	case models.KindWasteType:
		form, derr := h.decodeWasteTypeUpdate(r)
		if derr != nil {
			h.fail(w, r, ws, derr, "invalid waste type body")
			return
		}
		updated, err = svc.UpdateWasteType(ctx, recordID, form)
	case models.KindWasteBank:
		form, ok := httputil.DecodeJSON[forms.WasteBankUpdate](ctx, w, r, h.logger, middleware.GetRequestID(ctx))
		if !ok {
			return
		}
		updated, err = svc.UpdateWasteBank(ctx, recordID, form)
	default:
		err = dErrors.New(dErrors.CodeBadRequest, p.Kind().Label()+"s are edited through their status")
	}
	if err != nil {
		h.fail(w, r, ws, err, "update failed")
		return
	}
	h.respond(w, ws, http.StatusOK, updated)
}

// HandleCancel implements POST /api/dropoffs/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := h.panel(w, r)
	if !ok {
		return
	}
	if p.Kind() != models.KindDropoff {
		h.fail(w, r, ws, dErrors.New(dErrors.CodeNotFound, "only dropoffs can be cancelled"), "cancel failed")
		return
	}
	if err := ws.Mutations().CancelDropoff(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, ws, err, "cancel failed")
		return
	}
	h.respond(w, ws, http.StatusOK, nil)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// wasteTypeFields reads the multipart fields of a waste type body. Absent
// fields are nil.
type wasteTypeFields struct {
	name        *string
	pricePerKg  *float64
	description *string
	isActive    *bool
	image       *gateway.FilePart
}

func (h *Handler) readWasteTypeMultipart(r *http.Request) (*wasteTypeFields, error) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body")
	}
	out := &wasteTypeFields{}
	if vs, ok := r.MultipartForm.Value["name"]; ok && len(vs) > 0 {
		out.name = &vs[0]
	}
	if vs, ok := r.MultipartForm.Value["description"]; ok && len(vs) > 0 {
		out.description = &vs[0]
	}
	if vs, ok := r.MultipartForm.Value["pricePerKg"]; ok && len(vs) > 0 {
		price, err := strconv.ParseFloat(strings.TrimSpace(vs[0]), 64)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "pricePerKg must be a number")
		}
		out.pricePerKg = &price
	}
	if vs, ok := r.MultipartForm.Value["isActive"]; ok && len(vs) > 0 {
		active, err := strconv.ParseBool(strings.TrimSpace(vs[0]))
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "isActive must be true or false")
		}
		out.isActive = &active
	}
	image, err := formFile(r, "image")
	if err != nil {
		return nil, err
	}
	out.image = image
	return out, nil
}

// formFile reads the first upload under field of a parsed multipart form.
// It is nil when nothing was uploaded.
func formFile(r *http.Request, field string) (*gateway.FilePart, error) {
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unreadable "+field)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unreadable "+field)
	}
	return &gateway.FilePart{Field: field, Filename: files[0].Filename, Content: content}, nil
}

// formValue returns the first value of field, or "" when absent.
func formValue(r *http.Request, field string) string {
	if vs := r.MultipartForm.Value[field]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (h *Handler) decodeWasteTypeForm(r *http.Request) (*forms.WasteTypeForm, error) {
	if !isMultipart(r) {
		return decodeBody[forms.WasteTypeForm](r)
	}
	fields, err := h.readWasteTypeMultipart(r)
	if err != nil {
		return nil, err
	}
	form := &forms.WasteTypeForm{IsActive: fields.isActive, Image: fields.image}
	if fields.name != nil {
		form.Name = *fields.name
	}
	if fields.pricePerKg != nil {
		form.PricePerKg = *fields.pricePerKg
	}
	if fields.description != nil {
		form.Description = *fields.description
	}
	return form, nil
}

func (h *Handler) decodeWasteTypeUpdate(r *http.Request) (*forms.WasteTypeUpdate, error) {
	if !isMultipart(r) {
		return decodeBody[forms.WasteTypeUpdate](r)
	}
	fields, err := h.readWasteTypeMultipart(r)
	if err != nil {
		return nil, err
	}
	return &forms.WasteTypeUpdate{
		Name:        fields.name,
		PricePerKg:  fields.pricePerKg,
		Description: fields.description,
		IsActive:    fields.isActive,
		Image:       fields.image,
	}, nil
}

func decodeBody[T any](r *http.Request) (*T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return &v, nil
}
