package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"sort"
	"strconv"
)

// RawRecord is an upstream record decoded from JSON, before normalization.
type RawRecord map[string]any

// Metadata is the pagination block attached to list responses.
type Metadata struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page,omitempty"`
	Limit      int `json:"limit,omitempty"`
}

// UnmarshalJSON accepts the resource-specific total fields the backend emits
// (totalDropoffs, totalTransactions, ...) next to the generic total.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	read := func(keys ...string) int {
		for _, k := range keys {
			switch v := raw[k].(type) {
			case float64:
				return int(v)
			case string:
				if n, err := strconv.Atoi(v); err == nil {
					return n
				}
			}
		}
		return 0
	}

	m.Total = read("total", "totalItems", "totalDropoffs", "totalTransactions", "totalWasteTypes", "totalWasteBanks", "totalUsers")
	m.TotalPages = read("totalPages")
	m.Page = read("page", "currentPage")
	m.Limit = read("limit", "perPage")
	return nil
}

// ListResponse is one page of a collection.
type ListResponse struct {
	Data     []RawRecord `json:"data"`
	Metadata Metadata    `json:"metadata"`
}

// ListQuery carries the pagination and filter parameters of a list call.
// Zero values are omitted from the query string.
type ListQuery struct {
	Page   int
	Limit  int
	Status string
	Search string
	Sort   string
}

// Values encodes the query the way the backend expects it.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

// LoginResponse is returned by POST /users/login.
type LoginResponse struct {
	Token   string    `json:"token"`
	User    RawRecord `json:"data"`
	Message string    `json:"message,omitempty"`
}

// FilePart is an uploaded file sent inside a multipart body.
type FilePart struct {
	Field    string
	Filename string
	Content  []byte
}

// MultipartPayload is implemented by payloads the backend expects as
// multipart/form-data (waste types carry an image).
type MultipartPayload interface {
	MultipartFields() map[string]string
	MultipartFiles() []FilePart
}

// Form is a multipart payload made of plain fields only.
type Form map[string]string

func (f Form) MultipartFields() map[string]string { return f }
func (f Form) MultipartFiles() []FilePart         { return nil }

// encodeBody serializes payload either as JSON or, for MultipartPayload, as
// multipart/form-data. Fields are written in sorted order.
func encodeBody(payload any) (io.Reader, string, error) {
	if payload == nil {
		return nil, "", nil
	}
	mp, ok := payload.(MultipartPayload)
	if !ok {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := mp.MultipartFields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, "", fmt.Errorf("write multipart field %s: %w", name, err)
		}
	}
	for _, f := range mp.MultipartFiles() {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create multipart file %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write multipart file %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
