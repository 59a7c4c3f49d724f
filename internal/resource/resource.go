// Package resource describes the collections the console manages: how their
// records are normalized, searched and status-updated. The list and dialog
// controllers are generic over these descriptors.
package resource

import (
	"context"
	"strings"

	"trash4cash/internal/gateway"
	"trash4cash/internal/resource/format"
	"trash4cash/internal/resource/models"
	"trash4cash/internal/resource/normalize"
)

// Record is a normalized record that exposes its id and status.
// WithStatus returns a copy carrying the new status.
type Record[T any] interface {
	RecordID() string
	RecordStatus() string
	WithStatus(status string) T
}

// StatusWriter is the subset of the backend used to change a record's status.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, resource, id, status string) (gateway.RawRecord, error)
	Update(ctx context.Context, resource, id string, payload any) (gateway.RawRecord, error)
	CancelDropoff(ctx context.Context, id string) (gateway.RawRecord, error)
}

// Descriptor binds a record type to its collection.
type Descriptor[T Record[T]] struct {
	Kind      models.Kind
	Label     string // singular, used in notifications
	Plural    string
	Statuses  models.StatusSet
	Normalize func(gateway.RawRecord) (T, error)
	// SearchFields lists the values a client-side search term is matched against.
	SearchFields func(T) []string
	// WriteStatus performs the backend call for a status change.
	WriteStatus func(ctx context.Context, w StatusWriter, id, status string) error
}

// Page is the cached value of a list query.
type Page[T any] struct {
	Items      []T
	Total      int
	TotalPages int
}

// NormalizeAll normalizes raws in order, skipping records that cannot be
// identified. The number of skipped records is returned.
func (d Descriptor[T]) NormalizeAll(raws []gateway.RawRecord) ([]T, int) {
	out := make([]T, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		rec, err := d.Normalize(raw)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped
}

// PageFrom builds a Page from a list response. Totals fall back to the item
// count when the backend omits metadata.
func (d Descriptor[T]) PageFrom(resp *gateway.ListResponse, limit int) (Page[T], int) {
	items, skipped := d.NormalizeAll(resp.Data)
	total := resp.Metadata.Total
	if total == 0 {
		total = len(items)
	}
	pages := resp.Metadata.TotalPages
	if pages == 0 {
		pages = PageCount(total, limit)
	}
	return Page[T]{Items: items, Total: total, TotalPages: pages}, skipped
}

// Matches reports whether any search field contains term, case-insensitively.
// An empty term matches everything.
func (d Descriptor[T]) Matches(rec T, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if d.SearchFields == nil {
		return false
	}
	for _, f := range d.SearchFields(rec) {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// Filter returns the records matching term, preserving order.
func (d Descriptor[T]) Filter(recs []T, term string) []T {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if d.Matches(r, term) {
			out = append(out, r)
		}
	}
	return out
}

// HasStatus reports whether the resource has a status lifecycle.
func (d Descriptor[T]) HasStatus() bool {
	return !d.Statuses.Empty()
}

// PageCount returns ceil(total/limit), with a minimum of 1.
func PageCount(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

func patchStatus(kind models.Kind) func(context.Context, StatusWriter, string, string) error {
	return func(ctx context.Context, w StatusWriter, id, status string) error {
		_, err := w.UpdateStatus(ctx, kind.String(), id, status)
		return err
	}
}

var Dropoffs = Descriptor[models.Dropoff]{
	Kind:      models.KindDropoff,
	Label:     models.KindDropoff.Label(),
	Plural:    "dropoffs",
	Statuses:  models.DropoffStatuses,
	Normalize: normalize.Dropoff,
	SearchFields: func(d models.Dropoff) []string {
		return []string{
			d.Owner.Name,
			d.Owner.Email,
			d.Location,
			d.Notes,
			d.Status,
			d.WasteType,
			format.Plain(d.Weight),
			strings.ToLower(format.LongDate(d.CreatedAt)),
		}
	},
	// cancellation has its own endpoint
	WriteStatus: func(ctx context.Context, w StatusWriter, id, status string) error {
		if status == models.StatusCancelled {
			_, err := w.CancelDropoff(ctx, id)
			return err
		}
		_, err := w.UpdateStatus(ctx, models.KindDropoff.String(), id, status)
		return err
	},
}

var Transactions = Descriptor[models.Transaction]{
	Kind:      models.KindTransaction,
	Label:     models.KindTransaction.Label(),
	Plural:    "transactions",
	Statuses:  models.TransactionStatuses,
	Normalize: normalize.Transaction,
	SearchFields: func(t models.Transaction) []string {
		return []string{
			t.Owner.Name,
			t.Owner.Email,
			t.Type,
			t.Details,
			t.Notes,
			t.Status,
			format.Plain(t.Amount),
			strings.ToLower(format.LongDate(t.CreatedAt)),
		}
	},
	WriteStatus: patchStatus(models.KindTransaction),
}

var WasteTypes = Descriptor[models.WasteType]{
	Kind:      models.KindWasteType,
	Label:     models.KindWasteType.Label(),
	Plural:    "waste types",
	Statuses:  models.WasteTypeStatuses,
	Normalize: normalize.WasteType,
	SearchFields: func(w models.WasteType) []string {
		return []string{w.Name, w.Description, w.RecordStatus(), format.Plain(w.PricePerKg)}
	},
	// availability is toggled through the multipart update endpoint
	WriteStatus: func(ctx context.Context, w StatusWriter, id, status string) error {
		active := "false"
		if status == models.StatusActive {
			active = "true"
		}
		_, err := w.Update(ctx, models.KindWasteType.String(), id, gateway.Form{"isActive": active})
		return err
	},
}

var WasteBanks = Descriptor[models.WasteBank]{
	Kind:      models.KindWasteBank,
	Label:     models.KindWasteBank.Label(),
	Plural:    "waste banks",
	Normalize: normalize.WasteBank,
	SearchFields: func(b models.WasteBank) []string {
		return []string{b.Name, b.Address, b.Phone}
	},
}
