package console

import (
	"context"

	"trash4cash/internal/dialog"
	"trash4cash/internal/listing"
	"trash4cash/internal/resource"
	"trash4cash/internal/resource/models"
)

// Panel is the list view and record dialog of one resource, with the record
// type erased so handlers can route by path segment.
type Panel interface {
	Kind() models.Kind
	// View loads the current query through the cache and returns the list state.
	View(ctx context.Context) any
	// State returns the list state without fetching.
	State() any
	SetPage(ctx context.Context, page int) error
	SetLimit(ctx context.Context, limit int) error
	SetStatusFilter(ctx context.Context, status string) error
	SetSearchTerm(ctx context.Context, term string) error
	Refetch(ctx context.Context)

	Dialog() any
	Open(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, status string) error
	Delete(ctx context.Context) error
	Close()
}

type panel[T resource.Record[T]] struct {
	list   *listing.Controller[T]
	dialog *dialog.Controller[T]
}

func (p *panel[T]) Kind() models.Kind { return p.list.Descriptor().Kind }

func (p *panel[T]) View(ctx context.Context) any {
	p.list.Load(ctx)
	return p.list.State()
}

func (p *panel[T]) State() any { return p.list.State() }

func (p *panel[T]) SetPage(ctx context.Context, page int) error {
	return p.list.SetPage(ctx, page)
}

func (p *panel[T]) SetLimit(ctx context.Context, limit int) error {
	return p.list.SetLimit(ctx, limit)
}

func (p *panel[T]) SetStatusFilter(ctx context.Context, status string) error {
	return p.list.SetStatusFilter(ctx, status)
}

func (p *panel[T]) SetSearchTerm(ctx context.Context, term string) error {
	return p.list.SetSearchTerm(ctx, term)
}

func (p *panel[T]) Refetch(ctx context.Context) { p.list.Refetch(ctx) }

func (p *panel[T]) Dialog() any { return p.dialog.State() }

func (p *panel[T]) Open(ctx context.Context, id string) error {
	return p.dialog.Open(ctx, id)
}

func (p *panel[T]) UpdateStatus(ctx context.Context, status string) error {
	return p.dialog.UpdateStatus(ctx, status)
}

func (p *panel[T]) Delete(ctx context.Context) error {
	return p.dialog.Delete(ctx)
}

func (p *panel[T]) Close() { p.dialog.Close() }
