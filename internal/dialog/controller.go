// Package dialog implements the detail/status dialog shared by every managed
// resource: open a record, change its status optimistically, delete it.
package dialog

//go:generate mockgen -source=controller.go -destination=mocks/mocks.go -package=mocks Gateway

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"trash4cash/internal/gateway"
	"trash4cash/internal/notify"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource"
	dErrors "trash4cash/pkg/domain-errors"
)

// Phase is the dialog lifecycle state.
type Phase string

const (
	PhaseClosed   Phase = "closed"
	PhaseLoading  Phase = "loading"
	PhaseReady    Phase = "ready"
	PhaseMutating Phase = "mutating"
	PhaseError    Phase = "error"
)

// Gateway is the subset of the backend the dialog uses.
type Gateway interface {
	Get(ctx context.Context, resource, id string) (gateway.RawRecord, error)
	UpdateStatus(ctx context.Context, resource, id, status string) (gateway.RawRecord, error)
	Update(ctx context.Context, resource, id string, payload any) (gateway.RawRecord, error)
	CancelDropoff(ctx context.Context, id string) (gateway.RawRecord, error)
	Delete(ctx context.Context, resource, id string) error
}

// State is a snapshot of the dialog.
type State[T any] struct {
	Phase    Phase  `json:"phase"`
	ID       string `json:"id,omitempty"`
	Selected *T     `json:"selected,omitempty"`
}

// Controller drives one dialog. It is safe for concurrent use.
type Controller[T resource.Record[T]] struct {
	desc     resource.Descriptor[T]
	gw       Gateway
	cache    *querycache.Cache
	notifier notify.Notifier
	logger   *slog.Logger
	metrics  *Metrics

	mu       sync.Mutex
	phase    Phase
	id       string
	selected T
	// seq changes on every Open and Close so late results of an abandoned
	// dialog are ignored.
	seq uint64
}

type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *Metrics
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a closed dialog.
func New[T resource.Record[T]](desc resource.Descriptor[T], gw Gateway, cache *querycache.Cache, notifier notify.Notifier, opts ...Option) *Controller[T] {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if notifier == nil {
		notifier = notify.Nop
	}
	return &Controller[T]{
		desc:     desc,
		gw:       gw,
		cache:    cache,
		notifier: notifier,
		logger:   o.logger,
		metrics:  o.metrics,
		phase:    PhaseClosed,
	}
}

// State returns the current phase and selected record.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State[T]{Phase: c.phase, ID: c.id}
	if c.phase == PhaseReady || c.phase == PhaseMutating {
		sel := c.selected
		st.Selected = &sel
	}
	return st
}

// Selected returns the record shown by an open dialog.
func (c *Controller[T]) Selected() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady && c.phase != PhaseMutating {
		var zero T
		return zero, false
	}
	return c.selected, true
}

// Close closes the dialog. A mutation in flight still completes.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Controller[T]) closeLocked() {
	var zero T
	c.phase = PhaseClosed
	c.id = ""
	c.selected = zero
	c.seq++
}

// Open shows record id. A record held by a fresh cache entry, as a detail
// entry or as a row of any list page, opens without a backend call.
// Invalidated or expired entries are ignored.
func (c *Controller[T]) Open(ctx context.Context, id string) error {
	if id == "" {
		return dErrors.New(dErrors.CodeValidation, c.desc.Label+" id is required")
	}
	c.mu.Lock()
	if c.phase == PhaseMutating {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, "a change is still being saved")
	}
	c.seq++
	seq := c.seq
	c.id = id
	c.phase = PhaseLoading
	c.mu.Unlock()

	if rec, ok := c.cached(id); ok {
		c.mu.Lock()
		if seq == c.seq {
			c.selected = rec
			c.phase = PhaseReady
		}
		c.mu.Unlock()
		return nil
	}

	key := querycache.DetailKey(c.desc.Kind, id)
	rec, err := querycache.Fetch(ctx, c.cache, key, func(ctx context.Context) (T, error) {
		raw, err := c.gw.Get(ctx, c.desc.Kind.String(), id)
		if err != nil {
			var zero T
			return zero, err
		}
		return c.desc.Normalize(raw)
	})

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.phase = PhaseError
		c.closeLocked()
		c.mu.Unlock()

		c.logger.WarnContext(ctx, "dialog fetch failed", "resource", c.desc.Kind.String(), "id", id, "error", err)
		c.notifier.Notify(ctx, notify.Failure("Error fetching "+c.desc.Label, gateway.Describe(err)))
		return dErrors.Reclassify(err, dErrors.CodeFetchFailed, "failed to fetch "+c.desc.Label)
	}
	c.selected = rec
	c.phase = PhaseReady
	c.mu.Unlock()
	return nil
}

// cached finds id in the fresh detail entry or in a fresh list page of the
// resource.
func (c *Controller[T]) cached(id string) (T, bool) {
	if rec, ok := querycache.Lookup[T](c.cache, querycache.DetailKey(c.desc.Kind, id)); ok {
		return rec, true
	}
	var found T
	ok := false
	c.cache.RangeFresh(c.desc.Kind, func(k querycache.Key, data any) bool {
		page, isPage := data.(resource.Page[T])
		if !isPage {
			return true
		}
		for _, it := range page.Items {
			if it.RecordID() == id {
				found, ok = it, true
				return false
			}
		}
		return true
	})
	return found, ok
}

// UpdateStatus changes the selected record's status. The change is shown
// immediately in the dialog and in every cached list page; it is reverted
// if the backend rejects it. Setting the current status is a no-op.
func (c *Controller[T]) UpdateStatus(ctx context.Context, status string) error {
	c.mu.Lock()
	if c.phase != PhaseReady {
		phase := c.phase
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot update status while dialog is %s", phase))
	}
	if !c.desc.HasStatus() {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeValidation, c.desc.Plural+" have no status")
	}
	if status == c.selected.RecordStatus() {
		c.mu.Unlock()
		return nil
	}
	if !c.desc.Statuses.Contains(status) {
		c.mu.Unlock()
		err := dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid %s status %q", c.desc.Label, status))
		c.notifier.Notify(ctx, notify.Failure("Failed to update status", err.Error()))
		return err
	}
	prior := c.selected
	id := c.id
	seq := c.seq
	c.selected = prior.WithStatus(status)
	c.phase = PhaseMutating
	c.mu.Unlock()

	undo := c.patchCached(id, func(rec T) T { return rec.WithStatus(status) })

	err := c.desc.WriteStatus(ctx, c.gw, id, status)
	c.metrics.mutation(c.desc.Kind.String(), "update_status", err)

	if err != nil {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		c.metrics.rollback(c.desc.Kind.String())

		c.mu.Lock()
		if seq == c.seq {
			c.selected = prior
			c.phase = PhaseReady
		}
		c.mu.Unlock()

		c.logger.WarnContext(ctx, "status update rolled back",
			"resource", c.desc.Kind.String(), "id", id, "status", status, "error", err)
		c.notifier.Notify(ctx, notify.Failure("Failed to update status", gateway.Describe(err)))
		return dErrors.Reclassify(err, dErrors.CodeMutationFailed, "failed to update "+c.desc.Label+" status")
	}

	c.cache.InvalidateResource(c.desc.Kind)

	c.mu.Lock()
	if seq == c.seq {
		c.closeLocked()
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "status updated", "resource", c.desc.Kind.String(), "id", id, "status", status)
	c.notifier.Notify(ctx, notify.Success("Status updated",
		fmt.Sprintf("%s status changed to %s", capitalize(c.desc.Label), status)))
	return nil
}

// patchCached rewrites record id in the detail entry and every list page
// holding it. The returned funcs restore each patched entry's prior row.
func (c *Controller[T]) patchCached(id string, update func(T) T) []func() {
	var undo []func()

	detail := querycache.DetailKey(c.desc.Kind, id)
	var priorDetail T
	if querycache.Patch(c.cache, detail, func(rec T) T {
		priorDetail = rec
		return update(rec)
	}) {
		undo = append(undo, func() {
			querycache.Patch(c.cache, detail, func(T) T { return priorDetail })
		})
	}

	c.cache.Range(c.desc.Kind, func(k querycache.Key, data any) bool {
		if k.IsDetail() {
			return true
		}
		var priorRow T
		patched := false
		querycache.Patch(c.cache, k, func(page resource.Page[T]) resource.Page[T] {
			i := slices.IndexFunc(page.Items, func(it T) bool { return it.RecordID() == id })
			if i < 0 {
				return page
			}
			priorRow = page.Items[i]
			patched = true
			return replaceRow(page, id, update(priorRow))
		})
		if patched {
			key := k
			undo = append(undo, func() {
				querycache.Patch(c.cache, key, func(page resource.Page[T]) resource.Page[T] {
					return replaceRow(page, id, priorRow)
				})
			})
		}
		return true
	})
	return undo
}

// replaceRow returns a copy of page with the row id replaced by rec.
func replaceRow[T resource.Record[T]](page resource.Page[T], id string, rec T) resource.Page[T] {
	i := slices.IndexFunc(page.Items, func(it T) bool { return it.RecordID() == id })
	if i < 0 {
		return page
	}
	items := slices.Clone(page.Items)
	items[i] = rec
	page.Items = items
	return page
}

// Delete removes the selected record. On failure the dialog stays open.
func (c *Controller[T]) Delete(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseReady {
		phase := c.phase
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot delete while dialog is %s", phase))
	}
	id := c.id
	seq := c.seq
	c.phase = PhaseMutating
	c.mu.Unlock()

	err := c.gw.Delete(ctx, c.desc.Kind.String(), id)
	c.metrics.mutation(c.desc.Kind.String(), "delete", err)
	if err != nil {
		c.mu.Lock()
		if seq == c.seq {
			c.phase = PhaseReady
		}
		c.mu.Unlock()
		c.notifier.Notify(ctx, notify.Failure("Failed to delete "+c.desc.Label, gateway.Describe(err)))
		return dErrors.Reclassify(err, dErrors.CodeMutationFailed, "failed to delete "+c.desc.Label)
	}

	c.cache.Remove(querycache.DetailKey(c.desc.Kind, id))
	c.cache.InvalidateResource(c.desc.Kind)

	c.mu.Lock()
	if seq == c.seq {
		c.closeLocked()
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "record deleted", "resource", c.desc.Kind.String(), "id", id)
	c.notifier.Notify(ctx, notify.Success(capitalize(c.desc.Label)+" deleted", ""))
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
