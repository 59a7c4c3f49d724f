// Package console assembles what one logged-in operator works with: a query
// cache, the list views and dialogs of every resource, the mutation and
// dashboard services, and the queue of pending notifications.
package console

import (
	"context"
	"sync"
	"time"

	"trash4cash/internal/dashboard"
	"trash4cash/internal/listing"
	"trash4cash/internal/mutation"
	"trash4cash/internal/notify"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource/models"
	id "trash4cash/pkg/domain"
	dErrors "trash4cash/pkg/domain-errors"
)

// Workspace is the per-session state. It is safe for concurrent use.
type Workspace struct {
	id        id.SessionID
	openedAt  time.Time
	cache     *querycache.Cache
	recorder  *notify.Recorder
	panels    map[models.Kind]Panel
	mutations *mutation.Service
	dashboard *dashboard.Service
	owners    *listing.OwnerView

	mu   sync.RWMutex
	user models.User
}

func (w *Workspace) SessionID() id.SessionID { return w.id }

func (w *Workspace) User() models.User {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.user
}

// SetUser replaces the operator profile after it was edited.
func (w *Workspace) SetUser(u models.User) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.user = u
}

// UserDropoffs lists every dropoff of userID.
func (w *Workspace) UserDropoffs(ctx context.Context, userID string) ([]models.Dropoff, error) {
	return w.owners.Dropoffs(ctx, userID)
}

func (w *Workspace) OpenedAt() time.Time { return w.openedAt }

// Panel returns the panel of kind, or a not_found error for unmanaged kinds.
func (w *Workspace) Panel(kind models.Kind) (Panel, error) {
	p, ok := w.panels[kind]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown resource "+kind.String())
	}
	return p, nil
}

func (w *Workspace) Mutations() *mutation.Service { return w.mutations }

func (w *Workspace) Dashboard() *dashboard.Service { return w.dashboard }

func (w *Workspace) Cache() *querycache.Cache { return w.cache }

// Notifications drains the pending notifications. Concurrent requests of the
// same session share one queue, so a response may carry a notification
// raised by another request.
func (w *Workspace) Notifications() []notify.Notification {
	return w.recorder.Drain()
}

func (w *Workspace) close() {
	for _, p := range w.panels {
		p.Close()
	}
	w.cache.Clear()
}
