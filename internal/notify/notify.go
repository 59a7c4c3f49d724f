// Package notify carries the user-facing notifications (toasts) emitted by
// controllers and mutations.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a single toast.
type Notification struct {
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Success builds a success notification.
func Success(title, description string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Description: description, At: time.Now()}
}

// Failure builds an error notification.
func Failure(title, description string) Notification {
	return Notification{Level: LevelError, Title: title, Description: description, At: time.Now()}
}

// Nop discards notifications.
var Nop Notifier = NotifierFunc(func(context.Context, Notification) {})

// Recorder keeps notifications until they are drained. The console drains a
// workspace's recorder into each API response.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	max   int
}

// NewRecorder keeps at most max pending notifications; older ones are dropped.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = 50
	}
	return &Recorder{max: max}
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if over := len(r.items) - r.max; over > 0 {
		r.items = r.items[over:]
	}
}

// Drain returns pending notifications and forgets them.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

// All returns pending notifications without draining them.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Count returns the number of pending notifications at level, or all of them
// when level is empty.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if level == "" {
		return len(r.items)
	}
	n := 0
	for _, it := range r.items {
		if it.Level == level {
			n++
		}
	}
	return n
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	if l.Logger == nil {
		return
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.Logger.Log(ctx, level, "notification",
		"kind", string(n.Level),
		"title", n.Title,
		"description", n.Description,
	)
}

// Fanout delivers each notification to every notifier.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) {
	for _, nt := range f {
		if nt != nil {
			nt.Notify(ctx, n)
		}
	}
}
