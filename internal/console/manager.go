package console

import (
	"log/slog"
	"sync"
	"time"

	"trash4cash/internal/auth"
	"trash4cash/internal/dashboard"
	"trash4cash/internal/dialog"
	"trash4cash/internal/gateway"
	"trash4cash/internal/listing"
	"trash4cash/internal/mutation"
	"trash4cash/internal/notify"
	"trash4cash/internal/platform/metrics"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource"
	"trash4cash/internal/resource/models"
	id "trash4cash/pkg/domain"
)

// TokenProvider yields the backend token source of a session.
type TokenProvider interface {
	TokenSource(sessionID id.SessionID) gateway.TokenSource
}

// Manager owns the workspaces of logged-in sessions.
type Manager struct {
	client *gateway.Client
	tokens TokenProvider

	staleTime     time.Duration
	limit         int
	serverSearch  bool
	notifyBuffer  int
	cacheMetrics  *querycache.Metrics
	dialogMetrics *dialog.Metrics
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time

	mu         sync.Mutex
	workspaces map[id.SessionID]*Workspace
}

type Option func(*Manager)

func WithStaleTime(d time.Duration) Option {
	return func(m *Manager) { m.staleTime = d }
}

func WithDefaultLimit(n int) Option {
	return func(m *Manager) { m.limit = n }
}

// WithServerSearch sends search terms to the backend instead of filtering
// the loaded collection.
func WithServerSearch(enabled bool) Option {
	return func(m *Manager) { m.serverSearch = enabled }
}

func WithNotificationBuffer(n int) Option {
	return func(m *Manager) { m.notifyBuffer = n }
}

func WithCacheMetrics(cm *querycache.Metrics) Option {
	return func(m *Manager) { m.cacheMetrics = cm }
}

func WithDialogMetrics(dm *dialog.Metrics) Option {
	return func(m *Manager) { m.dialogMetrics = dm }
}

// WithSessionMetrics tracks open workspaces.
func WithSessionMetrics(sm *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = sm }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(client *gateway.Client, tokens TokenProvider, opts ...Option) *Manager {
	m := &Manager{
		client:     client,
		tokens:     tokens,
		limit:      listing.DefaultLimit,
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
		workspaces: make(map[id.SessionID]*Workspace),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Open returns the workspace of session, creating it on first use.
func (m *Manager) Open(session *auth.Session) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.workspaces[session.ID]; ok {
		return ws
	}
	ws := m.build(session)
	m.workspaces[session.ID] = ws
	m.metrics.WorkspaceOpened()
	m.logger.Info("workspace opened", "session_id", session.ID.String(), "user_id", session.User.ID)
	return ws
}

func (m *Manager) Get(sessionID id.SessionID) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[sessionID]
	return ws, ok
}

// Close discards the workspace and its cached data. Closing an unknown
// session is a no-op.
func (m *Manager) Close(sessionID id.SessionID) {
	m.mu.Lock()
	ws, ok := m.workspaces[sessionID]
	delete(m.workspaces, sessionID)
	m.mu.Unlock()
	if !ok {
		return
	}
	ws.close()
	m.metrics.WorkspaceClosed(m.now().Sub(ws.openedAt).Seconds())
	m.logger.Info("workspace closed", "session_id", sessionID.String())
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

func (m *Manager) build(session *auth.Session) *Workspace {
	logger := m.logger.With("session_id", session.ID.String())
	client := m.client.WithTokens(m.tokens.TokenSource(session.ID))

	cacheOpts := []querycache.Option{querycache.WithLogger(logger), querycache.WithMetrics(m.cacheMetrics)}
	if m.staleTime > 0 {
		cacheOpts = append(cacheOpts, querycache.WithStaleTime(m.staleTime))
	}
	cache := querycache.New(cacheOpts...)

	recorder := notify.NewRecorder(m.notifyBuffer)
	notifier := notify.Fanout{recorder, notify.LogNotifier{Logger: logger}}

	listOpts := []listing.Option{
		listing.WithLimit(m.limit),
		listing.WithNotifier(notifier),
		listing.WithLogger(logger),
	}
	if m.serverSearch {
		listOpts = append(listOpts, listing.WithServerSearch())
	}
	dialogOpts := []dialog.Option{dialog.WithLogger(logger), dialog.WithMetrics(m.dialogMetrics)}

	ws := &Workspace{
		id:        session.ID,
		user:      session.User,
		openedAt:  m.now(),
		cache:     cache,
		recorder:  recorder,
		panels:    make(map[models.Kind]Panel, 4),
		mutations: mutation.New(client, cache, notifier, mutation.WithLogger(logger)),
		dashboard: dashboard.New(client, cache, notifier, dashboard.WithLogger(logger), dashboard.WithClock(m.now)),
		owners:    listing.NewOwnerView(client, cache, listOpts...),
	}
	addPanel(ws, resource.Dropoffs, client, cache, notifier, listOpts, dialogOpts)
	addPanel(ws, resource.Transactions, client, cache, notifier, listOpts, dialogOpts)
	addPanel(ws, resource.WasteTypes, client, cache, notifier, listOpts, dialogOpts)
	addPanel(ws, resource.WasteBanks, client, cache, notifier, listOpts, dialogOpts)
	return ws
}

func addPanel[T resource.Record[T]](
	ws *Workspace,
	desc resource.Descriptor[T],
	client *gateway.Client,
	cache *querycache.Cache,
	notifier notify.Notifier,
	listOpts []listing.Option,
	dialogOpts []dialog.Option,
) {
	ws.panels[desc.Kind] = &panel[T]{
		list:   listing.New(desc, client, cache, listOpts...),
		dialog: dialog.New(desc, client, cache, notifier, dialogOpts...),
	}
}
