package console

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"trash4cash/internal/auth"
	"trash4cash/internal/gateway"
	"trash4cash/internal/listing"
	"trash4cash/internal/platform/metrics"
	"trash4cash/internal/resource/models"
	id "trash4cash/pkg/domain"
	dErrors "trash4cash/pkg/domain-errors"
	"trash4cash/pkg/testutil"
)

type staticTokens string

func (t staticTokens) TokenSource(id.SessionID) gateway.TokenSource {
	return gateway.StaticToken(t)
}

type ManagerSuite struct {
	suite.Suite
	upstream *testutil.Upstream
	metrics  *metrics.Metrics
	now      time.Time
	manager  *Manager
}

func (s *ManagerSuite) SetupTest() {
	s.upstream = testutil.NewUpstream()
	s.upstream.Seed("dropoffs", testutil.Dropoffs(3)...)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = testutil.FixedTime
	s.manager = NewManager(
		gateway.New(s.upstream.URL()),
		staticTokens(s.upstream.Token()),
		WithSessionMetrics(s.metrics),
		WithDefaultLimit(2),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ManagerSuite) TearDownTest() {
	s.upstream.Close()
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) session() *auth.Session {
	return &auth.Session{
		ID:        id.NewSessionID(),
		User:      models.User{ID: "u1", Name: "Admin"},
		CreatedAt: s.now,
		ExpiresAt: s.now.Add(time.Hour),
	}
}

func (s *ManagerSuite) TestOpenIsIdempotent() {
	session := s.session()
	first := s.manager.Open(session)
	second := s.manager.Open(session)

	s.Same(first, second)
	s.Equal(1, s.manager.Len())
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.ActiveWorkspaces))
	s.Equal("Admin", first.User().Name)
}

func (s *ManagerSuite) TestWorkspaceHasEveryPanel() {
	ws := s.manager.Open(s.session())
	for _, kind := range []models.Kind{models.KindDropoff, models.KindTransaction, models.KindWasteType, models.KindWasteBank} {
		p, err := ws.Panel(kind)
		s.Require().NoError(err, kind)
		s.Equal(kind, p.Kind())
	}

	_, err := ws.Panel(models.KindUser)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ManagerSuite) TestWorkspacesDoNotShareCaches() {
	a := s.manager.Open(s.session())
	b := s.manager.Open(s.session())

	pa, err := a.Panel(models.KindDropoff)
	s.Require().NoError(err)
	state := pa.View(context.Background()).(listing.State[models.Dropoff])
	s.Len(state.Items, 2)
	s.Equal(3, state.TotalRows)

	s.Positive(a.Cache().Len())
	s.Zero(b.Cache().Len())
}

func (s *ManagerSuite) TestCloseClearsWorkspace() {
	session := s.session()
	ws := s.manager.Open(session)
	p, err := ws.Panel(models.KindDropoff)
	s.Require().NoError(err)
	p.View(context.Background())
	s.Require().Positive(ws.Cache().Len())

	s.now = s.now.Add(10 * time.Minute)
	s.manager.Close(session.ID)

	_, ok := s.manager.Get(session.ID)
	s.False(ok)
	s.Zero(ws.Cache().Len())
	s.Zero(promtestutil.ToFloat64(s.metrics.ActiveWorkspaces))

	s.NotPanics(func() { s.manager.Close(session.ID) })
}
