package dashboard

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"trash4cash/internal/gateway"
	"trash4cash/internal/notify"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource/models"
	"trash4cash/pkg/testutil"
)

type DashboardSuite struct {
	suite.Suite
	ctx      context.Context
	upstream *testutil.Upstream
	cache    *querycache.Cache
	recorder *notify.Recorder
	now      time.Time
	service  *Service
}

func (s *DashboardSuite) SetupTest() {
	s.ctx = context.Background()
	s.upstream = testutil.NewUpstream()
	s.cache = querycache.New()
	s.recorder = notify.NewRecorder(0)
	s.now = testutil.FixedTime.Add(48 * time.Hour)

	client := gateway.New(s.upstream.URL(), gateway.WithTokenSource(gateway.StaticToken("t")))
	s.service = New(client, s.cache, s.recorder, WithClock(func() time.Time { return s.now }))

	s.upstream.Seed("users",
		gateway.RawRecord{"id": "u1", "name": "Sari", "lastActive": s.now.Add(-24 * time.Hour).Format(time.RFC3339)},
		gateway.RawRecord{"id": "u2", "name": "Budi", "lastActive": s.now.Add(-60 * 24 * time.Hour).Format(time.RFC3339)},
		gateway.RawRecord{"id": "u3", "name": "Ani"},
	)
	s.upstream.Seed("dropoffs",
		testutil.NewDropoff("d1").WithWeight(12.5).Build(),
		testutil.NewDropoff("d2").WithCreatedAt(s.now.Add(-90*24*time.Hour)).Build(),
	)
	s.upstream.Seed("transactions",
		testutil.NewTransaction("t1", "COMPLETED", 15000),
		testutil.NewTransaction("t2", "PENDING", 2500),
	)
	s.upstream.Seed("waste-types",
		gateway.RawRecord{"id": "w1", "name": "Plastik", "collectedAmount": 30.0},
		gateway.RawRecord{"id": "w2", "name": "Kertas", "collectedAmount": 10.0},
	)
}

func (s *DashboardSuite) TearDownTest() {
	s.upstream.Close()
}

func TestDashboardSuite(t *testing.T) {
	suite.Run(t, new(DashboardSuite))
}

func (s *DashboardSuite) TestStats() {
	stats := s.service.Stats(s.ctx)

	s.False(stats.IsError)
	s.Empty(stats.Failed)
	s.Equal(&UserStats{Count: 3, ActiveUsers: 1}, stats.Users)
	s.Equal(&DropoffStats{Count: 2, RecentDropoffs: 1}, stats.Dropoffs)
	s.Equal(&TransactionStats{Count: 2, TotalAmount: 17500, Formatted: "Rp 17.500"}, stats.Transactions)
	s.Equal(&WasteStats{Count: 2, TotalWeight: 40, TopWasteType: "Plastik", TopWastePercentage: 75}, stats.Waste)

	s.Require().Len(stats.RecentTransactions, 2)
	tx := stats.RecentTransactions[0]
	s.Equal("t1", tx.ID)
	s.Equal("Rp 15.000", tx.Amount)
	s.Equal("2 hari yang lalu", tx.Date)
	s.Equal("Test User", tx.User.Name)
	s.Equal("https://i.pravatar.cc/150?u=user-1", tx.User.Image)

	s.Require().Len(stats.RecentDropoffs, 2)
	s.Equal("12.5 kg", stats.RecentDropoffs[0].Weight)
	s.Zero(s.recorder.Count(notify.LevelError))
}

func (s *DashboardSuite) TestSectionsAreCached() {
	s.service.Stats(s.ctx)
	calls := s.upstream.TotalCalls()

	s.service.Stats(s.ctx)
	s.Equal(calls, s.upstream.TotalCalls())

	s.cache.InvalidateResource(models.KindTransaction)
	s.service.Stats(s.ctx)
	s.Equal(calls+2, s.upstream.TotalCalls(), "collection and recent transactions refetched")
}

func (s *DashboardSuite) TestFailedSectionDoesNotHideOthers() {
	s.upstream.FailNext(http.MethodGet, "/users", http.StatusInternalServerError)

	stats := s.service.Stats(s.ctx)
	s.True(stats.IsError)
	s.Equal([]string{SectionUsers}, stats.Failed)
	s.Nil(stats.Users)
	s.NotNil(stats.Dropoffs)
	s.NotNil(stats.Waste)

	notes := s.recorder.Drain()
	s.Require().Len(notes, 1)
	s.Equal("Failed to fetch user statistics", notes[0].Title)
	s.Equal("injected failure 500", notes[0].Description)
}

func TestWasteStatsWithoutCollection(t *testing.T) {
	stats := wasteStats([]models.WasteType{{Name: "Kaca"}})
	assert.Equal(t, NoWasteType, stats.TopWasteType)
	assert.Zero(t, stats.TopWastePercentage)
	assert.Equal(t, 1, stats.Count)
}

func TestPersonFallsBackToAvatar(t *testing.T) {
	p := person(models.Owner{ID: "u9", Name: "Dewi"})
	require.Equal(t, "https://i.pravatar.cc/150?u=u9", p.Image)

	p = person(models.Owner{ID: "u9", ProfileImage: "https://cdn/u9.png"})
	assert.Equal(t, "https://cdn/u9.png", p.Image)
}
