package listing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"trash4cash/internal/gateway"
	"trash4cash/internal/notify"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource"
	"trash4cash/internal/resource/models"
	dErrors "trash4cash/pkg/domain-errors"
	"trash4cash/pkg/testutil"
)

// fakeLoader pages through an in-memory collection. Queries can be gated so
// a test decides when their response arrives.
type fakeLoader struct {
	mu      sync.Mutex
	records []gateway.RawRecord
	queries []gateway.ListQuery
	gates   map[int]chan struct{}
	entered chan gateway.ListQuery
	fail    error
}

func newFakeLoader(records []gateway.RawRecord) *fakeLoader {
	return &fakeLoader{records: records, gates: make(map[int]chan struct{})}
}

// gate blocks queries for page until the returned func is called.
func (f *fakeLoader) gate(page int) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[page] = ch
	f.entered = make(chan gateway.ListQuery, 4)
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeLoader) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeLoader) lastQuery() gateway.ListQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeLoader) List(_ context.Context, res string, q gateway.ListQuery) (*gateway.ListResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	gate := f.gates[q.Page]
	entered := f.entered
	fail := f.fail
	f.mu.Unlock()

	if gate != nil {
		entered <- q
		<-gate
	}
	if fail != nil {
		return nil, fail
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	filtered := make([]gateway.RawRecord, 0, len(f.records))
	for _, r := range f.records {
		if q.Status == "" || r["status"] == q.Status {
			filtered = append(filtered, r)
		}
	}
	start := min((q.Page-1)*q.Limit, len(filtered))
	end := min(start+q.Limit, len(filtered))
	return &gateway.ListResponse{
		Data:     filtered[start:end],
		Metadata: gateway.Metadata{Total: len(filtered), TotalPages: resource.PageCount(len(filtered), q.Limit)},
	}, nil
}

type ListingSuite struct {
	suite.Suite
	ctx      context.Context
	loader   *fakeLoader
	cache    *querycache.Cache
	recorder *notify.Recorder
	ctrl     *Controller[models.Dropoff]
}

func (s *ListingSuite) SetupTest() {
	s.ctx = context.Background()
	s.loader = newFakeLoader(testutil.Dropoffs(12, 2, 7, 11))
	s.cache = querycache.New()
	s.recorder = notify.NewRecorder(0)
	s.ctrl = New(resource.Dropoffs, s.loader, s.cache, WithNotifier(s.recorder))
}

func TestListingSuite(t *testing.T) {
	suite.Run(t, new(ListingSuite))
}

func ids(items []models.Dropoff) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func (s *ListingSuite) TestPagination() {
	s.ctrl.Load(s.ctx)
	st := s.ctrl.State()
	s.Len(st.Items, 10)
	s.Equal(12, st.TotalRows)
	s.Equal(2, st.TotalPages)
	s.Equal("d01", st.Items[0].ID, "server order preserved")
	s.False(st.IsLoading)

	s.Require().NoError(s.ctrl.SetPage(s.ctx, 2))
	st = s.ctrl.State()
	s.Equal([]string{"d11", "d12"}, ids(st.Items))
	s.Equal(2, st.CurrentPage)
}

func (s *ListingSuite) TestSetPageRejectsNonPositive() {
	s.ctrl.Load(s.ctx)
	before := s.loader.calls()

	err := s.ctrl.SetPage(s.ctx, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(before, s.loader.calls())
	s.Equal(1, s.ctrl.State().CurrentPage)
}

func (s *ListingSuite) TestPageBeyondLastIsNotClamped() {
	s.ctrl.Load(s.ctx)
	s.Require().NoError(s.ctrl.SetPage(s.ctx, 5))

	st := s.ctrl.State()
	s.Equal(5, st.CurrentPage)
	s.Empty(st.Items)
	s.Equal(12, st.TotalRows)
}

func (s *ListingSuite) TestLimitChangeResetsPage() {
	s.ctrl.Load(s.ctx)
	s.Require().NoError(s.ctrl.SetPage(s.ctx, 2))

	s.Require().NoError(s.ctrl.SetLimit(s.ctx, 5))
	st := s.ctrl.State()
	s.Equal(1, st.CurrentPage)
	s.Equal(5, st.CurrentLimit)
	s.Len(st.Items, 5)
	s.Equal(gateway.ListQuery{Page: 1, Limit: 5}, s.loader.lastQuery())
}

func (s *ListingSuite) TestStatusFilter() {
	s.loader.records[0]["status"] = models.StatusCompleted
	s.ctrl.Load(s.ctx)
	s.Require().NoError(s.ctrl.SetPage(s.ctx, 2))

	s.Require().NoError(s.ctrl.SetStatusFilter(s.ctx, models.StatusCompleted))
	st := s.ctrl.State()
	s.Equal(1, st.CurrentPage)
	s.Equal([]string{"d01"}, ids(st.Items))
	s.Equal(models.StatusCompleted, s.loader.lastQuery().Status)

	err := s.ctrl.SetStatusFilter(s.ctx, "SHIPPED")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(models.StatusCompleted, s.ctrl.State().StatusFilter)
}

func (s *ListingSuite) TestSearchOverWholeCollection() {
	s.ctrl.Load(s.ctx)

	s.Require().NoError(s.ctrl.SetSearchTerm(s.ctx, "Jakarta"))
	st := s.ctrl.State()
	s.Equal([]string{"d02", "d07", "d11"}, ids(st.Items))
	s.Equal(3, st.TotalRows)
	s.Equal(1, st.TotalPages)
	s.Equal(gateway.ListQuery{Page: 1, Limit: 12}, s.loader.lastQuery(), "corpus loaded in one query")
}

func (s *ListingSuite) TestSearchPaginationToggle() {
	s.ctrl = New(resource.Dropoffs, s.loader, s.cache, WithLimit(2))
	s.ctrl.Load(s.ctx)
	s.Require().NoError(s.ctrl.SetSearchTerm(s.ctx, "jakarta"))

	st := s.ctrl.State()
	s.Equal(3, st.TotalRows)
	s.Equal(2, st.TotalPages)
	s.Equal([]string{"d02", "d07"}, ids(st.Items))

	calls := s.loader.calls()
	s.Require().NoError(s.ctrl.SetPage(s.ctx, 2))
	st = s.ctrl.State()
	s.Equal([]string{"d11"}, ids(st.Items))
	s.Equal(2, st.CurrentPage)
	s.Equal(calls, s.loader.calls(), "client-side page change stays local")

	s.Require().NoError(s.ctrl.SetSearchTerm(s.ctx, ""))
	st = s.ctrl.State()
	s.Equal(12, st.TotalRows)
	s.Equal(6, st.TotalPages)
	s.Equal(1, st.CurrentPage)
	s.Equal([]string{"d01", "d02"}, ids(st.Items))
	s.Equal(calls, s.loader.calls(), "server page restored from cache")
}

func (s *ListingSuite) TestSearchUsesCurrentPageWhenItHoldsEverything() {
	s.loader.records = testutil.Dropoffs(4, 3)
	s.ctrl.Load(s.ctx)
	calls := s.loader.calls()

	s.Require().NoError(s.ctrl.SetSearchTerm(s.ctx, "JAKARTA"))
	s.Equal([]string{"d03"}, ids(s.ctrl.State().Items))
	s.Equal(calls, s.loader.calls())
}

func (s *ListingSuite) TestServerSearchSendsTerm() {
	s.ctrl = New(resource.Dropoffs, s.loader, s.cache, WithServerSearch())
	s.ctrl.Load(s.ctx)
	s.Require().NoError(s.ctrl.SetSearchTerm(s.ctx, "jakarta"))

	s.Equal("jakarta", s.loader.lastQuery().Search)
}

func (s *ListingSuite) TestFetchFailureKeepsLastGoodItems() {
	s.ctrl.Load(s.ctx)
	s.loader.mu.Lock()
	s.loader.fail = gateway.NewError(gateway.ErrorUpstreamOutage, "list", 503, "backend unavailable", nil)
	s.loader.mu.Unlock()

	s.ctrl.Refetch(s.ctx)
	st := s.ctrl.State()
	s.True(st.IsError)
	s.True(dErrors.HasCode(st.Err, dErrors.CodeFetchFailed))
	s.Len(st.Items, 10, "previous rows stay visible")

	notes := s.recorder.Drain()
	s.Require().Len(notes, 1)
	s.Equal("Error fetching dropoffs", notes[0].Title)
	s.Equal("backend unavailable", notes[0].Description)

	s.loader.mu.Lock()
	s.loader.fail = nil
	s.loader.mu.Unlock()
	s.ctrl.Refetch(s.ctx)
	s.False(s.ctrl.State().IsError)
}

func (s *ListingSuite) TestRefetchAfterInvalidation() {
	s.ctrl.Load(s.ctx)
	s.ctrl.Load(s.ctx)
	s.Equal(1, s.loader.calls(), "second load served from cache")

	s.cache.InvalidateResource(models.KindDropoff)
	s.cache.InvalidateResource(models.KindDropoff)
	s.ctrl.Load(s.ctx)
	s.Equal(2, s.loader.calls())
}

func (s *ListingSuite) TestSupersededResponseIsDiscarded() {
	s.ctrl.Load(s.ctx)
	release := s.loader.gate(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.ctrl.SetPage(s.ctx, 2)
	}()
	<-s.loader.entered

	s.Require().NoError(s.ctrl.SetStatusFilter(s.ctx, models.StatusPending))
	release()
	<-done

	st := s.ctrl.State()
	s.Equal(1, st.CurrentPage)
	s.Equal(models.StatusPending, st.StatusFilter)
	s.Equal("d01", st.Items[0].ID, "late page-2 response not displayed")
	s.False(st.IsLoading)
}

func TestEndToEndThroughGateway(t *testing.T) {
	upstream := testutil.NewUpstream()
	defer upstream.Close()
	upstream.Seed("dropoffs", testutil.Dropoffs(12, 1, 5, 9)...)

	client := gateway.New(upstream.URL(), gateway.WithTokenSource(gateway.StaticToken("t")))
	ctrl := New(resource.Dropoffs, client, querycache.New())
	ctx := context.Background()

	ctrl.Load(ctx)
	st := ctrl.State()
	require.Len(t, st.Items, 10)
	assert.Equal(t, 12, st.TotalRows)

	require.NoError(t, ctrl.SetPage(ctx, 2))
	assert.Len(t, ctrl.State().Items, 2)

	require.NoError(t, ctrl.SetSearchTerm(ctx, "Jakarta"))
	st = ctrl.State()
	assert.Equal(t, 3, st.TotalRows)
	for _, d := range st.Items {
		assert.Contains(t, d.Location, "Jakarta", fmt.Sprintf("row %s", d.ID))
	}
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, window(items, 1, 2))
	assert.Equal(t, []int{5}, window(items, 3, 2))
	assert.Empty(t, window(items, 4, 2))
}
