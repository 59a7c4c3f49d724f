package dialog

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trash4cash/internal/dialog/mocks"
	"trash4cash/internal/gateway"
	"trash4cash/internal/notify"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource"
	"trash4cash/internal/resource/models"
	"trash4cash/internal/resource/normalize"
	dErrors "trash4cash/pkg/domain-errors"
)

type DialogSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	gw       *mocks.MockGateway
	cache    *querycache.Cache
	recorder *notify.Recorder
	metrics  *Metrics
	dialog   *Controller[models.Dropoff]
	listKey  querycache.Key
}

func (s *DialogSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.gw = mocks.NewMockGateway(s.ctrl)
	s.cache = querycache.New()
	s.recorder = notify.NewRecorder(0)
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.dialog = New(resource.Dropoffs, s.gw, s.cache, s.recorder, WithMetrics(s.metrics))

	s.listKey = querycache.ListKey(models.KindDropoff, 1, 10, "", "")
	s.cache.Set(s.listKey, resource.Page[models.Dropoff]{
		Items: []models.Dropoff{
			{ID: "d1", Status: models.StatusPending},
			{ID: "d2", Status: models.StatusProcessing},
		},
		Total:      2,
		TotalPages: 1,
	})
}

func (s *DialogSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestDialogSuite(t *testing.T) {
	suite.Run(t, new(DialogSuite))
}

func (s *DialogSuite) rowStatus(key querycache.Key, id string) string {
	page, ok := querycache.PeekAs[resource.Page[models.Dropoff]](s.cache, key)
	s.Require().True(ok)
	for _, it := range page.Items {
		if it.ID == id {
			return it.Status
		}
	}
	s.FailNow("row not found", id)
	return ""
}

func (s *DialogSuite) TestOpen() {
	s.Run("row from a cached list page opens without a backend call", func() {
		s.Require().NoError(s.dialog.Open(s.ctx, "d2"))
		st := s.dialog.State()
		s.Equal(PhaseReady, st.Phase)
		s.Require().NotNil(st.Selected)
		s.Equal(models.StatusProcessing, st.Selected.Status)
	})

	s.Run("unknown record is fetched and normalized", func() {
		s.gw.EXPECT().Get(gomock.Any(), "dropoffs", "d9").
			Return(gateway.RawRecord{"id": "d9", "status": "COMPLETED", "totalWeight": 4.0}, nil)

		s.Require().NoError(s.dialog.Open(s.ctx, "d9"))
		rec, ok := s.dialog.Selected()
		s.Require().True(ok)
		s.Equal(4.0, rec.Weight)
		s.Equal(normalize.MixedWaste, rec.WasteType)

		// detail now cached
		s.dialog.Close()
		s.Require().NoError(s.dialog.Open(s.ctx, "d9"))
	})

	s.Run("fetch failure closes the dialog and notifies", func() {
		s.gw.EXPECT().Get(gomock.Any(), "dropoffs", "missing").
			Return(nil, gateway.NewError(gateway.ErrorNotFound, "get", 404, "dropoff not found", nil))

		err := s.dialog.Open(s.ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeFetchFailed))
		s.Equal(PhaseClosed, s.dialog.State().Phase)

		notes := s.recorder.Drain()
		s.Require().Len(notes, 1)
		s.Equal(notify.LevelError, notes[0].Level)
		s.Equal("dropoff not found", notes[0].Description)
	})
}

func (s *DialogSuite) TestOptimisticUpdateSuccess() {
	s.Require().NoError(s.dialog.Open(s.ctx, "d1"))
	s.gw.EXPECT().UpdateStatus(gomock.Any(), "dropoffs", "d1", models.StatusCompleted).
		DoAndReturn(func(context.Context, string, string, string) (gateway.RawRecord, error) {
			s.Equal(models.StatusCompleted, s.rowStatus(s.listKey, "d1"), "row patched before the backend answers")
			s.Equal(PhaseMutating, s.dialog.State().Phase)
			return gateway.RawRecord{"id": "d1", "status": models.StatusCompleted}, nil
		})

	s.Require().NoError(s.dialog.UpdateStatus(s.ctx, models.StatusCompleted))

	s.Equal(PhaseClosed, s.dialog.State().Phase)
	_, fresh := s.cache.Get(s.listKey)
	s.False(fresh, "list pages invalidated after success")
	s.Equal(1, s.recorder.Count(notify.LevelSuccess))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.MutationsTotal.WithLabelValues("dropoffs", "update_status", "success")))
}

func (s *DialogSuite) TestOptimisticRollback() {
	otherPage := querycache.ListKey(models.KindDropoff, 1, 10, models.StatusPending, "")
	s.cache.Set(otherPage, resource.Page[models.Dropoff]{Items: []models.Dropoff{{ID: "d1", Status: models.StatusPending}}})
	detail := querycache.DetailKey(models.KindDropoff, "d1")
	s.cache.Set(detail, models.Dropoff{ID: "d1", Status: models.StatusPending})

	s.Require().NoError(s.dialog.Open(s.ctx, "d1"))
	s.gw.EXPECT().UpdateStatus(gomock.Any(), "dropoffs", "d1", models.StatusRejected).
		Return(nil, gateway.NewError(gateway.ErrorBadRequest, "update_status", 400, "status transition not allowed", nil))

	err := s.dialog.UpdateStatus(s.ctx, models.StatusRejected)
	s.True(dErrors.HasCode(err, dErrors.CodeMutationFailed))

	st := s.dialog.State()
	s.Equal(PhaseReady, st.Phase)
	s.Equal(models.StatusPending, st.Selected.Status)
	s.Equal(models.StatusPending, s.rowStatus(s.listKey, "d1"))
	s.Equal(models.StatusPending, s.rowStatus(otherPage, "d1"))
	detailRec, _ := querycache.PeekAs[models.Dropoff](s.cache, detail)
	s.Equal(models.StatusPending, detailRec.Status)
	s.Equal(models.StatusProcessing, s.rowStatus(s.listKey, "d2"), "other rows untouched")

	notes := s.recorder.Drain()
	s.Require().Len(notes, 1, "exactly one error notification")
	s.Equal("status transition not allowed", notes[0].Description)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RollbacksTotal.WithLabelValues("dropoffs")))
}

func (s *DialogSuite) TestSameStatusIsNoop() {
	s.Require().NoError(s.dialog.Open(s.ctx, "d1"))

	s.Require().NoError(s.dialog.UpdateStatus(s.ctx, models.StatusPending))

	s.Equal(PhaseReady, s.dialog.State().Phase)
	_, fresh := s.cache.Get(s.listKey)
	s.True(fresh)
	s.Empty(s.recorder.All())
}

func (s *DialogSuite) TestInvalidStatusRejectedBeforeNetwork() {
	s.Require().NoError(s.dialog.Open(s.ctx, "d1"))

	err := s.dialog.UpdateStatus(s.ctx, "SHIPPED")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(PhaseReady, s.dialog.State().Phase)
	s.Equal(1, s.recorder.Count(notify.LevelError))
}

func (s *DialogSuite) TestUpdateRequiresReady() {
	err := s.dialog.UpdateStatus(s.ctx, models.StatusCompleted)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *DialogSuite) TestCancelUsesCancelEndpoint() {
	s.Require().NoError(s.dialog.Open(s.ctx, "d1"))
	s.gw.EXPECT().CancelDropoff(gomock.Any(), "d1").Return(gateway.RawRecord{"id": "d1", "status": "CANCELLED"}, nil)

	s.Require().NoError(s.dialog.UpdateStatus(s.ctx, models.StatusCancelled))
}

func (s *DialogSuite) TestDelete() {
	s.Run("failure keeps the dialog open", func() {
		s.Require().NoError(s.dialog.Open(s.ctx, "d2"))
		s.gw.EXPECT().Delete(gomock.Any(), "dropoffs", "d2").
			Return(gateway.NewError(gateway.ErrorUpstreamOutage, "delete", 503, "backend unavailable", nil))

		err := s.dialog.Delete(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeMutationFailed))
		s.Equal(PhaseReady, s.dialog.State().Phase)
	})

	s.Run("success closes and invalidates", func() {
		s.gw.EXPECT().Delete(gomock.Any(), "dropoffs", "d2").Return(nil)

		s.Require().NoError(s.dialog.Delete(s.ctx))
		s.Equal(PhaseClosed, s.dialog.State().Phase)
		_, fresh := s.cache.Get(s.listKey)
		s.False(fresh)
	})
}

func (s *DialogSuite) TestOpenAfterInvalidationRefetches() {
	detail := querycache.DetailKey(models.KindDropoff, "d1")
	s.cache.Set(detail, models.Dropoff{ID: "d1", Status: models.StatusPending, Notes: "old"})
	s.cache.InvalidateResource(models.KindDropoff)

	s.gw.EXPECT().Get(gomock.Any(), "dropoffs", "d1").
		Return(gateway.RawRecord{"id": "d1", "status": models.StatusCompleted, "notes": "new"}, nil)

	s.Require().NoError(s.dialog.Open(s.ctx, "d1"))
	rec, ok := s.dialog.Selected()
	s.Require().True(ok)
	s.Equal(models.StatusCompleted, rec.Status)
	s.Equal("new", rec.Notes)
}

func (s *DialogSuite) TestOpenAfterStatusChangeShowsServerState() {
	s.Require().NoError(s.dialog.Open(s.ctx, "d1"))
	s.gw.EXPECT().UpdateStatus(gomock.Any(), "dropoffs", "d1", models.StatusProcessing).
		Return(gateway.RawRecord{"id": "d1", "status": models.StatusProcessing}, nil)
	s.Require().NoError(s.dialog.UpdateStatus(s.ctx, models.StatusProcessing))

	s.gw.EXPECT().Get(gomock.Any(), "dropoffs", "d1").
		Return(gateway.RawRecord{"id": "d1", "status": models.StatusProcessing, "notes": "picked up"}, nil)

	s.Require().NoError(s.dialog.Open(s.ctx, "d1"))
	rec, _ := s.dialog.Selected()
	s.Equal("picked up", rec.Notes)
}

func (s *DialogSuite) TestDeletedRecordDoesNotReopenFromListRow() {
	s.Require().NoError(s.dialog.Open(s.ctx, "d1"))
	s.gw.EXPECT().Delete(gomock.Any(), "dropoffs", "d1").Return(nil)
	s.Require().NoError(s.dialog.Delete(s.ctx))

	s.gw.EXPECT().Get(gomock.Any(), "dropoffs", "d1").
		Return(nil, gateway.NewError(gateway.ErrorNotFound, "get", 404, "dropoff not found", nil))

	err := s.dialog.Open(s.ctx, "d1")
	s.True(dErrors.HasCode(err, dErrors.CodeFetchFailed))
	s.Equal(PhaseClosed, s.dialog.State().Phase)
}

func TestWasteBankHasNoStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := querycache.New()
	cache.Set(querycache.DetailKey(models.KindWasteBank, "b1"), models.WasteBank{ID: "b1", Name: "Melati"})
	d := New(resource.WasteBanks, mocks.NewMockGateway(ctrl), cache, nil)

	if err := d.Open(context.Background(), "b1"); err != nil {
		t.Fatal(err)
	}
	err := d.UpdateStatus(context.Background(), "ACTIVE")
	if !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWasteTypeToggleIsOptimistic(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	cache := querycache.New()
	key := querycache.ListKey(models.KindWasteType, 1, 10, "", "")
	cache.Set(key, resource.Page[models.WasteType]{Items: []models.WasteType{{ID: "w1", Name: "Plastic", IsActive: true}}})
	d := New(resource.WasteTypes, gw, cache, nil)

	gw.EXPECT().Update(gomock.Any(), "waste-types", "w1", gateway.Form{"isActive": "false"}).
		Return(gateway.RawRecord{"id": "w1", "isActive": false}, nil)

	if err := d.Open(context.Background(), "w1"); err != nil {
		t.Fatal(err)
	}
	if err := d.UpdateStatus(context.Background(), models.StatusInactive); err != nil {
		t.Fatal(err)
	}
	if d.State().Phase != PhaseClosed {
		t.Fatalf("dialog should close after success, got %s", d.State().Phase)
	}
}
