package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trash4cash/internal/gateway"
	"trash4cash/internal/resource/models"
)

type recordedCall struct {
	method, resource, id string
	payload              any
}

type fakeStatusWriter struct {
	calls []recordedCall
}

func (f *fakeStatusWriter) UpdateStatus(_ context.Context, resource, id, status string) (gateway.RawRecord, error) {
	f.calls = append(f.calls, recordedCall{"status", resource, id, status})
	return gateway.RawRecord{"id": id}, nil
}

func (f *fakeStatusWriter) Update(_ context.Context, resource, id string, payload any) (gateway.RawRecord, error) {
	f.calls = append(f.calls, recordedCall{"update", resource, id, payload})
	return gateway.RawRecord{"id": id}, nil
}

func (f *fakeStatusWriter) CancelDropoff(_ context.Context, id string) (gateway.RawRecord, error) {
	f.calls = append(f.calls, recordedCall{"cancel", "dropoffs", id, nil})
	return gateway.RawRecord{"id": id}, nil
}

func TestDropoffMatches(t *testing.T) {
	d := models.Dropoff{
		ID:        "d1",
		Owner:     models.Owner{Name: "Budi Santoso", Email: "budi@example.com"},
		Location:  "Jl. Thamrin, Jakarta Pusat",
		Status:    models.StatusPending,
		Weight:    2.5,
		CreatedAt: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC),
	}

	cases := map[string]bool{
		"":         true,
		"jakarta":  true,
		"BUDI":     true,
		"2.5":      true,
		"januari":  true,
		"pending":  true,
		"surabaya": false,
	}
	for term, want := range cases {
		assert.Equal(t, want, Dropoffs.Matches(d, term), "term %q", term)
	}
}

func TestWasteBankSearchIgnoresStatus(t *testing.T) {
	b := models.WasteBank{ID: "b1", Name: "Bank Sampah Melati", Address: "Depok"}
	assert.True(t, WasteBanks.Matches(b, "melati"))
	assert.False(t, WasteBanks.HasStatus())
}

func TestNormalizeAllSkipsRecordsWithoutID(t *testing.T) {
	items, skipped := Transactions.NormalizeAll([]gateway.RawRecord{
		{"id": "t1"}, {"amount": 5.0}, {"id": "t2"},
	})
	require.Len(t, items, 2)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "t1", items[0].ID)
	assert.Equal(t, "t2", items[1].ID)
}

func TestPageFrom(t *testing.T) {
	t.Run("uses metadata", func(t *testing.T) {
		page, _ := Dropoffs.PageFrom(&gateway.ListResponse{
			Data:     []gateway.RawRecord{{"id": "d1"}},
			Metadata: gateway.Metadata{Total: 12},
		}, 10)
		assert.Equal(t, 12, page.Total)
		assert.Equal(t, 2, page.TotalPages)
	})

	t.Run("falls back to item count", func(t *testing.T) {
		page, _ := WasteTypes.PageFrom(&gateway.ListResponse{
			Data: []gateway.RawRecord{{"id": "w1"}, {"id": "w2"}},
		}, 10)
		assert.Equal(t, 2, page.Total)
		assert.Equal(t, 1, page.TotalPages)
	})
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 1, PageCount(0, 10))
	assert.Equal(t, 1, PageCount(10, 10))
	assert.Equal(t, 2, PageCount(12, 10))
	assert.Equal(t, 1, PageCount(5, 0))
}

func TestWriteStatusRouting(t *testing.T) {
	ctx := context.Background()

	t.Run("dropoff status goes to status endpoint", func(t *testing.T) {
		w := &fakeStatusWriter{}
		require.NoError(t, Dropoffs.WriteStatus(ctx, w, "d1", models.StatusCompleted))
		assert.Equal(t, []recordedCall{{"status", "dropoffs", "d1", models.StatusCompleted}}, w.calls)
	})

	t.Run("dropoff cancellation uses cancel endpoint", func(t *testing.T) {
		w := &fakeStatusWriter{}
		require.NoError(t, Dropoffs.WriteStatus(ctx, w, "d1", models.StatusCancelled))
		assert.Equal(t, "cancel", w.calls[0].method)
	})

	t.Run("waste type availability is a form update", func(t *testing.T) {
		w := &fakeStatusWriter{}
		require.NoError(t, WasteTypes.WriteStatus(ctx, w, "w1", models.StatusInactive))
		assert.Equal(t, recordedCall{"update", "waste-types", "w1", gateway.Form{"isActive": "false"}}, w.calls[0])
	})
}
