package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderDrain(t *testing.T) {
	r := NewRecorder(2)
	ctx := context.Background()
	r.Notify(ctx, Failure("Error fetching dropoffs", "boom"))
	r.Notify(ctx, Success("Status updated", ""))
	r.Notify(ctx, Success("Dropoff deleted", ""))

	assert.Equal(t, 2, r.Count(""))
	assert.Equal(t, 0, r.Count(LevelError), "oldest notification dropped")

	got := r.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "Status updated", got[0].Title)
	assert.Empty(t, r.Drain())
}

func TestFanoutAndLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	rec := NewRecorder(0)

	Fanout{rec, LogNotifier{Logger: logger}, nil}.Notify(context.Background(), Failure("Failed to update status", "invalid status"))

	assert.Equal(t, 1, rec.Count(LevelError))
	assert.Contains(t, buf.String(), `"title":"Failed to update status"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}
