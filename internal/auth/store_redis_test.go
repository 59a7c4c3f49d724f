//go:build integration

package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trash4cash/pkg/domain"
)

// Requires a running Redis at REDIS_URL, e.g. redis://localhost:6379/15.
func TestRedisTokenStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewRedisTokenStore(client)
	session := &Session{
		ID:        id.NewSessionID(),
		Token:     "backend-token",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
	}

	require.NoError(t, store.Save(ctx, session))
	ttl, err := client.TTL(ctx, sessionKey(session.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	got, err := store.Find(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Token, got.Token)

	require.NoError(t, store.Delete(ctx, session.ID))
	_, err = store.Find(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	expired := &Session{ID: id.NewSessionID(), ExpiresAt: time.Now().Add(-time.Second)}
	assert.Error(t, store.Save(ctx, expired))
}
