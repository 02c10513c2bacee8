// internal/bank/sessions_test.go
package bank

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

func newTestSessionStore(t *testing.T, ttl time.Duration) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSessionStore(client, ttl), mr
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	store, _ := newTestSessionStore(t, time.Minute)
	ctx := context.Background()
	opened := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	session := &models.BankSession{
		ApplicationID: "app-1",
		RedirectURL:   "https://bank.example/activate/abc",
		OpenedAt:      opened,
	}
	require.NoError(t, store.Save(ctx, session))

	got, err := store.Get(ctx, "app-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.RedirectURL, got.RedirectURL)
	assert.True(t, got.OpenedAt.Equal(opened))
	assert.Equal(t, 0, got.PollAttempts)
}

func TestSessionStore_GetMissing(t *testing.T) {
	store, _ := newTestSessionStore(t, time.Minute)

	got, err := store.Get(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_TouchCountsPolls(t *testing.T) {
	store, _ := newTestSessionStore(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &models.BankSession{ApplicationID: "app-1"}))

	now := time.Date(2026, 9, 1, 12, 0, 3, 0, time.UTC)
	require.NoError(t, store.Touch(ctx, "app-1", now))
	require.NoError(t, store.Touch(ctx, "app-1", now.Add(3*time.Second)))

	got, err := store.Get(ctx, "app-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.PollAttempts)
	assert.True(t, got.LastCheckedAt.Equal(now.Add(3*time.Second)))
}

func TestSessionStore_Expiry(t *testing.T) {
	store, mr := newTestSessionStore(t, 30*time.Second)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &models.BankSession{ApplicationID: "app-1"}))

	mr.FastForward(time.Minute)

	got, err := store.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Nil(t, got, "sessions are ephemeral and expire on TTL")
}

func TestSessionStore_Delete(t *testing.T) {
	store, _ := newTestSessionStore(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &models.BankSession{ApplicationID: "app-1"}))

	require.NoError(t, store.Delete(ctx, "app-1"))

	got, err := store.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
