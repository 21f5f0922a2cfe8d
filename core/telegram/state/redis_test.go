package state

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, rueidis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStore[convo](client, "warnbot:setup", Options{})
	ctx := t.Context()

	_, ok, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, 42, convo{Step: "wait_for_points", ChatID: -100}))
	assert.True(t, mr.Exists("warnbot:setup:42"))

	got, ok, err := s.Get(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, convo{Step: "wait_for_points", ChatID: -100}, got)

	require.NoError(t, s.Clear(ctx, 42))
	assert.False(t, mr.Exists("warnbot:setup:42"))
}

func TestRedisStoreTTL(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStore[convo](client, "", Options{TTL: 10 * time.Minute})
	ctx := t.Context()

	require.NoError(t, s.Set(ctx, 7, convo{Step: "a"}))
	assert.Equal(t, 10*time.Minute, mr.TTL("session:7"))

	mr.FastForward(11 * time.Minute)
	_, ok, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreCorruptValueIsAbsent(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStore[convo](client, "", Options{})
	require.NoError(t, mr.Set("session:3", "{not json"))

	_, ok, err := s.Get(t.Context(), 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
