package history_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"postpilot/internal/history"
	"postpilot/internal/history/historytest"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T, opts ...history.Option) (*history.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := history.NewRedisStoreFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newRedis(t)
	historytest.RunStoreContract(t, store)
}

func TestRedisStore_KeyAndTTL(t *testing.T) {
	store, mr := newRedis(t, history.WithKey("pp:test"), history.WithTTL(time.Hour))
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Add(ctx, history.NewEntry("text", "label", time.Now())))

	assert.True(t, mr.Exists("pp:test"))
	assert.False(t, mr.Exists(history.DefaultKey))
	assert.Equal(t, time.Hour, mr.TTL("pp:test"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "AI Productivity...", history.Title("AI Productivity"))
	assert.Equal(t, strings.Repeat("a", 30)+"...", history.Title(strings.Repeat("a", 45)))
	assert.Equal(t, strings.Repeat("ß", 30)+"...", history.Title(strings.Repeat("ß", 31)))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "topic", history.Label("topic", "prompt"))
	assert.Equal(t, "prompt", history.Label("", "prompt"))
	assert.Equal(t, "Generated Post", history.Label("", ""))
}

func TestNewEntry(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	a := history.NewEntry("body", "Future of Work", now)
	b := history.NewEntry("body", "Future of Work", now)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "Future of Work...", a.Title)
	assert.Equal(t, now, a.Date)
}
