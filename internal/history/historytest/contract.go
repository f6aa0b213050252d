// Package historytest holds the behaviour every history.Store must show.
package historytest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"postpilot/internal/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs the shared checks against an empty store.
func RunStoreContract(t *testing.T, s history.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		entries, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("newest first", func(t *testing.T) {
		first := history.NewEntry("first post", "Topic A", base)
		second := history.NewEntry("second post", "Topic B", base.Add(time.Minute))
		require.NoError(t, s.Add(ctx, first))
		require.NoError(t, s.Add(ctx, second))

		entries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, second.ID, entries[0].ID)
		assert.Equal(t, "second post", entries[0].Text)
		assert.Equal(t, "Topic B...", entries[0].Title)
		assert.True(t, second.Date.Equal(entries[0].Date))
		assert.Equal(t, first.ID, entries[1].ID)
	})

	t.Run("capped at limit", func(t *testing.T) {
		require.NoError(t, s.Clear(ctx))
		var last history.Entry
		for i := 0; i < history.Limit+3; i++ {
			last = history.NewEntry(fmt.Sprintf("post %d", i), "T", base.Add(time.Duration(i)*time.Second))
			require.NoError(t, s.Add(ctx, last))
		}

		entries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, history.Limit)
		assert.Equal(t, last.ID, entries[0].ID)
		assert.Equal(t, "post 3", entries[history.Limit-1].Text)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, s.Clear(ctx))
		entries, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
