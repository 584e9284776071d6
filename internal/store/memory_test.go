package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemorySaveAssignsID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	r, err := m.SaveRun(ctx, Run{Instance: "five", Status: StatusRunning, StartedAt: time.Now()})
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)

	r.Status = StatusSolved
	_, err = m.SaveRun(ctx, r)
	require.NoError(t, err)
	got, err := m.GetRun(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSolved, got.Status)

	_, err = m.GetRun(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListRunsPages(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		_, err := m.SaveRun(ctx, Run{ID: id})
		require.NoError(t, err)
	}

	page, next, err := m.ListRuns(ctx, "", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(page))
	require.Equal(t, "b", next)

	page, next, err = m.ListRuns(ctx, next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, ids(page))
	require.Empty(t, next)
}

func ids(runs []Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
