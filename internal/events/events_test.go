package events

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryPublishSubscribe(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("r1")
	other := b.Subscribe("r2")

	evt := New("r1", OptimumFound, map[string]any{"objective": 12.5})
	b.Publish("r1", evt)

	select {
	case got := <-ch:
		require.Equal(t, evt.ID, got.ID)
		require.Equal(t, OptimumFound, got.Type)
		require.Equal(t, 12.5, got.Data["objective"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	require.Empty(t, other)

	b.Unsubscribe("r1", ch)
	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
	b.Unsubscribe("r1", ch) // second call is a no-op
}

func TestMemoryDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("r")
	for range b.buf + 10 {
		b.Publish("r", New("r", CloudStarted, nil))
	}
	require.Len(t, ch, b.buf)
}

func TestRedisPublishSubscribe(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	b, err := NewRedis(url)
	require.NoError(t, err)
	defer b.Close()

	ch := b.Subscribe("redis-run")
	defer b.Unsubscribe("redis-run", ch)
	b.Publish("redis-run", New("redis-run", RunFinished, map[string]any{"p0": 3}))

	select {
	case got := <-ch:
		require.Equal(t, RunFinished, got.Type)
		require.EqualValues(t, 3, got.Data["p0"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}
