package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCollapsesBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan ChangeEvent)
	out := make(chan []ChangeEvent, 4)
	go NewDebouncer(30*time.Millisecond).Run(ctx, in, out)

	in <- ChangeEvent{Type: EventTypeCreated, Path: "/a"}
	in <- ChangeEvent{Type: EventTypeModified, Path: "/b"}
	in <- ChangeEvent{Type: EventTypeModified, Path: "/a"}

	select {
	case batch := <-out:
		require.Len(t, batch, 2)
		assert.Equal(t, "/a", batch[0].Path)
		assert.Equal(t, EventTypeModified, batch[0].Type, "latest event per path wins")
		assert.Equal(t, "/b", batch[1].Path)
	case <-time.After(time.Second):
		t.Fatal("no batch emitted")
	}
}

func TestDebouncerSeparatesQuietPeriods(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan ChangeEvent)
	out := make(chan []ChangeEvent, 4)
	go NewDebouncer(20*time.Millisecond).Run(ctx, in, out)

	in <- ChangeEvent{Path: "/first"}
	first := <-out
	in <- ChangeEvent{Path: "/second"}
	second := <-out

	assert.Equal(t, "/first", first[0].Path)
	assert.Equal(t, "/second", second[0].Path)
}

func TestDebouncerFlushesOnClose(t *testing.T) {
	in := make(chan ChangeEvent, 1)
	out := make(chan []ChangeEvent, 1)

	in <- ChangeEvent{Path: "/pending"}
	close(in)
	NewDebouncer(time.Hour).Run(context.Background(), in, out)

	batch, ok := <-out
	require.True(t, ok)
	assert.Equal(t, "/pending", batch[0].Path)
	_, ok = <-out
	assert.False(t, ok)
}
