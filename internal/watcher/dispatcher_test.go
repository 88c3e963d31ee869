package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/conneroisu/devserve/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	entries map[string]bool
	deps    map[string][]string
}

func (f *fakeCache) Dependents(path string) []string {
	return f.deps[path]
}

func (f *fakeCache) Invalidate(path string) bool {
	existed := f.entries[path]
	delete(f.entries, path)
	return existed
}

type fakeHub struct {
	mutex sync.Mutex
	paths []string
}

func (f *fakeHub) Broadcast(path string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.paths = append(f.paths, path)
	return 1
}

func TestDispatcherIgnoresUncachedPaths(t *testing.T) {
	cache := &fakeCache{entries: map[string]bool{}}
	hub := &fakeHub{}
	d := NewDispatcher(cache, hub, logging.Discard())

	reloaded := d.Handle(context.Background(), []ChangeEvent{{Type: EventTypeModified, Path: "/srv/never-served.ts"}})

	assert.Empty(t, reloaded)
	assert.Empty(t, hub.paths)
}

func TestDispatcherInvalidatesAndBroadcastsCachedPath(t *testing.T) {
	cache := &fakeCache{entries: map[string]bool{"/srv/app.ts": true, "/srv/other.ts": true}}
	hub := &fakeHub{}
	d := NewDispatcher(cache, hub, logging.Discard())

	reloaded := d.Handle(context.Background(), []ChangeEvent{{Type: EventTypeModified, Path: "/srv/app.ts"}})

	assert.Equal(t, []string{"/srv/app.ts"}, reloaded)
	assert.Equal(t, []string{"/srv/app.ts"}, hub.paths)
	assert.False(t, cache.entries["/srv/app.ts"])
	assert.True(t, cache.entries["/srv/other.ts"])
}

func TestDispatcherReloadsModuleWhenDependencyChanges(t *testing.T) {
	cache := &fakeCache{
		entries: map[string]bool{"/srv/Main.elm": true},
		deps:    map[string][]string{"/srv/Page/Home.elm": {"/srv/Main.elm"}},
	}
	hub := &fakeHub{}
	d := NewDispatcher(cache, hub, logging.Discard())

	reloaded := d.Handle(context.Background(), []ChangeEvent{{Type: EventTypeModified, Path: "/srv/Page/Home.elm"}})

	assert.Equal(t, []string{"/srv/Main.elm"}, reloaded)
	assert.Equal(t, []string{"/srv/Main.elm"}, hub.paths)
	assert.False(t, cache.entries["/srv/Main.elm"])
}

func TestDispatcherReloadsSharedModuleOncePerBatch(t *testing.T) {
	cache := &fakeCache{
		entries: map[string]bool{"/srv/Main.elm": true},
		deps: map[string][]string{
			"/srv/Page/Home.elm": {"/srv/Main.elm"},
			"/srv/Ui/Button.elm": {"/srv/Main.elm"},
		},
	}
	hub := &fakeHub{}
	d := NewDispatcher(cache, hub, logging.Discard())

	d.Handle(context.Background(), []ChangeEvent{
		{Type: EventTypeModified, Path: "/srv/Page/Home.elm"},
		{Type: EventTypeModified, Path: "/srv/Ui/Button.elm"},
	})
	assert.Equal(t, []string{"/srv/Main.elm"}, hub.paths)
}

func TestDispatcherTreatsAllKindsAsModification(t *testing.T) {
	cache := &fakeCache{entries: map[string]bool{"/srv/a.ts": true, "/srv/b.ts": true, "/srv/c.ts": true}}
	hub := &fakeHub{}
	d := NewDispatcher(cache, hub, logging.Discard())

	d.Handle(context.Background(), []ChangeEvent{
		{Type: EventTypeCreated, Path: "/srv/a.ts"},
		{Type: EventTypeRenamed, Path: "/srv/b.ts"},
		{Type: EventTypeDeleted, Path: "/srv/c.ts"},
	})
	assert.Equal(t, []string{"/srv/a.ts", "/srv/b.ts", "/srv/c.ts"}, hub.paths)
}

func TestDispatcherResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.ts")
	link := filepath.Join(dir, "link.ts")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)

	cache := &fakeCache{entries: map[string]bool{resolved: true}}
	hub := &fakeHub{}
	d := NewDispatcher(cache, hub, logging.Discard())

	linkAbs, err := filepath.Abs(link)
	require.NoError(t, err)
	d.Handle(context.Background(), []ChangeEvent{{Type: EventTypeModified, Path: linkAbs}})
	assert.Equal(t, []string{resolved}, hub.paths)
}

func TestDispatcherRun(t *testing.T) {
	cache := &fakeCache{entries: map[string]bool{"/srv/x.ts": true}}
	hub := &fakeHub{}
	d := NewDispatcher(cache, hub, logging.Discard())

	events := func(yield func([]ChangeEvent) bool) {
		if !yield([]ChangeEvent{{Path: "/srv/y.ts"}}) {
			return
		}
		yield([]ChangeEvent{{Path: "/srv/x.ts"}})
	}
	d.Run(context.Background(), events)

	assert.Equal(t, []string{"/srv/x.ts"}, hub.paths)
}
