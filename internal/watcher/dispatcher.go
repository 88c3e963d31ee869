package watcher

import (
	"context"
	"iter"
	"path/filepath"

	"github.com/conneroisu/devserve/internal/logging"
)

// Invalidator drops cached content for a path and reports whether any was
// cached. Dependents lists the cached modules built from path.
type Invalidator interface {
	Invalidate(path string) bool
	Dependents(path string) []string
}

// Broadcaster notifies reload clients that path changed.
type Broadcaster interface {
	Broadcast(path string) int
}

// Dispatcher applies change batches to the content cache and the reload
// channel. Only paths that were actually served trigger a reload.
type Dispatcher struct {
	cache  Invalidator
	hub    Broadcaster
	logger logging.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cache Invalidator, hub Broadcaster, logger logging.Logger) *Dispatcher {
	return &Dispatcher{cache: cache, hub: hub, logger: logger.WithComponent("watcher")}
}

// Handle processes one batch and returns the paths that were broadcast.
//
// Every event kind counts as a modification: editors that save atomically
// produce create and rename events rather than writes. A change to a file
// that a cached module was compiled from reloads that module.
func (d *Dispatcher) Handle(ctx context.Context, events []ChangeEvent) []string {
	var reloaded []string
	for _, event := range events {
		for _, path := range candidates(event.Path) {
			targets := append([]string{path}, d.cache.Dependents(path)...)
			for _, target := range targets {
				if !d.cache.Invalidate(target) {
					continue
				}
				clients := d.hub.Broadcast(target)
				fields := []any{"path", target, "event", event.Type.String(), "clients", clients}
				if target != path {
					fields = append(fields, "via", path)
				}
				d.logger.Info(ctx, "Reloading", fields...)
				reloaded = append(reloaded, target)
			}
		}
	}
	return reloaded
}

// Run handles every batch from events until the sequence ends.
func (d *Dispatcher) Run(ctx context.Context, events iter.Seq[[]ChangeEvent]) {
	for batch := range events {
		d.Handle(ctx, batch)
	}
}

// candidates returns the cache keys a changed path may be stored under: its
// cleaned absolute form and, when it differs, its symlink-resolved form.
func candidates(path string) []string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	out := []string{abs}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
		out = append(out, resolved)
	}
	return out
}
