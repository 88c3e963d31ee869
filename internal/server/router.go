package server

import (
	"context"
	"fmt"
	"time"

	"github.com/conneroisu/devserve/internal/cache"
	"github.com/conneroisu/devserve/internal/logging"
	"github.com/conneroisu/devserve/internal/transform"
)

// Observer receives per-request and per-transform measurements.
type Observer interface {
	ObserveRequest(result string)
	ObserveTransform(kind string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string)                  {}
func (nopObserver) ObserveTransform(string, time.Duration) {}

// RouterConfig configures a Router.
type RouterConfig struct {
	Index      string
	NotFound   string
	ReloadPath string
	// Inject, when set, is applied to the built-in not-found page so it
	// reloads like any other document.
	Inject func([]byte) []byte
}

// Router turns request paths into Results. It owns no transport concerns.
type Router struct {
	config   RouterConfig
	resolver *Resolver
	cache    *cache.ContentCache
	adapters map[transform.Kind]transform.Adapter
	observer Observer
	logger   logging.Logger
}

// NewRouter creates a router. Kinds missing from adapters are served raw.
func NewRouter(config RouterConfig, resolver *Resolver, contentCache *cache.ContentCache,
	adapters map[transform.Kind]transform.Adapter, observer Observer, logger logging.Logger) *Router {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Router{
		config:   config,
		resolver: resolver,
		cache:    contentCache,
		adapters: adapters,
		observer: observer,
		logger:   logger.WithComponent("router"),
	}
}

// Route resolves urlPath and produces its result. The first matching rule
// wins: reload endpoint, root document, then any path under the root.
func (r *Router) Route(ctx context.Context, urlPath string) Result {
	result := r.route(ctx, urlPath)
	r.observer.ObserveRequest(result.Kind.String())
	return result
}

func (r *Router) route(ctx context.Context, urlPath string) Result {
	if urlPath == r.config.ReloadPath {
		return Result{Kind: ResultSubscribe}
	}

	if urlPath == "/" || urlPath == "" {
		// Requesting the root document refreshes the whole tree.
		r.cache.Clear()
		return r.serve(ctx, "/"+r.config.Index)
	}

	return r.serve(ctx, urlPath)
}

func (r *Router) serve(ctx context.Context, urlPath string) Result {
	res, err := r.resolver.Resolve(urlPath)
	if err != nil {
		r.logger.Debug(ctx, "Resolution failed", "path", urlPath, "error", err.Error())
		return r.notFound(ctx, urlPath)
	}

	entry, err := r.produce(ctx, res)
	if err != nil {
		r.logger.Warn(ctx, err, "Cannot read source", "path", res.Path)
		return r.notFound(ctx, urlPath)
	}

	return Result{
		Kind:        ResultContent,
		Body:        entry.Content,
		ContentType: res.Kind.ContentType(),
		Path:        res.Path,
		ETag:        entry.ETag(),
	}
}

func (r *Router) produce(ctx context.Context, res Resolution) (cache.Entry, error) {
	adapter, ok := r.adapters[res.Kind]
	if !ok {
		adapter = transform.RawReader
	}
	kind := res.Kind.String()

	return r.cache.GetOrCompute(ctx, res.Path, func(ctx context.Context, path string) ([]byte, error) {
		op := logging.StartOperation(r.logger, kind+" transform")
		content, err := adapter.Transform(ctx, path)
		elapsed := op.End(ctx, "path", path, "bytes", len(content))
		r.observer.ObserveTransform(kind, elapsed)
		if err != nil {
			return nil, fmt.Errorf("%s transform of %s: %w", kind, path, err)
		}
		return content, nil
	})
}

// notFound serves the nearest not-found document walking up from the
// request's directory, falling back to a built-in page.
func (r *Router) notFound(ctx context.Context, urlPath string) Result {
	for _, candidate := range NotFoundCandidates(urlPath, r.config.NotFound) {
		res, err := r.resolver.Resolve(candidate)
		if err != nil {
			continue
		}
		entry, err := r.produce(ctx, res)
		if err != nil {
			continue
		}
		return Result{
			Kind:        ResultNotFound,
			Body:        entry.Content,
			ContentType: res.Kind.ContentType(),
			Path:        res.Path,
		}
	}

	body, err := renderComponent(ctx, builtinNotFound(urlPath))
	if err != nil {
		r.logger.Error(ctx, err, "Rendering built-in not-found page failed")
		body = []byte("404 Not Found\n")
	} else if r.config.Inject != nil {
		body = r.config.Inject(body)
	}
	return Result{
		Kind:        ResultNotFound,
		Body:        body,
		ContentType: "text/html; charset=utf-8",
	}
}
