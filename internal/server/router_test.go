package server

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conneroisu/devserve/internal/cache"
	"github.com/conneroisu/devserve/internal/logging"
	"github.com/conneroisu/devserve/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	requests   map[string]int
	transforms map[string]int
}

func (o *recordingObserver) ObserveRequest(result string) { o.requests[result]++ }
func (o *recordingObserver) ObserveTransform(kind string, _ time.Duration) {
	o.transforms[kind]++
}

func newTestRouter(t *testing.T, adapters map[transform.Kind]transform.Adapter) (*Router, string, *recordingObserver) {
	t.Helper()
	resolver, root := newTestResolver(t)
	observer := &recordingObserver{requests: map[string]int{}, transforms: map[string]int{}}
	router := NewRouter(RouterConfig{
		Index:      "index.html",
		NotFound:   "404.html",
		ReloadPath: "/reload",
	}, resolver, cache.New(), adapters, observer, logging.Discard())
	return router, root, observer
}

func TestRoute_Subscribe(t *testing.T) {
	router, _, observer := newTestRouter(t, nil)

	result := router.Route(context.Background(), "/reload")
	assert.Equal(t, ResultSubscribe, result.Kind)
	assert.Equal(t, 1, observer.requests["subscribe"])
}

func TestRoute_UsesAdapterByKind(t *testing.T) {
	var calls atomic.Int32
	compiled := transform.AdapterFunc(func(ctx context.Context, path string) ([]byte, error) {
		calls.Add(1)
		return []byte("compiled"), nil
	})
	router, root, observer := newTestRouter(t, map[transform.Kind]transform.Adapter{
		transform.KindFunctional: compiled,
	})
	writeFile(t, root, "Main.elm", "module Main exposing (main)")

	for range 3 {
		result := router.Route(context.Background(), "/Main.elm")
		require.Equal(t, ResultContent, result.Kind)
		assert.Equal(t, "compiled", string(result.Body))
		assert.Equal(t, transform.JavaScriptContentType, result.ContentType)
		assert.NotEmpty(t, result.ETag)
	}
	assert.Equal(t, int32(1), calls.Load(), "later requests should be served from cache")
	assert.Equal(t, 1, observer.transforms["functional"])
	assert.Equal(t, 3, observer.requests["content"])
}

func TestRoute_MissingAdapterServesRaw(t *testing.T) {
	router, root, _ := newTestRouter(t, map[transform.Kind]transform.Adapter{})
	writeFile(t, root, "a.ts", "const a: number = 1;")

	result := router.Route(context.Background(), "/a.ts")
	assert.Equal(t, "const a: number = 1;", string(result.Body))
}

func TestRoute_AdapterFailureFallsBackToNotFound(t *testing.T) {
	failing := transform.AdapterFunc(func(ctx context.Context, path string) ([]byte, error) {
		return nil, errors.New("unreadable")
	})
	router, root, _ := newTestRouter(t, map[transform.Kind]transform.Adapter{
		transform.KindRaw: failing,
	})
	writeFile(t, root, "a.css", "a{}")

	result := router.Route(context.Background(), "/a.css")
	assert.Equal(t, ResultNotFound, result.Kind)
	assert.Contains(t, string(result.Body), "404 Not Found")
}

func TestRoute_NotFoundInjection(t *testing.T) {
	resolver, _ := newTestResolver(t)
	router := NewRouter(RouterConfig{
		Index:    "index.html",
		NotFound: "404.html",
		Inject: func(b []byte) []byte {
			return append(b, []byte("<!-- injected -->")...)
		},
	}, resolver, cache.New(), nil, nil, logging.Discard())

	result := router.Route(context.Background(), "/absent.js")
	assert.Equal(t, ResultNotFound, result.Kind)
	assert.Contains(t, string(result.Body), "<!-- injected -->")
}

func TestRoute_LogsTransformTiming(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "json", Output: &buf})
	resolver, root := newTestResolver(t)
	router := NewRouter(RouterConfig{Index: "index.html", NotFound: "404.html"},
		resolver, cache.New(), nil, nil, logger)
	writeFile(t, root, "a.css", "a{}")

	router.Route(context.Background(), "/a.css")
	assert.Contains(t, buf.String(), `"operation":"raw transform"`)
	assert.Contains(t, buf.String(), `"msg":"Operation completed"`)
}
