package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/conneroisu/devserve/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCache struct{ stats cache.Stats }

func (s stubCache) Stats() cache.Stats { return s.stats }

type stubClients struct{}

func (stubClients) Clients() int      { return 3 }
func (stubClients) Broadcasts() int64 { return 7 }
func (stubClients) Dropped() int64    { return 2 }

func TestMetricsExposition(t *testing.T) {
	m, err := New(stubCache{stats: cache.Stats{Hits: 5, Misses: 2, Entries: 4}}, stubClients{})
	require.NoError(t, err)

	m.ObserveRequest("content")
	m.ObserveRequest("content")
	m.ObserveRequest("not_found")
	m.ObserveTransform("script", 12*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "devserve_cache_hits_total 5")
	assert.Contains(t, text, "devserve_cache_entries 4")
	assert.Contains(t, text, "devserve_reload_clients 3")
	assert.Contains(t, text, "devserve_reload_broadcasts_total 7")
	assert.Contains(t, text, "devserve_reload_dropped_total 2")
	assert.Contains(t, text, `devserve_http_requests_total{result="content"} 2`)
	assert.Contains(t, text, `devserve_http_requests_total{result="not_found"} 1`)
	assert.Contains(t, text, `devserve_transform_duration_seconds_count{kind="script"} 1`)
}

func TestIndependentRegistries(t *testing.T) {
	_, err := New(stubCache{}, stubClients{})
	require.NoError(t, err)
	_, err = New(stubCache{}, stubClients{})
	assert.NoError(t, err, "instances must not collide on a shared registry")
}
