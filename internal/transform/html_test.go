package transform

import (
	"context"
	"testing"

	"github.com/conneroisu/devserve/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectScriptAppendsToBody(t *testing.T) {
	doc := []byte(`<!doctype html><html><head><title>t</title></head><body><main>hi</main></body></html>`)

	out, err := InjectScript(doc, `new EventSource("/reload");`)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `<main>hi</main><script>new EventSource("/reload");</script></body>`)
	assert.Contains(t, s, "<title>t</title>")
}

func TestInjectScriptFragment(t *testing.T) {
	out, err := InjectScript([]byte("<p>bare</p>"), "x()")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<p>bare</p><script>x()</script>")
}

func TestHTMLInjectorPropagatesReadErrors(t *testing.T) {
	injector := NewHTMLInjector(RawReader, "x()", logging.Discard())
	_, err := injector.Transform(context.Background(), "/definitely/not/here.html")
	assert.Error(t, err)
}

func TestHTMLInjectorWrapsAdapter(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.html", "<html><body>app</body></html>")

	out, err := NewHTMLInjector(RawReader, "reload()", logging.Discard()).Transform(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "app<script>reload()</script>")
}
