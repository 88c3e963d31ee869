package server

import (
	"os"
	"path/filepath"
	"testing"

	deverrors "github.com/conneroisu/devserve/internal/errors"
	"github.com/conneroisu/devserve/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	classifier := transform.Classifier{
		ScriptExts:    []string{".ts", ".tsx"},
		FunctionalExt: ".elm",
	}
	return NewResolver(root, ".ts", classifier), root
}

func TestResolve(t *testing.T) {
	r, root := newTestResolver(t)
	writeFile(t, root, "app.ts", "")
	writeFile(t, root, "Main.elm", "")
	writeFile(t, root, "pages/index.html", "")
	writeFile(t, root, "img/logo.png", "")

	tests := []struct {
		name    string
		urlPath string
		want    string
		kind    transform.Kind
	}{
		{"script", "/app.ts", "app.ts", transform.KindScript},
		{"default extension", "/app", "app.ts", transform.KindScript},
		{"functional", "/Main.elm", "Main.elm", transform.KindFunctional},
		{"html", "/pages/index.html", "pages/index.html", transform.KindHTML},
		{"raw", "/img/logo.png", "img/logo.png", transform.KindRaw},
		{"dot segments", "/img/../app.ts", "app.ts", transform.KindScript},
		{"escape above root", "/../../app.ts", "app.ts", transform.KindScript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(tt.urlPath)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), res.Path)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, filepath.Ext(tt.want), res.Ext)
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	r, root := newTestResolver(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir.d"), 0o755))

	_, err := r.Resolve("/missing.ts")
	assert.ErrorIs(t, err, deverrors.ErrNotFound)

	_, err = r.Resolve("/dir.d")
	assert.ErrorIs(t, err, deverrors.ErrIsDirectory)
}

func TestResolve_SymlinkOutsideRoot(t *testing.T) {
	r, root := newTestResolver(t)
	outside := writeFile(t, t.TempDir(), "secret.ts", "")
	if err := os.Symlink(outside, filepath.Join(root, "link.ts")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := r.Resolve("/link.ts")
	assert.ErrorIs(t, err, deverrors.ErrOutsideRoot)
}

func TestResolve_SymlinkInsideRoot(t *testing.T) {
	r, root := newTestResolver(t)
	target := writeFile(t, root, "real/app.ts", "")
	if err := os.Symlink(target, filepath.Join(root, "alias.ts")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, err := r.Resolve("/alias.ts")
	require.NoError(t, err)
	assert.Equal(t, target, res.Path)
}

func TestNotFoundCandidates(t *testing.T) {
	assert.Equal(t,
		[]string{"/a/b/404.html", "/a/404.html", "/404.html"},
		NotFoundCandidates("/a/b/c.js", "404.html"))
	assert.Equal(t, []string{"/404.html"}, NotFoundCandidates("/c.js", "404.html"))
	assert.Equal(t, []string{"/404.html"}, NotFoundCandidates("/../../x", "404.html"))
}

func TestResultKindString(t *testing.T) {
	assert.Equal(t, "content", ResultContent.String())
	assert.Equal(t, "not_found", ResultNotFound.String())
	assert.Equal(t, "subscribe", ResultSubscribe.String())
	assert.Equal(t, 404, Result{Kind: ResultNotFound}.Status())
	assert.Equal(t, 200, Result{Kind: ResultContent}.Status())
}
