package transform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/devserve/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTranspiler(t *testing.T, sourceMap bool) *ScriptTranspiler {
	t.Helper()
	s, err := NewScriptTranspiler(ScriptOptions{Target: "esnext", SourceMap: sourceMap}, logging.Discard())
	require.NoError(t, err)
	return s
}

func TestScriptTranspilerValidSource(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.ts", "const answer: number = 42;\nexport default answer;\n")

	out, err := newTranspiler(t, false).Transform(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, string(out), "const answer = 42;")
	assert.NotContains(t, string(out), ": number")
	assert.NotContains(t, string(out), "sourceMappingURL")
}

func TestScriptTranspilerInlineSourceMap(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.ts", "export const x: string = 'x';\n")

	out, err := newTranspiler(t, true).Transform(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "//# sourceMappingURL=data:application/json;base64,")
}

func TestScriptTranspilerTSX(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "view.tsx", "export const View = (p: {n: string}) => <div>{p.n}</div>;\n")

	out, err := newTranspiler(t, false).Transform(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "React.createElement")
}

func TestScriptTranspilerStripsBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bom.ts", "\ufefflet n: number = 1;\n")

	out, err := newTranspiler(t, false).Transform(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "let n = 1;")
}

func TestScriptTranspilerFailOpen(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.ts", "const = ;\n")

	out, err := newTranspiler(t, false).Transform(context.Background(), path)
	require.NoError(t, err, "compile errors are rendered as content")
	assert.Contains(t, string(out), "ERROR")
	assert.Contains(t, string(out), "broken.ts")
}

func TestScriptTranspilerMissingFile(t *testing.T) {
	_, err := newTranspiler(t, false).Transform(context.Background(), filepath.Join(t.TempDir(), "nope.ts"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseTarget(t *testing.T) {
	_, err := ParseTarget("es2020")
	assert.NoError(t, err)
	_, err = ParseTarget("")
	assert.NoError(t, err)
	_, err = ParseTarget("es3")
	assert.Error(t, err)

	_, err = NewScriptTranspiler(ScriptOptions{Target: "cobol"}, logging.Discard())
	assert.Error(t, err)
}
