// Package transform turns source files into the bytes served to the browser.
//
// Every adapter satisfies the same contract: given a canonical file path it
// returns the content to serve. An error means the source could not be read
// at all. Compile failures are not errors; they are rendered into the
// returned content so a broken file shows its diagnostic in the browser
// instead of taking down the dev loop.
package transform

import (
	"context"
	"os"
	"strings"
)

// JavaScriptContentType is the content type for transformed script output.
const JavaScriptContentType = "application/javascript"

// Adapter produces servable content for a source path.
type Adapter interface {
	Transform(ctx context.Context, path string) ([]byte, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, path string) ([]byte, error)

// Transform calls f.
func (f AdapterFunc) Transform(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// RawReader serves file bytes unchanged.
var RawReader Adapter = AdapterFunc(func(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
})

// Kind selects the strategy used for a file.
type Kind int

const (
	KindRaw Kind = iota
	KindScript
	KindFunctional
	KindHTML
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindFunctional:
		return "functional"
	case KindHTML:
		return "html"
	default:
		return "raw"
	}
}

// ContentType returns the content type forced for the kind, or "" when the
// HTTP layer should infer it.
func (k Kind) ContentType() string {
	switch k {
	case KindScript, KindFunctional:
		return JavaScriptContentType
	default:
		return ""
	}
}

// Classifier maps file extensions to kinds.
type Classifier struct {
	ScriptExts    []string
	FunctionalExt string
}

// Classify returns the kind for an extension such as ".ts". Matching is case
// insensitive.
func (c Classifier) Classify(ext string) Kind {
	ext = strings.ToLower(ext)
	if c.FunctionalExt != "" && ext == strings.ToLower(c.FunctionalExt) {
		return KindFunctional
	}
	for _, s := range c.ScriptExts {
		if ext == strings.ToLower(s) {
			return KindScript
		}
	}
	switch ext {
	case ".html", ".htm":
		return KindHTML
	}
	return KindRaw
}
