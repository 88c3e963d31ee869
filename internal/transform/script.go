package transform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/devserve/internal/logging"
	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/text/encoding/unicode"
	xtransform "golang.org/x/text/transform"
)

// ScriptOptions configures the script transpiler.
type ScriptOptions struct {
	Target    string
	SourceMap bool
}

// ScriptTranspiler compiles typed script sources with esbuild. It performs no
// bundling; imports are left for the browser to request.
type ScriptTranspiler struct {
	target    api.Target
	sourceMap api.SourceMap
	logger    logging.Logger
}

// NewScriptTranspiler creates a transpiler. An unknown target is an error.
func NewScriptTranspiler(opts ScriptOptions, logger logging.Logger) (*ScriptTranspiler, error) {
	target, err := ParseTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	sourceMap := api.SourceMapNone
	if opts.SourceMap {
		sourceMap = api.SourceMapInline
	}
	return &ScriptTranspiler{
		target:    target,
		sourceMap: sourceMap,
		logger:    logger.WithComponent("transform"),
	}, nil
}

var targets = map[string]api.Target{
	"esnext": api.ESNext,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

// ParseTarget maps a target name such as "es2020" to its esbuild value.
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		return api.ESNext, nil
	}
	t, ok := targets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unsupported script target %q", name)
	}
	return t, nil
}

// Transform reads path and transpiles it. Compile errors come back as the
// formatted diagnostic text with a nil error.
func (s *ScriptTranspiler) Transform(ctx context.Context, path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	source, _, err := xtransform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	result := api.Transform(string(source), api.TransformOptions{
		Loader:     loaderFor(path),
		Target:     s.target,
		Sourcemap:  s.sourceMap,
		Sourcefile: filepath.Base(path),
	})

	if len(result.Errors) > 0 {
		diagnostic := strings.Join(api.FormatMessages(result.Errors, api.FormatMessagesOptions{
			Kind: api.ErrorMessage,
		}), "\n")
		s.logger.Warn(ctx, nil, "Script transpile failed", "path", path, "errors", len(result.Errors))
		return []byte(diagnostic), nil
	}
	for _, w := range result.Warnings {
		s.logger.Debug(ctx, "Script transpile warning", "path", path, "warning", w.Text)
	}

	return result.Code, nil
}

func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".js", ".mjs":
		return api.LoaderJS
	default:
		return api.LoaderTS
	}
}
