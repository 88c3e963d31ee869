package transform

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"os/exec"
	"strings"

	deverrors "github.com/conneroisu/devserve/internal/errors"
	"github.com/conneroisu/devserve/internal/logging"
)

// closingScope is the token that ends the compiler's wrapping IIFE. Swapping
// its receiver captures the module into a local object instead of the
// global one.
const closingScope = "}(this));"

// FunctionalConfig configures the external functional-module compiler.
type FunctionalConfig struct {
	Command string
	Args    []string
	Export  string
	WorkDir string

	// Dependencies, when set, lists the files each compiled module imports
	// and hands them to Record.
	Dependencies DependencyLister
	Record       DependencyRecorder
}

// FunctionalCompiler runs the external compiler as a subprocess.
//
// All compiles share one temporary directory that lives as long as the
// compiler, but each compile writes to its own file inside it.
type FunctionalCompiler struct {
	config  FunctionalConfig
	tempDir string
	logger  logging.Logger
}

// NewFunctionalCompiler creates the compiler and its temporary directory.
func NewFunctionalCompiler(config FunctionalConfig, logger logging.Logger) (*FunctionalCompiler, error) {
	if config.Command == "" {
		return nil, deverrors.NewConfigError("FUNCTIONAL_COMMAND", "functional compiler command is empty")
	}
	if config.Export == "" {
		config.Export = "Elm"
	}

	dir, err := os.MkdirTemp("", "devserve-functional-*")
	if err != nil {
		return nil, deverrors.NewIOError("TEMP_DIR", "creating compiler output directory", err)
	}

	return &FunctionalCompiler{
		config:  config,
		tempDir: dir,
		logger:  logger.WithComponent("transform"),
	}, nil
}

// TempDir returns the directory compile outputs are written to.
func (fc *FunctionalCompiler) TempDir() string {
	return fc.tempDir
}

// Transform compiles the module at path. A failing compile yields a script
// that renders the diagnostic into the page and exports an empty binding.
func (fc *FunctionalCompiler) Transform(ctx context.Context, path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(fc.tempDir, "module-*.js")
	if err != nil {
		return nil, deverrors.NewIOError("TEMP_FILE", "creating compiler output file", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	args := make([]string, 0, len(fc.config.Args)+2)
	args = append(args, fc.config.Args...)
	args = append(args, path, "--output="+outPath)

	cmd := exec.CommandContext(ctx, fc.config.Command, args...)
	cmd.Dir = fc.config.WorkDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("compiling %s: %w", path, ctx.Err())
		}
		compileErr := deverrors.NewTransformError("COMPILE_FAILED", "functional module compile failed", err).WithPath(path)
		diagnostic := stderr.String()
		if strings.TrimSpace(diagnostic) == "" {
			diagnostic = compileErr.Error()
		}
		fc.logger.Warn(ctx, compileErr, "Functional module compile failed", "diagnostic", diagnostic)
		fc.trackDependencies(ctx, path)
		return DiagnosticScript(diagnostic, fc.config.Export), nil
	}

	bundle, err := os.ReadFile(outPath)
	if err != nil {
		return nil, deverrors.NewIOError("COMPILER_OUTPUT", "reading compiler output", err).WithPath(outPath)
	}
	fc.trackDependencies(ctx, path)
	return WrapBundle(bundle, fc.config.Export), nil
}

// trackDependencies records the modules path imports. Listing failures are
// logged and leave the previous record in place.
func (fc *FunctionalCompiler) trackDependencies(ctx context.Context, path string) {
	if fc.config.Dependencies == nil || fc.config.Record == nil {
		return
	}
	deps, err := fc.config.Dependencies.Dependencies(ctx, path)
	if err != nil {
		fc.logger.Warn(ctx, deverrors.NewTransformError("DEPENDENCIES", "listing module dependencies", err).WithPath(path),
			"Dependency edits will not reload this module")
		return
	}
	fc.config.Record(path, deps)
	fc.logger.Debug(ctx, "Tracking module dependencies", "path", path, "count", len(deps))
}

// Close removes the temporary directory.
func (fc *FunctionalCompiler) Close() error {
	return os.RemoveAll(fc.tempDir)
}

// WrapBundle captures a compiled bundle into a local scope object and
// re-exports its top-level binding as an ES module export.
func WrapBundle(bundle []byte, export string) []byte {
	body := strings.Replace(string(bundle), closingScope, "}(scope));", 1)

	var b strings.Builder
	b.Grow(len(body) + 64)
	b.WriteString("const scope = {};\n")
	b.WriteString(body)
	fmt.Fprintf(&b, "\nexport const { %s } = scope;\n", export)
	return []byte(b.String())
}

var templateLiteralEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`", "${", "\\${")

// DiagnosticScript returns a script that replaces the page body with the
// diagnostic as preformatted text and exports an empty placeholder binding.
func DiagnosticScript(diagnostic, export string) []byte {
	escaped := templateLiteralEscaper.Replace(html.EscapeString(diagnostic))
	return []byte(fmt.Sprintf("document.body.innerHTML = `<pre>%s</pre>`;export const %s = {};\n", escaped, export))
}
