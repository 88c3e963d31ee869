package transform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// DependencyLister finds the local source files a module pulls in, directly
// or transitively. Returned paths are absolute and symlink-resolved; the
// module itself is not included.
type DependencyLister interface {
	Dependencies(ctx context.Context, path string) ([]string, error)
}

// DependencyRecorder is told which files a compiled module depends on.
type DependencyRecorder func(module string, deps []string)

// projectFile describes an Elm project's source directories.
const projectFile = "elm.json"

var importLine = regexp.MustCompile(`^import\s+([A-Z][A-Za-z0-9_]*(?:\.[A-Z][A-Za-z0-9_]*)*)`)

// ImportScanner follows import declarations through the project's source
// directories. Imports that resolve to no file, such as package modules, are
// skipped.
type ImportScanner struct {
	Ext string
}

// Dependencies implements DependencyLister.
func (s ImportScanner) Dependencies(ctx context.Context, path string) ([]string, error) {
	ext := s.Ext
	if ext == "" {
		ext = filepath.Ext(path)
	}

	module, err := canonical(path)
	if err != nil {
		return nil, err
	}
	dirs, err := sourceDirectories(module)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{module: true}
	queue := []string{module}
	var deps []string
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		imports, err := scanImports(current)
		if err != nil {
			return nil, err
		}
		for _, name := range imports {
			rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/")) + ext
			for _, dir := range dirs {
				dep, err := canonical(filepath.Join(dir, rel))
				if err != nil || seen[dep] {
					continue
				}
				seen[dep] = true
				deps = append(deps, dep)
				queue = append(queue, dep)
				break
			}
		}
	}

	slices.Sort(deps)
	return deps, nil
}

func scanImports(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var imports []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := importLine.FindStringSubmatch(scanner.Text()); m != nil {
			imports = append(imports, m[1])
		}
	}
	return imports, scanner.Err()
}

// sourceDirectories returns the source directories of the nearest project
// file above module, or module's own directory when there is none.
func sourceDirectories(module string) ([]string, error) {
	for dir := filepath.Dir(module); ; dir = filepath.Dir(dir) {
		data, err := os.ReadFile(filepath.Join(dir, projectFile))
		if err == nil {
			var project struct {
				SourceDirectories []string `json:"source-directories"`
			}
			if err := json.Unmarshal(data, &project); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", filepath.Join(dir, projectFile), err)
			}
			var dirs []string
			for _, src := range project.SourceDirectories {
				if !filepath.IsAbs(src) {
					src = filepath.Join(dir, src)
				}
				dirs = append(dirs, src)
			}
			if len(dirs) > 0 {
				return dirs, nil
			}
			break
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}
	return []string{filepath.Dir(module)}, nil
}

var quotedPath = regexp.MustCompile(`'([^']+)'`)

// CommandLister runs an external dependency finder and collects every
// single-quoted path it prints.
type CommandLister struct {
	Command string
	Args    []string
	WorkDir string
}

// Dependencies implements DependencyLister.
func (c CommandLister) Dependencies(ctx context.Context, path string) ([]string, error) {
	args := append(slices.Clone(c.Args), path)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Dir = c.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", c.Command, path, err, strings.TrimSpace(stderr.String()))
	}

	module, _ := canonical(path)
	var deps []string
	for _, m := range quotedPath.FindAllStringSubmatch(stdout.String(), -1) {
		dep := m[1]
		if !filepath.IsAbs(dep) && c.WorkDir != "" {
			dep = filepath.Join(c.WorkDir, dep)
		}
		resolved, err := canonical(dep)
		if err != nil || resolved == module || slices.Contains(deps, resolved) {
			continue
		}
		deps = append(deps, resolved)
	}
	slices.Sort(deps)
	return deps, nil
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
