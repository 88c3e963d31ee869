package server

import (
	"os"
	"path"
	"path/filepath"

	deverrors "github.com/conneroisu/devserve/internal/errors"
	"github.com/conneroisu/devserve/internal/transform"
	"github.com/conneroisu/devserve/internal/validation"
)

// Resolution is a request path mapped onto the served tree.
type Resolution struct {
	Path string
	Ext  string
	Kind transform.Kind
}

// Resolver maps URL paths to canonical files under the served root.
type Resolver struct {
	root       string
	defaultExt string
	classifier transform.Classifier
}

// NewResolver creates a resolver for root, which must already be absolute
// and symlink-resolved.
func NewResolver(root, defaultExt string, classifier transform.Classifier) *Resolver {
	return &Resolver{root: root, defaultExt: defaultExt, classifier: classifier}
}

// Root returns the canonical served root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve maps urlPath to a regular file inside the root. A path without an
// extension gets the default one. Symlinks are followed but the target must
// stay inside the root.
func (r *Resolver) Resolve(urlPath string) (Resolution, error) {
	clean := path.Clean("/" + urlPath)
	full := filepath.Join(r.root, filepath.FromSlash(clean))
	if filepath.Ext(full) == "" {
		full += r.defaultExt
	}

	// Missing files and broken symlinks both surface here.
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return Resolution{}, deverrors.NewResolveError(deverrors.CodeNotFound, full, err)
	}
	if !validation.WithinRoot(r.root, resolved) {
		return Resolution{}, deverrors.NewResolveError(deverrors.CodeOutsideRoot, resolved, nil)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Resolution{}, deverrors.NewResolveError(deverrors.CodeNotFound, resolved, err)
	}
	if info.IsDir() {
		return Resolution{}, deverrors.NewResolveError(deverrors.CodeIsDirectory, resolved, nil)
	}

	ext := filepath.Ext(resolved)
	return Resolution{
		Path: resolved,
		Ext:  ext,
		Kind: r.classifier.Classify(ext),
	}, nil
}

// NotFoundCandidates lists the URL paths of the not-found documents that may
// answer for urlPath, nearest directory first and the root's last.
func NotFoundCandidates(urlPath, name string) []string {
	dir := path.Dir(path.Clean("/" + urlPath))
	var out []string
	for {
		out = append(out, path.Join(dir, name))
		if dir == "/" {
			return out
		}
		dir = path.Dir(dir)
	}
}
