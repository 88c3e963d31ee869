// Package server is devserve's HTTP front end. A Server owns every piece of
// mutable state (content cache, reload hub, adapters, watcher and metrics)
// so several instances can run side by side, and supervises its background
// tasks so they all stop together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/devserve/internal/cache"
	"github.com/conneroisu/devserve/internal/config"
	deverrors "github.com/conneroisu/devserve/internal/errors"
	"github.com/conneroisu/devserve/internal/logging"
	"github.com/conneroisu/devserve/internal/metrics"
	"github.com/conneroisu/devserve/internal/reload"
	"github.com/conneroisu/devserve/internal/transform"
	"github.com/conneroisu/devserve/internal/validation"
	"github.com/conneroisu/devserve/internal/watcher"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 5 * time.Second

// Launcher opens a URL in the user's browser.
type Launcher func(ctx context.Context, url string) error

// Server serves one project tree.
type Server struct {
	config *config.Config
	logger logging.Logger

	cache      *cache.ContentCache
	hub        *reload.Hub
	reload     *reload.Handler
	router     *Router
	functional *transform.FunctionalCompiler
	watcher    *watcher.FileWatcher
	dispatcher *watcher.Dispatcher
	metrics    *metrics.Metrics
	launch     Launcher

	httpServer *http.Server

	mutex       sync.RWMutex
	listener    net.Listener
	ready       chan struct{}
	releaseOnce sync.Once
}

// New builds a server for cfg. The served root must be readable.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	root, err := canonicalRoot(cfg.Root.Dir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config: cfg,
		logger: logger.WithComponent("server"),
		cache:  cache.New(),
		hub: reload.NewHub(reload.Options{
			QueueSize:    cfg.Reload.QueueSize,
			WriteTimeout: cfg.Reload.WriteTimeout,
		}, logger),
		launch: OpenBrowser,
		ready:  make(chan struct{}),
	}
	s.reload = reload.NewHandler(s.hub, cfg.Reload.Transport, logger)

	var observer Observer
	if cfg.Metrics.Enabled {
		if s.metrics, err = metrics.New(s.cache, s.hub); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		observer = s.metrics
	}

	scripts, err := transform.NewScriptTranspiler(transform.ScriptOptions{
		Target:    cfg.Transform.Target,
		SourceMap: cfg.Transform.SourceMap,
	}, logger)
	if err != nil {
		return nil, deverrors.NewConfigError("SCRIPT_TARGET", err.Error())
	}

	var deps transform.DependencyLister = transform.ImportScanner{Ext: cfg.Transform.Functional.Ext}
	if cfg.Transform.Functional.DepsCommand != "" {
		deps = transform.CommandLister{
			Command: cfg.Transform.Functional.DepsCommand,
			WorkDir: cfg.Transform.Functional.WorkDir,
		}
	}
	s.functional, err = transform.NewFunctionalCompiler(transform.FunctionalConfig{
		Command:      cfg.Transform.Functional.Command,
		Args:         cfg.Transform.Functional.Args,
		Export:       cfg.Transform.Functional.Export,
		WorkDir:      cfg.Transform.Functional.WorkDir,
		Dependencies: deps,
		Record:       func(module string, paths []string) { s.recordDependencies(root, module, paths) },
	}, logger)
	if err != nil {
		return nil, err
	}

	var documents transform.Adapter = transform.RawReader
	var inject func([]byte) []byte
	if cfg.Reload.Inject {
		script := reload.ClientScript(cfg.Reload.Path, cfg.Reload.Transport)
		documents = transform.NewHTMLInjector(transform.RawReader, script, logger)
		inject = func(doc []byte) []byte {
			if out, err := transform.InjectScript(doc, script); err == nil {
				return out
			}
			return doc
		}
	}

	classifier := transform.Classifier{
		ScriptExts:    cfg.Transform.ScriptExts,
		FunctionalExt: cfg.Transform.Functional.Ext,
	}
	s.router = NewRouter(RouterConfig{
		Index:      cfg.Root.Index,
		NotFound:   cfg.Root.NotFound,
		ReloadPath: cfg.Reload.Path,
		Inject:     inject,
	},
		NewResolver(root, cfg.Transform.DefaultExt, classifier),
		s.cache,
		map[transform.Kind]transform.Adapter{
			transform.KindScript:     scripts,
			transform.KindFunctional: s.functional,
			transform.KindHTML:       documents,
			transform.KindRaw:        transform.RawReader,
		},
		observer,
		logger,
	)

	s.watcher, err = watcher.NewFileWatcher(cfg.Watch.Debounce, cfg.Watch.Ignore, logger)
	if err != nil {
		s.functional.Close()
		return nil, err
	}
	s.watcher.AddFilter(watcher.IgnoreFilter(root, cfg.Watch.Ignore...))
	s.watcher.AddFilter(watcher.NoTempFilter)
	if err := s.watcher.AddRecursive(root); err != nil {
		s.watcher.Stop()
		s.functional.Close()
		return nil, deverrors.NewIOError("WATCH_ROOT", "watching served root", err).WithPath(root)
	}
	s.dispatcher = watcher.NewDispatcher(s.cache, s.hub, logger)

	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// recordDependencies links module to the files it was compiled from so a
// change to any of them reloads it. Directories outside root are watched
// individually.
func (s *Server) recordDependencies(root, module string, deps []string) {
	s.cache.Link(module, deps)
	if s.watcher == nil {
		return
	}
	for _, dep := range deps {
		if validation.WithinRoot(root, dep) {
			continue
		}
		if err := s.watcher.Watch(filepath.Dir(dep)); err != nil {
			s.logger.Warn(context.Background(), err, "Dependency directory not watched", "module", module, "path", dep)
		}
	}
}

func canonicalRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", deverrors.NewIOError("ROOT", "resolving served root", err).WithPath(dir)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", deverrors.NewIOError("ROOT", "resolving served root", err).WithPath(abs)
	}
	if _, err := os.ReadDir(root); err != nil {
		return "", deverrors.NewIOError("ROOT", "served root is unreadable", err).WithPath(root)
	}
	return root, nil
}

// SetLauncher replaces the browser launcher. Must be called before Start.
func (s *Server) SetLauncher(l Launcher) {
	s.launch = l
}

// Cache returns the server's content cache.
func (s *Server) Cache() *cache.ContentCache {
	return s.cache
}

// Hub returns the server's reload hub.
func (s *Server) Hub() *reload.Hub {
	return s.hub
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Start has bound it.
func (s *Server) Addr() net.Addr {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL returns the root URL of the running server.
func (s *Server) URL() string {
	if addr := s.Addr(); addr != nil {
		return "http://" + addr.String() + "/"
	}
	return "http://" + s.config.Server.Address() + "/"
}

// Start binds the listener and runs the HTTP server, the watcher loop and
// the browser launch until ctx is cancelled or one of them fails. On return
// every task has stopped and all resources are released.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		s.release()
		return deverrors.NewNetworkError("LISTEN", "cannot listen on "+s.config.Server.Address(), err)
	}
	s.mutex.Lock()
	s.listener = ln
	s.mutex.Unlock()
	close(s.ready)

	s.logger.Info(ctx, "Serving", "root", s.router.resolver.Root(), "url", s.URL())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return deverrors.NewNetworkError("SERVE", "http server failed", err)
		}
		return nil
	})

	g.Go(func() error {
		s.dispatcher.Run(gctx, s.watcher.Events(gctx))
		return nil
	})

	if s.config.Server.Open {
		g.Go(func() error {
			if err := s.launch(gctx, s.URL()); err != nil {
				s.logger.Warn(gctx, err, "Could not open browser", "url", s.URL())
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

// shutdown stops accepting requests, ends reload subscriptions and releases
// the watcher and compiler resources.
func (s *Server) shutdown() error {
	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	s.release()
	if err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info(context.Background(), "Server stopped")
	return nil
}

// Close releases the watcher and compiler resources of a server that was
// never started. Start releases them itself on return.
func (s *Server) Close() error {
	s.hub.CloseAll()
	s.release()
	return nil
}

func (s *Server) release() {
	s.releaseOnce.Do(s.releaseResources)
}

func (s *Server) releaseResources() {
	if err := s.watcher.Stop(); err != nil {
		s.logger.Debug(context.Background(), "Stopping watcher", "error", err.Error())
	}
	if err := s.functional.Close(); err != nil {
		s.logger.Warn(context.Background(), err, "Removing compiler temp directory")
	}
}
