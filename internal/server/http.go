package server

import (
	"bufio"
	"fmt"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/devserve/internal/reload"
)

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	s.serve(rec, r)

	s.logger.Info(r.Context(), "Request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start).Round(time.Microsecond).String(),
	)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil && r.URL.Path == s.config.Metrics.Path {
		s.metrics.Handler().ServeHTTP(w, r)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	result := s.router.Route(r.Context(), r.URL.Path)
	if result.Kind == ResultSubscribe {
		if r.Method == http.MethodHead {
			if s.config.Reload.Transport != reload.TransportWebSocket {
				w.Header().Set("Content-Type", "text/event-stream")
			}
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			return
		}
		s.reload.ServeHTTP(w, r)
		return
	}
	s.render(w, r, result)
}

// render writes a content or not-found result. Write failures mean the client
// went away and are only logged.
func (s *Server) render(w http.ResponseWriter, r *http.Request, result Result) {
	h := w.Header()
	h.Set("Content-Type", contentType(result))
	h.Set("Cache-Control", "no-cache")

	if result.ETag != "" {
		h.Set("ETag", result.ETag)
		if etagMatches(r.Header.Get("If-None-Match"), result.ETag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	h.Set("Content-Length", fmt.Sprint(len(result.Body)))
	w.WriteHeader(result.Status())
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(result.Body); err != nil {
		s.logger.Debug(r.Context(), "Response write failed", "path", r.URL.Path, "error", err.Error())
	}
}

// contentType returns the forced type or infers one from the file extension
// and then the content.
func contentType(result Result) string {
	if result.ContentType != "" {
		return result.ContentType
	}
	if result.Path != "" {
		if ct := mime.TypeByExtension(filepath.Ext(result.Path)); ct != "" {
			return ct
		}
	}
	return http.DetectContentType(result.Body)
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// statusRecorder captures the status for request logging. It forwards
// flushing and hijacking so the reload transports keep working.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
