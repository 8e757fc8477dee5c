package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type uploadKey struct{}

// uploadInfo collects what the handlers learn about a document so the access
// log line can name it.
type uploadInfo struct {
	mu       sync.Mutex
	filename string
	size     int
	jobID    string
}

func (u *uploadInfo) attrs() []any {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.filename == "" {
		return nil
	}
	attrs := []any{"filename", u.filename, "upload_bytes", u.size}
	if u.jobID != "" {
		attrs = append(attrs, "job_id", u.jobID)
	}
	return attrs
}

// noteUpload records the accepted document on the request's log entry.
func noteUpload(r *http.Request, filename string, size int) {
	if u, ok := r.Context().Value(uploadKey{}).(*uploadInfo); ok {
		u.mu.Lock()
		u.filename, u.size = filename, size
		u.mu.Unlock()
	}
}

// noteJob records the id of the job created for the request.
func noteJob(r *http.Request, id string) {
	if u, ok := r.Context().Value(uploadKey{}).(*uploadInfo); ok {
		u.mu.Lock()
		u.jobID = id
		u.mu.Unlock()
	}
}

// RequestLogger writes one access log line per request: the chi request id
// and route, the uploaded document when there was one, and the response size.
// Server errors are logged at Warn.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &uploadInfo{}
			r = r.WithContext(context.WithValue(r.Context(), uploadKey{}, info))
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			attrs := []any{
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			}
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				attrs = append(attrs, "route", rc.RoutePattern())
			}
			attrs = append(attrs, info.attrs()...)
			attrs = append(attrs,
				"status", sw.status,
				"response_bytes", sw.written,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			level := slog.LevelInfo
			if sw.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			log.Log(r.Context(), level, "request", attrs...)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}
