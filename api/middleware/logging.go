package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
)

// Logging emits one line per request, leveled by response status.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				})
			}

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(ctx))

			if logg != nil {
				status := rec.Status()
				ctx = logg.WithFields(ctx, map[string]any{
					"status":      status,
					"duration_ms": time.Since(start).Milliseconds(),
				})
				switch {
				case status >= http.StatusInternalServerError:
					logg.Error(ctx, "request.complete", fmt.Errorf("status %d", status))
				case status >= http.StatusBadRequest:
					logg.Warn(ctx, "request.complete")
				default:
					logg.Info(ctx, "request.complete")
				}
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Status returns the written status code, defaulting to 200.
func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
