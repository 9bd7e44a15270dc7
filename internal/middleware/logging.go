package middleware

import (
	"net/http"
	"time"

	"github.com/KOSOTSU-dev/tel-plus/internal/logging"
)

// RequestLogger logs one structured line per request, leveled by the
// response status.
type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger(logger *logging.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rl *RequestLogger) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if q := r.URL.RawQuery; q != "" {
			fields["query"] = q
		}

		switch {
		case rec.status >= http.StatusInternalServerError:
			rl.logger.Error("request", fields)
		case rec.status >= http.StatusBadRequest:
			rl.logger.Warn("request", fields)
		default:
			rl.logger.Info("request", fields)
		}
	})
}
