package middleware

import (
	"net/http"
	"time"

	"github.com/dd0wney/cluso-causalview/pkg/logging"
)

// Logging writes one line per request once the handler returns. Server
// errors are logged at WARN. getRequestID may be nil.
func Logging(logger logging.Logger, getRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.With(logging.Component("http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := record(w)
			start := time.Now()
			next.ServeHTTP(rec, r)

			status := rec.Status()
			fields := make([]logging.Field, 0, 6)
			fields = append(fields,
				logging.String("method", r.Method),
				logging.Path(r.URL.Path),
				logging.Int("status", status),
				logging.Int("bytes", int(rec.written)),
				logging.Latency(time.Since(start)))
			if getRequestID != nil {
				if id := getRequestID(r); id != "" {
					fields = append(fields, logging.RequestID(id))
				}
			}

			log := logger.Info
			if status >= http.StatusInternalServerError {
				log = logger.Warn
			}
			log("request", fields...)
		})
	}
}
