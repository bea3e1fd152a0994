package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dd0wney/cluso-causalview/pkg/logging"
)

// PanicRecovery turns a handler panic into a logged error and a 500. If the
// handler already sent headers the response is left as is. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func PanicRecovery(logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := record(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				logger.Error("handler panic",
					logging.String("method", r.Method),
					logging.Path(r.URL.Path),
					logging.RequestID(GetRequestID(r)),
					logging.String("panic", fmt.Sprint(v)),
					logging.String("stack", string(debug.Stack())))

				if !rec.headerSent() {
					rec.Header().Del("Content-Encoding")
					writeError(rec, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
