package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsRecorder receives per-request HTTP measurements
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	RecordResponseSize(method, path string, size float64)
	IncHTTPRequestsInFlight()
	DecHTTPRequestsInFlight()
}

const clusterRoutePrefix = "/api/v1/clusters/"

// Metrics records count, latency, size and in-flight gauges. It must wrap the
// mux itself so r.Pattern is set by the time the labels are read.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder.IncHTTPRequestsInFlight()
			defer recorder.DecHTTPRequestsInFlight()

			rec := record(w)
			start := time.Now()
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			route := routeLabel(r)
			recorder.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.Status()), elapsed)
			recorder.RecordResponseSize(r.Method, route, float64(rec.written))
		})
	}
}

// routeLabel is the matched mux pattern without its method, so label values
// stay bounded. Unrouted cluster lookups collapse to one label.
func routeLabel(r *http.Request) string {
	if pattern := r.Pattern; pattern != "" {
		if i := strings.IndexByte(pattern, ' '); i >= 0 {
			return pattern[i+1:]
		}
		return pattern
	}
	if rest, ok := strings.CutPrefix(r.URL.Path, clusterRoutePrefix); ok && rest != "" {
		return clusterRoutePrefix + "{id}"
	}
	return r.URL.Path
}
