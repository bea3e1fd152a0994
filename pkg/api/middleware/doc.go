// Package middleware holds the func(http.Handler) http.Handler layers around
// the causalview API mux.
//
// Server.Handler stacks them outermost first as PanicRecovery, RequestID,
// Logging, SecurityHeaders, CORS, Snappy, BodySizeLimit, Metrics and then the
// mux. Metrics sits directly on the mux so the matched route pattern is
// available for labels. BodySizeLimit sits inside Snappy so the cap applies
// to decoded bytes.
package middleware
