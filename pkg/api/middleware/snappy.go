package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/golang/snappy"
)

// SnappyEncoding is the content coding for snappy framed streams
const SnappyEncoding = "snappy"

// snappyResponseWriter compresses everything the handler writes
type snappyResponseWriter struct {
	http.ResponseWriter
	sw *snappy.Writer
}

func (w *snappyResponseWriter) WriteHeader(status int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(status)
}

func (w *snappyResponseWriter) Write(b []byte) (int, error) {
	return w.sw.Write(b)
}

// snappyBody decodes a request body while closing the original
type snappyBody struct {
	io.Reader
	io.Closer
}

// Snappy creates middleware for snappy framed payloads. Request bodies sent
// with Content-Encoding: snappy are decoded before the handler reads them;
// responses are encoded when the client lists snappy in Accept-Encoding.
func Snappy() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(strings.TrimSpace(r.Header.Get("Content-Encoding")), SnappyEncoding) {
				r.Body = snappyBody{Reader: snappy.NewReader(r.Body), Closer: r.Body}
				r.Header.Del("Content-Encoding")
				r.ContentLength = -1
			}

			w.Header().Add("Vary", "Accept-Encoding")
			if !acceptsEncoding(r.Header.Get("Accept-Encoding"), SnappyEncoding) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Encoding", SnappyEncoding)
			sw := snappy.NewBufferedWriter(w)
			defer sw.Close()

			next.ServeHTTP(&snappyResponseWriter{ResponseWriter: w, sw: sw}, r)
		})
	}
}

// acceptsEncoding reports whether an Accept-Encoding header lists coding with a
// non-zero quality
func acceptsEncoding(header, coding string) bool {
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(name), coding) {
			continue
		}
		q := strings.ReplaceAll(params, " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}
