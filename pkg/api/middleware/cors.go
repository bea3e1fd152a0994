package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig lists which browser viewers may call the API
type CORSConfig struct {
	// AllowedOrigins are exact origins, or "*" for any. Empty disables CORS.
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	// MaxAge is how long a preflight answer may be cached, in seconds
	MaxAge int
}

// DefaultCORSConfig allows no origins and the methods and headers the API uses
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Content-Encoding", "Accept-Encoding", RequestIDHeader},
		MaxAge:         86400,
	}
}

// corsPolicy is a CORSConfig resolved once, outside the request path
type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]struct{}
	methods     string
	headers     string
	maxAge      string
	credentials bool
}

func newCORSPolicy(cfg *CORSConfig) corsPolicy {
	def := DefaultCORSConfig()
	if cfg == nil {
		cfg = def
	}
	p := corsPolicy{
		origins:     make(map[string]struct{}, len(cfg.AllowedOrigins)),
		methods:     strings.Join(cmpOr(cfg.AllowedMethods, def.AllowedMethods), ", "),
		headers:     strings.Join(cmpOr(cfg.AllowedHeaders, def.AllowedHeaders), ", "),
		credentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	p.anyOrigin = slices.Contains(cfg.AllowedOrigins, "*")
	for _, o := range cfg.AllowedOrigins {
		p.origins[o] = struct{}{}
	}
	return p
}

func cmpOr(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

func (p corsPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.anyOrigin {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// CORS answers preflight requests and tags responses for allowed origins.
// The allowed origin is echoed back rather than "*", so credentials work with
// a wildcard list.
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := p.allows(origin)

			h := w.Header()
			if origin != "" {
				h.Add("Vary", "Origin")
			}
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", p.methods)
				h.Set("Access-Control-Allow-Headers", p.headers)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.maxAge != "" {
					h.Set("Access-Control-Max-Age", p.maxAge)
				}
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeError(w, http.StatusForbidden, "origin not allowed")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
