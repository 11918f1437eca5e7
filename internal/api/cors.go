package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	// AllowOrigins lists accepted origins; "*" accepts any.
	AllowOrigins  []string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        int
}

// DefaultCORSConfig returns a config for the given origins, or any origin
// when none are listed.
func DefaultCORSConfig(origins ...string) CORSConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "Authorization", "Accept", "Origin", requestIDHeader},
		ExposeHeaders: []string{"Retry-After", requestIDHeader},
		MaxAge:        3600,
	}
}

// corsHeaders precomputes the header set for a config.
type corsHeaders struct {
	origins []string
	any     bool
	methods string
	headers string
	expose  string
	maxAge  string
}

func newCORSHeaders(config CORSConfig) corsHeaders {
	return corsHeaders{
		origins: config.AllowOrigins,
		any:     slices.Contains(config.AllowOrigins, "*"),
		methods: strings.Join(config.AllowMethods, ", "),
		headers: strings.Join(config.AllowHeaders, ", "),
		expose:  strings.Join(config.ExposeHeaders, ", "),
		maxAge:  strconv.Itoa(config.MaxAge),
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not accepted.
func (c corsHeaders) allowOrigin(origin string) string {
	if c.any {
		return "*"
	}
	if origin != "" && slices.Contains(c.origins, origin) {
		return origin
	}
	return ""
}

func (c corsHeaders) apply(origin string, set func(name, value string)) {
	allowed := c.allowOrigin(origin)
	if !c.any {
		set("Vary", "Origin")
	}
	if allowed == "" {
		return
	}
	set("Access-Control-Allow-Origin", allowed)
	set("Access-Control-Allow-Methods", c.methods)
	set("Access-Control-Allow-Headers", c.headers)
	if c.expose != "" {
		set("Access-Control-Expose-Headers", c.expose)
	}
	set("Access-Control-Max-Age", c.maxAge)
}

// NewCORSMiddleware creates CORS middleware with the given configuration
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	cors := newCORSHeaders(config)

	return func(ctx huma.Context, next func(huma.Context)) {
		cors.apply(ctx.Header("Origin"), ctx.SetHeader)

		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler answers preflight requests on the mux. Huma middleware only
// runs for registered operations, so OPTIONS never reaches it.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	cors := newCORSHeaders(config)

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		cors.apply(r.Header.Get("Origin"), w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
	// Without a method-less catch-all the mux answers unknown paths with
	// 405, since "OPTIONS /" matches them for another method.
	mux.HandleFunc("/", http.NotFound)
}
