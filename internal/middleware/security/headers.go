package security

import (
	"fmt"
	"net/http"
	"strings"
)

// HeadersConfig holds response header configuration for the API
type HeadersConfig struct {
	// CORS
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int

	// HSTS settings
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XContentTypeOptions string
	ReferrerPolicy      string
}

// DefaultHeadersConfig allows any origin; the sync client runs wherever the
// traveler is.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		AllowOrigin:  "*",
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:       600,

		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,

		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
	}
}

// HeadersMiddleware applies CORS and security headers to responses
type HeadersMiddleware struct {
	config HeadersConfig
}

// NewHeadersMiddleware creates a new headers middleware
func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	if config.AllowOrigin == "" {
		config.AllowOrigin = "*"
	}
	return &HeadersMiddleware{
		config: config,
	}
}

// Middleware returns the HTTP middleware function. Preflight requests are
// answered with 204 and never reach next.
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w, r)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(w http.ResponseWriter, r *http.Request) {
	headers := w.Header()

	headers.Set("Access-Control-Allow-Origin", h.config.AllowOrigin)
	if h.config.AllowOrigin != "*" {
		headers.Add("Vary", "Origin")
	}
	if len(h.config.AllowMethods) > 0 {
		headers.Set("Access-Control-Allow-Methods", strings.Join(h.config.AllowMethods, ", "))
	}
	if len(h.config.AllowHeaders) > 0 {
		headers.Set("Access-Control-Allow-Headers", strings.Join(h.config.AllowHeaders, ", "))
	}
	headers.Set("Access-Control-Expose-Headers", "X-Request-ID")
	if h.config.MaxAge > 0 {
		headers.Set("Access-Control-Max-Age", fmt.Sprintf("%d", h.config.MaxAge))
	}

	if h.config.XContentTypeOptions != "" {
		headers.Set("X-Content-Type-Options", h.config.XContentTypeOptions)
	}
	if h.config.ReferrerPolicy != "" {
		headers.Set("Referrer-Policy", h.config.ReferrerPolicy)
	}

	// HSTS header (only for HTTPS)
	if r.TLS != nil && h.config.HSTSMaxAge > 0 {
		hstsValue := fmt.Sprintf("max-age=%d", h.config.HSTSMaxAge)
		if h.config.HSTSIncludeSubdomains {
			hstsValue += "; includeSubDomains"
		}
		headers.Set("Strict-Transport-Security", hstsValue)
	}
}

// StaticAssetMiddleware adds caching headers for stored receipt images
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}
