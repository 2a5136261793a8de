package server

import (
	"net/http"
	"strings"
)

// apiSecurityHeaders locks down JSON responses: nothing here is meant to be
// framed, sniffed or rendered as a document.
func apiSecurityHeaders(baseURL string) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(baseURL, "https://")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cache-Control", "no-store")
			if strictTransport {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
