package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecurityHeaders sets the standard hardening headers on every response.
// HTTPS redirects are only enforced in production.
func SecurityHeaders(isProduction bool) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           isProduction,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	}).Handler
}
