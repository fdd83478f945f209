package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routePattern is the chi pattern that matched r, read after routing.
// Requests that matched nothing share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
