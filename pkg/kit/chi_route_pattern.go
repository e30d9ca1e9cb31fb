package kit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// catchAllLabel keeps the path label bounded for proxied traffic.
const catchAllLabel = "/*"

func ChiRoutePatternOrPath(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if rp := rctx.RoutePattern(); rp != "" {
		return rp
	}
	return r.URL.Path
}

// ChiRoutePatternOrCatchAll is like ChiRoutePatternOrPath but never returns a
// raw request path, so arbitrary intercepted URLs do not explode label
// cardinality.
func ChiRoutePatternOrCatchAll(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if rp := rctx.RoutePattern(); rp != "" {
			return rp
		}
	}
	return catchAllLabel
}
