package edge

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"AwesomeShop/internal/push"
	"AwesomeShop/internal/worker"
	"AwesomeShop/pkg/kit"
)

type ctxKey string

const senderKey ctxKey = "push_sender"

// SourcePassthrough marks responses proxied before the worker took control.
const SourcePassthrough worker.Source = "passthrough"

func SenderFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(senderKey).(string)
	return v, ok
}

// AuthPush admits push deliveries that carry a valid producer token.
func AuthPush(tokens *push.TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := kit.BearerToken(r)
			if !ok {
				kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
				return
			}
			claims, err := tokens.Parse(tok)
			if err != nil {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), senderKey, claims.Sender)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewReverseProxy forwards uncontrolled traffic straight to the origin.
func NewReverseProxy(target string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("origin unreachable", zap.String("path", r.URL.Path), zap.Error(err))
		kit.WriteError(w, r, http.StatusBadGateway, "origin unreachable", nil)
	}
	return p, nil
}
