package worker

import (
	"context"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"
)

const (
	strategyCacheFirst   = "cache_first"
	strategyNetworkFirst = "network_first"
)

// CacheKey is the key a request is stored under: the request URI for
// same-origin requests, the full URL for absolute ones.
func CacheKey(r *http.Request) string {
	if r.URL.IsAbs() && r.URL.Host != "" {
		return r.URL.String()
	}
	return r.URL.RequestURI()
}

// IsNavigation reports a top-level page load.
func IsNavigation(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Mode") {
	case "navigate":
		return true
	case "":
		return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
	default:
		return false
	}
}

func (w *Worker) isStatic(r *http.Request) bool {
	if _, ok := w.precache[CacheKey(r)]; ok {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(r.URL.Path)), ".")
	_, ok := w.images[ext]
	return ok
}

func cacheable(r *http.Request) bool {
	return r.Method == http.MethodGet
}

// noStore reports responses the origin marked as per-session.
func noStore(h http.Header) bool {
	for _, v := range h.Values("Cache-Control") {
		for _, d := range strings.Split(v, ",") {
			switch strings.ToLower(strings.TrimSpace(d)) {
			case "no-store", "private":
				return true
			}
		}
	}
	return false
}

func (w *Worker) cacheFirst(ctx context.Context, r *http.Request) *Response {
	key := CacheKey(r)

	if cacheable(r) {
		if resp, ok := w.match(ctx, key); ok {
			w.log.Debug("serving from cache", zap.String("url", key))
			return w.done(strategyCacheFirst, resp)
		}
	}

	resp, err := w.net.Do(ctx, r)
	if err != nil {
		w.log.Warn("fetch failed", zap.String("url", key), zap.Error(err))
		return w.done(strategyCacheFirst, w.fallback(ctx, r))
	}

	w.store(ctx, r, key, resp)
	return w.done(strategyCacheFirst, resp)
}

func (w *Worker) networkFirst(ctx context.Context, r *http.Request) *Response {
	key := CacheKey(r)

	resp, err := w.net.Do(ctx, r)
	if err == nil {
		w.store(ctx, r, key, resp)
		return w.done(strategyNetworkFirst, resp)
	}

	if cacheable(r) {
		if cached, ok := w.match(ctx, key); ok {
			w.log.Info("network failed, serving from cache", zap.String("url", key), zap.Error(err))
			return w.done(strategyNetworkFirst, cached)
		}
	}

	w.log.Warn("network and cache failed", zap.String("url", key), zap.Error(err))
	return w.done(strategyNetworkFirst, w.fallback(ctx, r))
}

// fallback is the last resort once both cache and network failed.
func (w *Worker) fallback(ctx context.Context, r *http.Request) *Response {
	if IsNavigation(r) && w.cfg.OfflinePage != "" {
		if page, ok := w.match(ctx, w.cfg.OfflinePage); ok {
			page.Source = SourceOffline
			return page
		}
		w.log.Warn("offline page missing from cache", zap.String("page", w.cfg.OfflinePage))
	}
	return notFound()
}

func (w *Worker) match(ctx context.Context, key string) (*Response, bool) {
	e, ok, err := w.storage.Match(ctx, key)
	if err != nil {
		w.log.Warn("cache match failed", zap.String("url", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return fromEntry(e, SourceCache), true
}

// store puts a successful response into the dynamic cache and trims it to
// the configured limit in the same step.
func (w *Worker) store(ctx context.Context, r *http.Request, key string, resp *Response) {
	if !cacheable(r) || !resp.OK() || noStore(resp.Header) {
		return
	}

	cache, err := w.storage.Open(ctx, w.cfg.DynamicCache)
	if err != nil {
		w.log.Warn("open dynamic cache failed", zap.Error(err))
		return
	}

	evicted, err := cache.Put(ctx, resp.entry(key), w.cfg.DynamicLimit)
	if err != nil {
		w.log.Warn("cache put failed", zap.String("url", key), zap.Error(err))
		return
	}
	if len(evicted) > 0 {
		w.metrics.Evictions.WithLabelValues(cache.Name()).Add(float64(len(evicted)))
		w.log.Debug("evicted", zap.String("cache", cache.Name()), zap.Strings("keys", evicted))
	}
}

func (w *Worker) done(strategy string, resp *Response) *Response {
	w.metrics.Fetches.WithLabelValues(strategy, string(resp.Source)).Inc()
	return resp
}
