// Package edge is the HTTP face of the worker: it intercepts every page
// request in front of the storefront origin and exposes the worker's
// lifecycle, push delivery and page registry under /_sw.
package edge

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"AwesomeShop/internal/clients"
	"AwesomeShop/internal/push"
	"AwesomeShop/internal/worker"
	"AwesomeShop/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

type Deps struct {
	Worker  *worker.Worker
	Center  *push.Center
	Clients *clients.Registry
	Tokens  *push.TokenMaker

	OriginURL     string
	PushRateLimit int
	TrustProxy    bool
}

const pushRateWindow = time.Minute

func NewHandler(deps Deps, httpDeps HTTPDeps) (http.Handler, error) {
	passthrough, err := NewReverseProxy(deps.OriginURL, httpDeps.Log)
	if err != nil {
		return nil, err
	}

	sw := &swServer{
		worker:  deps.Worker,
		center:  deps.Center,
		clients: deps.Clients,
		log:     httpDeps.Log,
	}
	if sw.log == nil {
		sw.log = zap.NewNop()
	}

	r := chi.NewRouter()
	setupMiddleware(r, httpDeps)
	setupMetrics(r, httpDeps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps.Worker))

	r.Route("/_sw", func(sr chi.Router) {
		sr.Get("/status", sw.status)
		sr.Post("/update", sw.update)

		sr.Get("/notifications", sw.listNotifications)
		sr.Post("/notifications/{id}/click", sw.click)

		sr.Get("/clients", sw.listClients)
		sr.Post("/clients", sw.registerClient)
		sr.Get("/clients/{id}", sw.getClient)
		sr.Put("/clients/{id}", sw.navigateClient)
		sr.Delete("/clients/{id}", sw.closeClient)

		sr.Group(func(pr chi.Router) {
			limiter := kit.NewIPRateLimiter(deps.PushRateLimit, pushRateWindow).TrustProxy(deps.TrustProxy)
			pr.Use(limiter.Middleware)
			pr.Use(AuthPush(deps.Tokens))
			pr.Post("/push", sw.push)
		})
	})

	r.Handle("/*", intercept(deps.Worker, passthrough, httpDeps.Log))

	return r, nil
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrCatchAll))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// readyz reports ready once the worker controls traffic and its cache
// storage still holds the app shell.
func readyz(w *worker.Worker) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := w.Ready(r.Context()); err != nil {
			kit.WriteError(rw, r, http.StatusServiceUnavailable, "worker not ready",
				map[string]string{"state": w.State().String(), "reason": err.Error()})
			return
		}
		rw.WriteHeader(http.StatusOK)
	}
}

// intercept sends requests through the worker once it is active and
// straight to the origin before that.
func intercept(w *worker.Worker, passthrough http.Handler, log *zap.Logger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !w.Controlling() {
			rw.Header().Set(worker.SourceHeader, string(SourcePassthrough))
			passthrough.ServeHTTP(rw, r)
			return
		}

		resp, err := w.Fetch(r.Context(), r)
		if err != nil {
			if log != nil {
				log.Error("fetch event failed", zap.String("path", r.URL.Path), zap.Error(err))
			}
			kit.WriteError(rw, r, http.StatusBadGateway, "fetch failed", nil)
			return
		}
		resp.Write(rw, r)
	}
}
