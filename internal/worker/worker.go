// Package worker is the request-intercepting cache layer in front of the
// storefront origin. It follows the service worker lifecycle: install
// pre-caches the app shell, activate drops caches from older versions and
// claims open pages, and only then are fetch events handled.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"AwesomeShop/internal/cachestore"
)

type State int32

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	ErrInstall   = errors.New("install failed")
	ErrActivate  = errors.New("activate failed")
	ErrNoRequest = errors.New("fetch event without request")
	ErrNotReady  = errors.New("worker not ready")
)

const installConcurrency = 4

type Config struct {
	StaticCache     string
	DynamicCache    string
	DynamicLimit    int
	Precache        []string
	OfflinePage     string
	ImageExtensions []string
}

func DefaultConfig() Config {
	return Config{
		StaticCache:  "ecommerce-pwa-cache-v1",
		DynamicCache: "ecommerce-dynamic-cache-v1",
		DynamicLimit: 20,
		Precache: []string{
			"/",
			"/index.html",
			"/app.js",
			"/manifest.json",
			"/offline.html",
			"/images/icons/icon-72x72.png",
			"/images/icons/icon-96x96.png",
			"/images/icons/icon-128x128.png",
			"/images/icons/icon-144x144.png",
			"/images/icons/icon-152x152.png",
			"/images/icons/icon-192x192.png",
			"/images/icons/icon-384x384.png",
			"/images/icons/icon-512x512.png",
		},
		OfflinePage:     "/offline.html",
		ImageExtensions: []string{"jpeg", "jpg", "png", "gif", "webp"},
	}
}

func (c Config) validate() error {
	switch {
	case c.StaticCache == "" || c.DynamicCache == "":
		return errors.New("worker: cache names required")
	case c.StaticCache == c.DynamicCache:
		return errors.New("worker: static and dynamic cache names must differ")
	case c.DynamicLimit <= 0:
		return errors.New("worker: dynamic limit must be positive")
	}
	return nil
}

// Claimer takes control of every open page once the worker activates.
type Claimer interface {
	Claim() int
}

type Deps struct {
	Storage cachestore.Storage
	Network Network
	Clients Claimer
	Log     *zap.Logger
	Metrics *Metrics
}

type Worker struct {
	cfg     Config
	storage cachestore.Storage
	net     Network
	clients Claimer
	log     *zap.Logger
	metrics *Metrics

	precache map[string]struct{}
	images   map[string]struct{}

	events *Dispatcher

	lifecycle sync.Mutex
	state     atomic.Int32
}

func New(cfg Config, deps Deps) (*Worker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Storage == nil || deps.Network == nil {
		return nil, errors.New("worker: storage and network are required")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}

	w := &Worker{
		cfg:      cfg,
		storage:  deps.Storage,
		net:      deps.Network,
		clients:  deps.Clients,
		log:      deps.Log,
		metrics:  deps.Metrics,
		precache: make(map[string]struct{}, len(cfg.Precache)),
		images:   make(map[string]struct{}, len(cfg.ImageExtensions)),
		events:   NewDispatcher(),
	}
	for _, u := range cfg.Precache {
		w.precache[u] = struct{}{}
	}
	for _, ext := range cfg.ImageExtensions {
		w.images[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	w.events.Handle(EventInstall, w.handleInstall)
	w.events.Handle(EventActivate, w.handleActivate)
	w.events.Handle(EventFetch, w.handleFetch)
	return w, nil
}

func (w *Worker) Config() Config { return w.cfg }

func (w *Worker) State() State { return State(w.state.Load()) }

// Controlling reports whether fetch events are routed through the worker.
func (w *Worker) Controlling() bool { return w.State() == StateActivated }

func (w *Worker) Handle(kind EventKind, fn HandlerFunc) { w.events.Handle(kind, fn) }

func (w *Worker) Dispatch(ctx context.Context, ev Event) (Result, error) {
	return w.events.Dispatch(ctx, ev)
}

func (w *Worker) Events() []EventKind { return w.events.Kinds() }

// Start runs install then activate. A failed install leaves the worker
// redundant; calling Start again retries from scratch.
func (w *Worker) Start(ctx context.Context) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.State() == StateActivated {
		return nil
	}

	w.setState(StateInstalling)
	if _, err := w.events.Dispatch(ctx, Event{Kind: EventInstall}); err != nil {
		w.setState(StateRedundant)
		w.metrics.Lifecycle.WithLabelValues("install", "error").Inc()
		w.log.Error("install failed", zap.Error(err))
		return err
	}
	w.metrics.Lifecycle.WithLabelValues("install", "ok").Inc()
	w.setState(StateInstalled)

	w.setState(StateActivating)
	if _, err := w.events.Dispatch(ctx, Event{Kind: EventActivate}); err != nil {
		w.setState(StateRedundant)
		w.metrics.Lifecycle.WithLabelValues("activate", "error").Inc()
		w.log.Error("activate failed", zap.Error(err))
		return err
	}
	w.metrics.Lifecycle.WithLabelValues("activate", "ok").Inc()
	w.setState(StateActivated)
	return nil
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
	w.log.Debug("worker state", zap.Stringer("state", s))
}

// Fetch routes one intercepted request through the fetch handler.
func (w *Worker) Fetch(ctx context.Context, r *http.Request) (*Response, error) {
	res, err := w.events.Dispatch(ctx, Event{Kind: EventFetch, Request: r})
	if err != nil {
		return nil, err
	}
	return res.Response, nil
}

func (w *Worker) handleInstall(ctx context.Context, _ Event) (Result, error) {
	w.log.Info("caching app shell", zap.Int("assets", len(w.cfg.Precache)))

	entries := make([]cachestore.Entry, len(w.cfg.Precache))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(installConcurrency)
	for i, u := range w.cfg.Precache {
		i, u := i, u
		g.Go(func() error {
			e, err := w.fetchForInstall(gctx, u)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	cache, err := w.storage.Open(ctx, w.cfg.StaticCache)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInstall, err)
	}
	if err := cache.PutAll(ctx, entries); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInstall, err)
	}
	return Result{Value: len(entries)}, nil
}

func (w *Worker) fetchForInstall(ctx context.Context, rawURL string) (cachestore.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return cachestore.Entry{}, fmt.Errorf("%w: %s: %v", ErrInstall, rawURL, err)
	}

	resp, err := w.net.Do(ctx, req)
	if err != nil {
		return cachestore.Entry{}, fmt.Errorf("%w: %s: %v", ErrInstall, rawURL, err)
	}
	if !resp.OK() {
		return cachestore.Entry{}, fmt.Errorf("%w: %s: status=%d", ErrInstall, rawURL, resp.Status)
	}
	return resp.entry(rawURL), nil
}

func (w *Worker) handleActivate(ctx context.Context, _ Event) (Result, error) {
	names, err := w.storage.Names(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrActivate, err)
	}

	var removed []string
	for _, name := range names {
		if name == w.cfg.StaticCache || name == w.cfg.DynamicCache {
			continue
		}
		w.log.Info("removing old cache", zap.String("cache", name))
		if _, err := w.storage.Delete(ctx, name); err != nil {
			return Result{}, fmt.Errorf("%w: delete %q: %v", ErrActivate, name, err)
		}
		removed = append(removed, name)
	}

	if w.clients != nil {
		n := w.clients.Claim()
		w.log.Info("claimed clients", zap.Int("clients", n))
	}
	return Result{Value: removed}, nil
}

func (w *Worker) handleFetch(ctx context.Context, ev Event) (Result, error) {
	r := ev.Request
	if r == nil {
		return Result{}, ErrNoRequest
	}

	if w.isStatic(r) {
		return Result{Response: w.cacheFirst(ctx, r)}, nil
	}
	return Result{Response: w.networkFirst(ctx, r)}, nil
}

type CacheInfo struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

// Ready reports whether the worker controls traffic, its storage answers and
// the app shell cache is still present.
func (w *Worker) Ready(ctx context.Context) error {
	if !w.Controlling() {
		return fmt.Errorf("%w: state %s", ErrNotReady, w.State())
	}
	if err := w.storage.Ping(ctx); err != nil {
		return fmt.Errorf("%w: storage: %w", ErrNotReady, err)
	}
	ok, err := w.storage.Has(ctx, w.cfg.StaticCache)
	if err != nil {
		return fmt.Errorf("%w: storage: %w", ErrNotReady, err)
	}
	if !ok {
		return fmt.Errorf("%w: cache %q missing", ErrNotReady, w.cfg.StaticCache)
	}
	return nil
}

// Caches lists every cache namespace with its entry count, in creation order.
func (w *Worker) Caches(ctx context.Context) ([]CacheInfo, error) {
	names, err := w.storage.Names(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]CacheInfo, 0, len(names))
	for _, name := range names {
		c, err := w.storage.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		keys, err := c.Keys(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, CacheInfo{Name: name, Entries: len(keys)})
	}
	return out, nil
}
