package main

import (
	"context"
	"database/sql"
	"errors"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"AwesomeShop/internal/cachestore"
	"AwesomeShop/internal/clients"
	"AwesomeShop/internal/config"
	"AwesomeShop/internal/edge"
	"AwesomeShop/internal/push"
	"AwesomeShop/internal/worker"
	"AwesomeShop/pkg/kit"
)

const startRetry = 5 * time.Second

func main() {
	service := "edge"

	cfg, err := config.LoadEdge()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, closeStorage := cacheStorage(ctx, cfg.Storage, log)
	defer closeStorage()

	network, err := worker.NewOriginNetwork(cfg.OriginURL, cfg.OriginTimeout)
	if err != nil {
		log.Fatal("init origin network failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	windows := clients.NewRegistry()

	w, err := worker.New(workerConfig(cfg.Cache), worker.Deps{
		Storage: storage,
		Network: network,
		Clients: windows,
		Log:     log.Named("worker"),
		Metrics: worker.NewMetrics(reg),
	})
	if err != nil {
		log.Fatal("init worker failed", zap.Error(err))
	}

	center := push.NewCenter()
	push.NewRelay(center, windows, log.Named("push")).Register(w)

	h, err := edge.NewHandler(
		edge.Deps{
			Worker:        w,
			Center:        center,
			Clients:       windows,
			Tokens:        push.NewTokenMaker(cfg.PushSecret),
			OriginURL:     cfg.OriginURL,
			PushRateLimit: cfg.PushRateLimit,
			TrustProxy:    cfg.TrustProxy,
		},
		edge.HTTPDeps{
			Log:            log,
			Service:        service,
			Registry:       reg,
			MetricsEnabled: cfg.Metrics.Enabled,
			MetricsToken:   cfg.Metrics.Token,
		},
	)
	if err != nil {
		log.Fatal("init edge handler failed", zap.Error(err))
	}

	go func() {
		if err := edge.StartWorker(ctx, w, log, startRetry); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker never activated", zap.Error(err))
		}
	}()

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func workerConfig(c config.Cache) worker.Config {
	return worker.Config{
		StaticCache:     c.Static,
		DynamicCache:    c.Dynamic,
		DynamicLimit:    c.DynamicLimit,
		Precache:        c.Precache,
		OfflinePage:     c.OfflinePage,
		ImageExtensions: c.ImageExtensions,
	}
}

func cacheStorage(ctx context.Context, c config.Storage, log *zap.Logger) (cachestore.Storage, func()) {
	switch c.Backend {
	case "postgres":
		db, err := sql.Open("pgx", c.DatabaseURL)
		if err != nil {
			log.Fatal("open database failed", zap.Error(err))
		}
		s := cachestore.NewPostgres(db)
		if err := s.EnsureSchema(ctx); err != nil {
			log.Fatal("cache schema failed", zap.Error(err))
		}
		log.Info("cache storage: postgres")
		return s, func() { _ = db.Close() }

	case "redis":
		s := cachestore.NewRedis(cachestore.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
		})
		if err := s.Ping(ctx); err != nil {
			log.Fatal("redis unreachable", zap.Error(err))
		}
		log.Info("cache storage: redis", zap.String("addr", c.RedisAddr))
		return s, func() { _ = s.Close() }

	default:
		log.Info("cache storage: memory")
		return cachestore.NewMemory(), func() {}
	}
}
