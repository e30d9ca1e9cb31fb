package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"AwesomeShop/internal/cart"
	"AwesomeShop/internal/catalog"
	"AwesomeShop/internal/config"
	"AwesomeShop/internal/storefront"
	"AwesomeShop/pkg/kit"
)

func main() {
	service := "storefront"

	cfg, err := config.LoadStorefront()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	products, closeDB := catalogStore(ctx, cfg.DatabaseURL, log)
	defer closeDB()

	var blockKey []byte
	if cfg.SessionBlockKey != "" {
		blockKey = []byte(cfg.SessionBlockKey)
	}
	sessions, err := cart.NewSessions([]byte(cfg.SessionHashKey), blockKey, cfg.SecureCookies, log)
	if err != nil {
		log.Fatal("init sessions failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	h, err := storefront.NewHandler(
		storefront.Deps{
			Catalog:  products,
			Cart:     cart.NewMemStore(cfg.CartTTL, cfg.CartMaxSessions),
			Sessions: sessions,
		},
		storefront.HTTPDeps{
			Log:            log,
			Service:        service,
			Registry:       reg,
			MetricsEnabled: cfg.Metrics.Enabled,
			MetricsToken:   cfg.Metrics.Token,
		},
	)
	if err != nil {
		log.Fatal("init storefront handler failed", zap.Error(err))
	}

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

// catalogStore uses Postgres when a database URL is configured and the
// built-in assortment otherwise.
func catalogStore(ctx context.Context, dsn string, log *zap.Logger) (catalog.Store, func()) {
	if dsn == "" {
		log.Info("catalog store: memory")
		return catalog.NewMemStore(), func() {}
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("open database failed", zap.Error(err))
	}

	store := catalog.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal("catalog schema failed", zap.Error(err))
	}
	log.Info("catalog store: postgres")
	return store, func() { _ = db.Close() }
}
