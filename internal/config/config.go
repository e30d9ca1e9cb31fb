// Package config loads service settings. Values start from defaults, are
// overlaid by the YAML file named in CONFIG_PATH, and then by environment
// variables (optionally seeded from a local .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type Cache struct {
	Static          string   `yaml:"static" validate:"required"`
	Dynamic         string   `yaml:"dynamic" validate:"required,nefield=Static"`
	DynamicLimit    int      `yaml:"dynamic_limit" validate:"gt=0"`
	Precache        []string `yaml:"precache" validate:"dive,required"`
	OfflinePage     string   `yaml:"offline_page"`
	ImageExtensions []string `yaml:"image_extensions" validate:"dive,required"`
}

type Storage struct {
	Backend       string `yaml:"backend" validate:"oneof=memory postgres redis"`
	DatabaseURL   string `yaml:"database_url" validate:"required_if=Backend postgres"`
	RedisAddr     string `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

type Edge struct {
	Port          string        `yaml:"port" validate:"required,numeric"`
	LogLevel      string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	OriginURL     string        `yaml:"origin_url" validate:"required,url"`
	OriginTimeout time.Duration `yaml:"origin_timeout" validate:"gt=0"`
	PushSecret    string        `yaml:"push_secret" validate:"required,min=32"`
	PushRateLimit int           `yaml:"push_rate_limit" validate:"gt=0"`
	TrustProxy    bool          `yaml:"trust_proxy"`
	Cache         Cache         `yaml:"cache"`
	Storage       Storage       `yaml:"storage"`
	Metrics       Metrics       `yaml:"metrics"`
}

type Storefront struct {
	Port            string        `yaml:"port" validate:"required,numeric"`
	LogLevel        string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	DatabaseURL     string        `yaml:"database_url"`
	SessionHashKey  string        `yaml:"session_hash_key" validate:"required,min=32"`
	SessionBlockKey string        `yaml:"session_block_key" validate:"omitempty,len=32"`
	SecureCookies   bool          `yaml:"secure_cookies"`
	CartTTL         time.Duration `yaml:"cart_ttl" validate:"gt=0"`
	CartMaxSessions int           `yaml:"cart_max_sessions" validate:"gt=0"`
	Metrics         Metrics       `yaml:"metrics"`
}

func DefaultEdge() Edge {
	return Edge{
		Port:          "8080",
		LogLevel:      "info",
		OriginURL:     "http://storefront:8081",
		OriginTimeout: 5 * time.Second,
		PushRateLimit: 30,
		Cache: Cache{
			Static:       "ecommerce-pwa-cache-v1",
			Dynamic:      "ecommerce-dynamic-cache-v1",
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
		},
		Storage: Storage{
			Backend:     "memory",
			RedisPrefix: "sw",
		},
		Metrics: Metrics{Enabled: true},
	}
}

func DefaultStorefront() Storefront {
	return Storefront{
		Port:            "8081",
		LogLevel:        "info",
		CartTTL:         24 * time.Hour,
		CartMaxSessions: 10000,
		Metrics:         Metrics{Enabled: true},
	}
}

func LoadEdge() (*Edge, error) {
	cfg := DefaultEdge()
	if err := load(&cfg); err != nil {
		return nil, err
	}

	var errs []error
	envString(&cfg.Port, "PORT")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	envString(&cfg.OriginURL, "ORIGIN_URL")
	errs = append(errs, envDuration(&cfg.OriginTimeout, "ORIGIN_TIMEOUT"))
	envString(&cfg.PushSecret, "PUSH_SECRET")
	errs = append(errs, envInt(&cfg.PushRateLimit, "PUSH_RATE_LIMIT"))
	errs = append(errs, envBool(&cfg.TrustProxy, "TRUST_PROXY"))

	envString(&cfg.Cache.Static, "STATIC_CACHE")
	envString(&cfg.Cache.Dynamic, "DYNAMIC_CACHE")
	errs = append(errs, envInt(&cfg.Cache.DynamicLimit, "DYNAMIC_CACHE_LIMIT"))
	envList(&cfg.Cache.Precache, "PRECACHE_URLS")
	envString(&cfg.Cache.OfflinePage, "OFFLINE_PAGE")

	envString(&cfg.Storage.Backend, "CACHE_BACKEND")
	envString(&cfg.Storage.DatabaseURL, "DATABASE_URL")
	envString(&cfg.Storage.RedisAddr, "REDIS_ADDR")
	envString(&cfg.Storage.RedisPassword, "REDIS_PASSWORD")
	errs = append(errs, envInt(&cfg.Storage.RedisDB, "REDIS_DB"))
	envString(&cfg.Storage.RedisPrefix, "REDIS_PREFIX")

	errs = append(errs, envBool(&cfg.Metrics.Enabled, "METRICS_ENABLED"))
	envString(&cfg.Metrics.Token, "METRICS_TOKEN")

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func LoadStorefront() (*Storefront, error) {
	cfg := DefaultStorefront()
	if err := load(&cfg); err != nil {
		return nil, err
	}

	var errs []error
	envString(&cfg.Port, "PORT")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	envString(&cfg.DatabaseURL, "DATABASE_URL")
	envString(&cfg.SessionHashKey, "SESSION_HASH_KEY")
	envString(&cfg.SessionBlockKey, "SESSION_BLOCK_KEY")
	errs = append(errs, envBool(&cfg.SecureCookies, "SECURE_COOKIES"))
	errs = append(errs, envDuration(&cfg.CartTTL, "CART_TTL"))
	errs = append(errs, envInt(&cfg.CartMaxSessions, "CART_MAX_SESSIONS"))
	errs = append(errs, envBool(&cfg.Metrics.Enabled, "METRICS_ENABLED"))
	envString(&cfg.Metrics.Token, "METRICS_TOKEN")

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// load applies .env and the CONFIG_PATH file, in that order.
func load(cfg any) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("config: load .env: %w", err)
		}
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	out := make([]string, 0, strings.Count(v, ",")+1)
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func envInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
