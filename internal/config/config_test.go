package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"AwesomeShop/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadEdge_DefaultsWithEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PUSH_SECRET", testSecret)
	t.Setenv("DYNAMIC_CACHE_LIMIT", "5")
	t.Setenv("PRECACHE_URLS", "/, /app.js ,")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := config.LoadEdge()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cache.DynamicLimit != 5 || !cfg.TrustProxy {
		t.Fatalf("limit=%d trust_proxy=%v", cfg.Cache.DynamicLimit, cfg.TrustProxy)
	}
	if len(cfg.Cache.Precache) != 2 || cfg.Cache.Precache[1] != "/app.js" {
		t.Fatalf("precache=%v", cfg.Cache.Precache)
	}
	if cfg.Cache.Static != "ecommerce-pwa-cache-v1" || cfg.Storage.Backend != "memory" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadEdge_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edge.yaml")
	data := `
port: "9090"
origin_url: http://localhost:8081
origin_timeout: 2s
push_secret: ` + testSecret + `
cache:
  dynamic_limit: 7
storage:
  backend: redis
  redis_addr: localhost:6379
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "9191")

	cfg, err := config.LoadEdge()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9191" {
		t.Fatalf("env should win over yaml, port=%s", cfg.Port)
	}
	if cfg.OriginTimeout != 2*time.Second || cfg.Cache.DynamicLimit != 7 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Cache.Dynamic != "ecommerce-dynamic-cache-v1" {
		t.Fatalf("unset yaml keys should keep defaults, dynamic=%q", cfg.Cache.Dynamic)
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.RedisAddr != "localhost:6379" {
		t.Fatalf("storage=%+v", cfg.Storage)
	}
}

func TestLoadEdge_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"short push secret", map[string]string{"PUSH_SECRET": "short"}, "PushSecret"},
		{"postgres without url", map[string]string{"PUSH_SECRET": testSecret, "CACHE_BACKEND": "postgres"}, "DatabaseURL"},
		{"unknown backend", map[string]string{"PUSH_SECRET": testSecret, "CACHE_BACKEND": "etcd"}, "Backend"},
		{"same cache names", map[string]string{"PUSH_SECRET": testSecret, "DYNAMIC_CACHE": "ecommerce-pwa-cache-v1"}, "Dynamic"},
		{"bad int", map[string]string{"PUSH_SECRET": testSecret, "DYNAMIC_CACHE_LIMIT": "many"}, "DYNAMIC_CACHE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_PATH", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadEdge()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err=%v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadStorefront(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("SESSION_HASH_KEY", testSecret)
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("CART_TTL", "30m")

	cfg, err := config.LoadStorefront()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8081" || !cfg.SecureCookies {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.CartTTL != 30*time.Minute || cfg.CartMaxSessions != 10000 {
		t.Fatalf("cart ttl=%s max=%d", cfg.CartTTL, cfg.CartMaxSessions)
	}

	t.Setenv("SESSION_BLOCK_KEY", "too-short")
	if _, err := config.LoadStorefront(); err == nil {
		t.Fatalf("expected error for bad block key")
	}
}
