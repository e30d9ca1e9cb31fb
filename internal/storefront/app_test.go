package storefront_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"AwesomeShop/internal/cart"
	"AwesomeShop/internal/catalog"
	"AwesomeShop/internal/storefront"
)

const metricsToken = "scrape-token"

func newStorefrontTS(t *testing.T) *httptest.Server {
	t.Helper()

	sessions, err := cart.NewSessions([]byte("0123456789abcdef0123456789abcdef"), nil, false, zap.NewNop())
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}

	h, err := storefront.NewHandler(
		storefront.Deps{
			Catalog:  catalog.NewMemStore(),
			Cart:     cart.NewMemStore(0, 0),
			Sessions: sessions,
		},
		storefront.HTTPDeps{
			Log:            zap.NewNop(),
			Service:        "storefront",
			Registry:       prometheus.NewRegistry(),
			MetricsEnabled: true,
			MetricsToken:   metricsToken,
		},
	)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func status(t *testing.T, c *http.Client, method, url, body string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func TestStorefront_Routes(t *testing.T) {
	ts := newStorefrontTS(t)
	c := ts.Client()

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/index.html", "", http.StatusOK},
		{http.MethodGet, "/offline.html", "", http.StatusOK},
		{http.MethodGet, "/images/icons/icon-512x512.png", "", http.StatusOK},
		{http.MethodGet, "/api/products", "", http.StatusOK},
		{http.MethodGet, "/api/products/2", "", http.StatusOK},
		{http.MethodGet, "/api/products/9", "", http.StatusNotFound},
		{http.MethodGet, "/api/cart", "", http.StatusOK},
		{http.MethodPost, "/api/push/subscribe", `{}`, http.StatusAccepted},
		{http.MethodGet, "/nope.html", "", http.StatusNotFound},
		{http.MethodGet, "/metrics", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		got, _ := status(t, c, tt.method, ts.URL+tt.path, tt.body)
		if got != tt.want {
			t.Fatalf("%s %s: status=%d want=%d", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestStorefront_AddToCartThenRead(t *testing.T) {
	ts := newStorefrontTS(t)

	jar, _ := cookiejar.New(nil)
	c := &http.Client{Jar: jar}

	code, body := status(t, c, http.MethodPost, ts.URL+"/api/cart/items", `{"product_id":5}`)
	if code != http.StatusCreated {
		t.Fatalf("add status=%d body=%s", code, body)
	}
	if !strings.Contains(string(body), "Ergonomic RGB Gaming Mouse added to cart!") {
		t.Fatalf("body=%s", body)
	}

	_, body = status(t, c, http.MethodGet, ts.URL+"/api/cart", "")
	var v cart.View
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Count != 1 || v.Items[0].ID != 5 {
		t.Fatalf("cart=%+v", v)
	}
}

func TestStorefront_MetricsWithToken(t *testing.T) {
	ts := newStorefrontTS(t)

	_, _ = status(t, ts.Client(), http.MethodGet, ts.URL+"/api/products", "")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+metricsToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if !strings.Contains(string(b), `path="/api/products`) {
		t.Fatalf("request metric missing:\n%s", b)
	}
}
