package cart_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"AwesomeShop/internal/cart"
	"AwesomeShop/internal/catalog"
)

var testHashKey = []byte("0123456789abcdef0123456789abcdef")

func newCartTS(t *testing.T) *httptest.Server {
	t.Helper()

	sessions, err := cart.NewSessions(testHashKey, nil, false, zap.NewNop())
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}

	s := &cart.Server{
		Catalog:  catalog.NewMemStore(),
		Store:    cart.NewMemStore(0, 0),
		Sessions: sessions,
		Log:      zap.NewNop(),
	}
	r := chi.NewRouter()
	r.Mount("/cart", s.Routes())

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func addItem(t *testing.T, c *http.Client, baseURL string, body string) (*http.Response, cart.AddResponse) {
	t.Helper()

	resp, err := c.Post(baseURL+"/cart/items", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out cart.AddResponse
	if resp.StatusCode == http.StatusCreated {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp, out
}

func getCart(t *testing.T, c *http.Client, baseURL string) cart.View {
	t.Helper()

	resp, err := c.Get(baseURL + "/cart")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Cache-Control") != "private, no-store" {
		t.Fatalf("cache-control=%q", resp.Header.Get("Cache-Control"))
	}

	var v cart.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestCart_AddAppendsAndReportsMessage(t *testing.T) {
	ts := newCartTS(t)
	browser := newBrowser(t)

	resp, out := addItem(t, browser, ts.URL, `{"product_id":3}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if out.Message != "Compact Portable Bluetooth Speaker added to cart!" {
		t.Fatalf("message=%q", out.Message)
	}

	_, out = addItem(t, browser, ts.URL, `{"product_id":3}`)
	if out.Count != 2 {
		t.Fatalf("duplicate add should append, count=%d", out.Count)
	}
	if out.Total.StringFixed(2) != "159.98" {
		t.Fatalf("total=%s", out.Total)
	}

	v := getCart(t, browser, ts.URL)
	if v.Count != 2 || len(v.Items) != 2 || v.Items[1].ID != 3 {
		t.Fatalf("cart=%+v", v)
	}
}

func TestCart_IsScopedToSession(t *testing.T) {
	ts := newCartTS(t)
	alice := newBrowser(t)
	bob := newBrowser(t)

	_, _ = addItem(t, alice, ts.URL, `{"product_id":1}`)

	if v := getCart(t, bob, ts.URL); v.Count != 0 {
		t.Fatalf("bob sees %d items", v.Count)
	}
	if v := getCart(t, alice, ts.URL); v.Count != 1 {
		t.Fatalf("alice sees %d items", v.Count)
	}
}

func TestCart_ForgedCookieStartsFreshSession(t *testing.T) {
	ts := newCartTS(t)
	browser := newBrowser(t)
	_, _ = addItem(t, browser, ts.URL, `{"product_id":1}`)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/cart", nil)
	req.AddCookie(&http.Cookie{Name: cart.SessionCookie, Value: "forged"})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var v cart.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Count != 0 {
		t.Fatalf("forged cookie reached a cart with %d items", v.Count)
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected a fresh session cookie")
	}
	if cookies[0].MaxAge != 0 || !cookies[0].Expires.IsZero() {
		t.Fatalf("session cookie should end with the browser session, max-age=%d expires=%v", cookies[0].MaxAge, cookies[0].Expires)
	}
}

func TestCart_AddRejectsBadInput(t *testing.T) {
	ts := newCartTS(t)
	browser := newBrowser(t)

	tests := []struct {
		body   string
		status int
	}{
		{`{"product_id":0}`, http.StatusBadRequest},
		{`{"product_id":-1}`, http.StatusBadRequest},
		{`{"product_id":"1"}`, http.StatusBadRequest},
		{`{"product_id":1,"qty":2}`, http.StatusBadRequest},
		{`{"product_id":42}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		resp, _ := addItem(t, browser, ts.URL, tt.body)
		if resp.StatusCode != tt.status {
			t.Fatalf("%s: status=%d want=%d", tt.body, resp.StatusCode, tt.status)
		}
	}
}

func TestNewSessions_RejectsShortKeys(t *testing.T) {
	if _, err := cart.NewSessions([]byte("short"), nil, false, nil); err == nil {
		t.Fatalf("expected error for short hash key")
	}
	if _, err := cart.NewSessions(testHashKey, []byte("bad"), false, nil); err == nil {
		t.Fatalf("expected error for bad block key")
	}
}
