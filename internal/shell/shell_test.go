package shell_test

import (
	"bytes"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"AwesomeShop/internal/catalog"
	"AwesomeShop/internal/shell"
)

func newShellTS(t *testing.T) *httptest.Server {
	t.Helper()

	s, err := shell.New(catalog.NewMemStore(), zap.NewNop())
	if err != nil {
		t.Fatalf("shell.New: %v", err)
	}
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func fetchBody(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp, b
}

func TestShell_ServesEveryPrecachedAsset(t *testing.T) {
	ts := newShellTS(t)

	paths := []string{"/", "/index.html", "/app.js", "/manifest.json", "/offline.html"}
	for _, size := range shell.IconSizes {
		paths = append(paths, shell.IconPath(size))
	}

	for _, p := range paths {
		resp, _ := fetchBody(t, ts.URL+p)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status=%d", p, resp.StatusCode)
		}
		if resp.Header.Get("ETag") == "" {
			t.Fatalf("%s: missing etag", p)
		}
	}
}

func TestShell_IndexRendersProductGrid(t *testing.T) {
	ts := newShellTS(t)

	_, body := fetchBody(t, ts.URL+"/")
	page := string(body)

	for _, want := range []string{
		`data-product-id="1"`,
		`data-product-id="8"`,
		"Premium Noise-Cancelling Headphones",
		"$249.99",
		"Expand your laptop&#39;s connectivity with ease.",
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestShell_ConditionalGet(t *testing.T) {
	ts := newShellTS(t)

	resp, _ := fetchBody(t, ts.URL+"/app.js")
	tag := resp.Header.Get("ETag")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/app.js", nil)
	req.Header.Set("If-None-Match", tag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp2.Body.Close()

	if resp2.StatusCode != http.StatusNotModified {
		t.Fatalf("status=%d", resp2.StatusCode)
	}
}

func TestIcon_HasRequestedSize(t *testing.T) {
	for _, size := range shell.IconSizes {
		b, err := shell.Icon(size)
		if err != nil {
			t.Fatalf("icon %d: %v", size, err)
		}
		img, err := png.Decode(bytes.NewReader(b))
		if err != nil {
			t.Fatalf("decode %d: %v", size, err)
		}
		if got := img.Bounds().Dx(); got != size {
			t.Fatalf("width=%d want=%d", got, size)
		}
	}

	if _, err := shell.Icon(0); err == nil {
		t.Fatalf("expected error for zero size")
	}
}
