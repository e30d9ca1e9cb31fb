// Package shell serves the storefront's app shell: the product page, the
// page script, the web app manifest, the offline page and the icon set.
package shell

import (
	"bytes"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"AwesomeShop/internal/catalog"
	"AwesomeShop/pkg/kit"
)

//go:embed static
var static embed.FS

// IconSizes are the square icon sizes, in pixels, the manifest references.
var IconSizes = []int{72, 96, 128, 144, 152, 192, 384, 512}

type asset struct {
	contentType string
	body        []byte
	etag        string
}

func newAsset(contentType string, body []byte) asset {
	return asset{contentType: contentType, body: body, etag: etag(body)}
}

type Shell struct {
	catalog catalog.Store
	page    *template.Template
	assets  map[string]asset
	log     *zap.Logger
}

func New(products catalog.Store, log *zap.Logger) (*Shell, error) {
	if log == nil {
		log = zap.NewNop()
	}

	page, err := template.ParseFS(static, "static/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("shell: parse page: %w", err)
	}

	s := &Shell{
		catalog: products,
		page:    page,
		assets:  make(map[string]asset),
		log:     log,
	}

	files := map[string]string{
		"/app.js":        "text/javascript; charset=utf-8",
		"/manifest.json": "application/manifest+json",
		"/offline.html":  "text/html; charset=utf-8",
	}
	for path, ct := range files {
		b, err := static.ReadFile("static" + path)
		if err != nil {
			return nil, fmt.Errorf("shell: read %s: %w", path, err)
		}
		s.assets[path] = newAsset(ct, b)
	}

	for _, size := range IconSizes {
		b, err := Icon(size)
		if err != nil {
			return nil, fmt.Errorf("shell: icon %d: %w", size, err)
		}
		s.assets[IconPath(size)] = newAsset("image/png", b)
	}

	return s, nil
}

func IconPath(size int) string {
	return fmt.Sprintf("/images/icons/icon-%dx%d.png", size, size)
}

func (s *Shell) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.index)
	r.Get("/index.html", s.index)
	for path, a := range s.assets {
		r.Get(path, serveAsset(a))
	}

	return r
}

func (s *Shell) index(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.List(r.Context())
	if err != nil {
		s.log.Error("render page: list products failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, struct{ Products []catalog.Product }{products}); err != nil {
		s.log.Error("render page failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	serveAsset(newAsset("text/html; charset=utf-8", buf.Bytes()))(w, r)
}

func serveAsset(a asset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", a.etag)
		w.Header().Set("Content-Type", a.contentType)
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(a.body))
	}
}

func etag(b []byte) string {
	sum := blake2b.Sum256(b)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
