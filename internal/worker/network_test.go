package worker_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"AwesomeShop/internal/worker"
)

func TestOriginNetwork_ForwardsToOrigin(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RequestURI() != "/shop/api/products?page=2" {
			t.Errorf("origin got %s", r.URL.RequestURI())
		}
		if r.Header.Get("X-Forwarded-Host") != "edge.local" {
			t.Errorf("forwarded host=%q", r.Header.Get("X-Forwarded-Host"))
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(append([]byte("echo:"), body...))
	}))
	t.Cleanup(origin.Close)

	n, err := worker.NewOriginNetwork(origin.URL+"/shop/", 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://edge.local/api/products?page=2", nil)
	req.URL.Scheme, req.URL.Host = "", ""
	req.RequestURI = ""

	resp, err := n.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.Status != http.StatusCreated || resp.Source != worker.SourceNetwork {
		t.Fatalf("status=%d source=%s", resp.Status, resp.Source)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("header=%v", resp.Header)
	}
}

func TestOriginNetwork_DropsConnectionListedHeaders(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Hop") != "" || r.Header.Get("X-Other-Hop") != "" {
			t.Errorf("connection-listed request headers forwarded: %v", r.Header)
		}
		if r.Header.Get("X-Keep") != "1" {
			t.Errorf("end-to-end header dropped: %v", r.Header)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(origin.Close)

	n, err := worker.NewOriginNetwork(origin.URL, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Connection", "X-Hop, x-other-hop")
	req.Header.Set("X-Hop", "1")
	req.Header.Set("X-Other-Hop", "1")
	req.Header.Set("X-Keep", "1")
	if _, err := n.Do(context.Background(), req); err != nil {
		t.Fatalf("do: %v", err)
	}
}

func TestResponse_WriteDropsConnectionListedHeaders(t *testing.T) {
	resp := &worker.Response{
		Status: http.StatusOK,
		Header: http.Header{
			"Connection":   {"X-Hop"},
			"X-Hop":        {"1"},
			"Content-Type": {"text/plain"},
		},
		Body:   []byte("ok"),
		Source: worker.SourceCache,
	}

	rec := httptest.NewRecorder()
	resp.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Hop") != "" || rec.Header().Get("Connection") != "" {
		t.Fatalf("hop headers written: %v", rec.Header())
	}
	if rec.Header().Get("Content-Type") != "text/plain" {
		t.Fatalf("header=%v", rec.Header())
	}
}

func TestOriginNetwork_ConnectionRefusedIsNetworkError(t *testing.T) {
	origin := httptest.NewServer(http.NotFoundHandler())
	url := origin.URL
	origin.Close()

	n, err := worker.NewOriginNetwork(url, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = n.Do(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !errors.Is(err, worker.ErrNetwork) {
		t.Fatalf("err=%v want ErrNetwork", err)
	}
}

func TestNewOriginNetwork_RequiresAbsoluteURL(t *testing.T) {
	if _, err := worker.NewOriginNetwork("/relative", 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIsNavigation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		mode   string
		accept string
		want   bool
	}{
		{"fetch metadata navigate", http.MethodGet, "navigate", "", true},
		{"fetch metadata cors", http.MethodGet, "cors", "text/html", false},
		{"legacy html get", http.MethodGet, "", "text/html,application/xhtml+xml", true},
		{"legacy json get", http.MethodGet, "", "application/json", false},
		{"legacy html post", http.MethodPost, "", "text/html", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			if tt.mode != "" {
				r.Header.Set("Sec-Fetch-Mode", tt.mode)
			}
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			if got := worker.IsNavigation(r); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}
