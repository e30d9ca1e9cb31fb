package worker

import (
	"net/http"
	"strconv"
	"strings"

	"AwesomeShop/internal/cachestore"
)

type Source string

const (
	SourceCache    Source = "cache"
	SourceNetwork  Source = "network"
	SourceOffline  Source = "offline"
	SourceFallback Source = "fallback"
)

// SourceHeader tells the client which branch produced the response.
const SourceHeader = "X-SW-Source"

const notFoundBody = "Network error or content not found"

// Response is a fully buffered response snapshot.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Source Source
}

// OK reports a 2xx status; only such responses are ever cached.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

func (r *Response) entry(key string) cachestore.Entry {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Del("Set-Cookie")
	removeHopHeaders(h)

	return cachestore.Entry{
		Key:    key,
		Status: r.Status,
		Header: h,
		Body:   r.Body,
	}
}

func fromEntry(e cachestore.Entry, src Source) *Response {
	return &Response{
		Status: e.Status,
		Header: e.Header,
		Body:   e.Body,
		Source: src,
	}
}

func notFound() *Response {
	return &Response{
		Status: http.StatusNotFound,
		Header: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:   []byte(notFoundBody),
		Source: SourceFallback,
	}
}

// Write copies the snapshot to w.
func (r *Response) Write(w http.ResponseWriter, req *http.Request) {
	h := w.Header()
	for k, vv := range r.Header {
		h[k] = append([]string(nil), vv...)
	}
	removeHopHeaders(h)
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	h.Set(SourceHeader, string(r.Source))

	w.WriteHeader(r.Status)
	if req != nil && req.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(r.Body)
}

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

// removeHopHeaders drops hop-by-hop headers, including any that the
// Connection header names.
func removeHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, k := range hopHeaders {
		h.Del(k)
	}
}
