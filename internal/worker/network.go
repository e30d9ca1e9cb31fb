package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNetwork       = errors.New("network request failed")
	ErrResponseLarge = errors.New("response body too large")
)

const (
	defaultNetworkTimeout = 15 * time.Second
	defaultMaxBody        = 32 << 20
)

// Network performs a live request and buffers the response.
type Network interface {
	Do(ctx context.Context, r *http.Request) (*Response, error)
}

// OriginNetwork sends same-origin requests to the upstream origin and
// absolute URLs as-is.
type OriginNetwork struct {
	base    *url.URL
	client  *http.Client
	maxBody int64
}

func NewOriginNetwork(originURL string, timeout time.Duration) (*OriginNetwork, error) {
	u, err := url.Parse(strings.TrimRight(originURL, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin url %q must be absolute", originURL)
	}
	if timeout <= 0 {
		timeout = defaultNetworkTimeout
	}

	return &OriginNetwork{
		base: u,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
			},
			// redirects are the page's business, pass them through
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxBody: defaultMaxBody,
	}, nil
}

func (n *OriginNetwork) Do(ctx context.Context, r *http.Request) (*Response, error) {
	out, err := n.outbound(ctx, r)
	if err != nil {
		return nil, err
	}

	resp, err := n.client.Do(out)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, n.maxBody+1))
	if err != nil {
		return nil, classifyNetErr(err)
	}
	if int64(len(body)) > n.maxBody {
		return nil, fmt.Errorf("%w: %s", ErrResponseLarge, out.URL.Redacted())
	}

	h := resp.Header.Clone()
	removeHopHeaders(h)

	return &Response{
		Status: resp.StatusCode,
		Header: h,
		Body:   body,
		Source: SourceNetwork,
	}, nil
}

func (n *OriginNetwork) outbound(ctx context.Context, r *http.Request) (*http.Request, error) {
	target := n.resolve(r.URL)

	out, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}
	out.ContentLength = r.ContentLength
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	removeHopHeaders(out.Header)

	if r.Host != "" {
		out.Header.Set("X-Forwarded-Host", r.Host)
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		out.Header.Set("X-Forwarded-For", ip)
	}
	return out, nil
}

func (n *OriginNetwork) resolve(u *url.URL) *url.URL {
	if u.IsAbs() && u.Host != "" {
		return u
	}

	t := *n.base
	t.Path = singleJoiningSlash(n.base.Path, u.Path)
	t.RawPath = ""
	t.RawQuery = u.RawQuery
	return &t
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

func classifyNetErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout", ErrNetwork)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: timeout", ErrNetwork)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
