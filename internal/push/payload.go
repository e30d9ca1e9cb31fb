package push

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	DefaultTitle = "AwesomeShop Notification"
	DefaultBody  = "You have a new update from AwesomeShop!"
	DefaultIcon  = "/images/icons/icon-192x192.png"
	DefaultBadge = "/images/icons/icon-72x72.png"
	DefaultURL   = "/"
)

var ErrInvalidPayload = errors.New("invalid push payload")

// Payload is the producer-defined push message. Every field is optional.
type Payload struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	URL   string `json:"url,omitempty"`
}

var textPolicy = bluemonday.StrictPolicy()

// ParsePayload decodes a push message and fills defaults for every absent
// or empty field. An empty message yields all defaults.
//
// Title and body are reduced to plain text: anything shaped like a tag is
// removed with its brackets, so "Use code <SAVE10>" becomes "Use code".
// Producers wanting literal angle brackets must send them as &lt; and &gt;.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	p.Title = orDefault(plainText(p.Title), DefaultTitle)
	p.Body = orDefault(plainText(p.Body), DefaultBody)
	p.Icon = orDefault(strings.TrimSpace(p.Icon), DefaultIcon)
	p.Badge = orDefault(strings.TrimSpace(p.Badge), DefaultBadge)
	p.URL = orDefault(strings.TrimSpace(p.URL), DefaultURL)

	for _, u := range []string{p.Icon, p.Badge, p.URL} {
		if !safeURL(u) {
			return Payload{}, fmt.Errorf("%w: unsupported url %q", ErrInvalidPayload, u)
		}
	}
	return p, nil
}

// plainText strips any markup and collapses the whitespace it leaves
// behind; notifications render text only.
func plainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(textPolicy.Sanitize(s))), " ")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func safeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "", "http", "https":
		return true
	default:
		return false
	}
}
