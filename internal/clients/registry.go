// Package clients tracks the open pages the edge knows about, standing in
// for browser windows: pages register themselves, notification clicks focus
// or open them, and an activating worker claims them.
package clients

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("client not found")
	ErrEmptyURL = errors.New("client url required")
)

type Client struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Focused    bool      `json:"focused"`
	Controlled bool      `json:"controlled"`
	OpenedAt   time.Time `json:"opened_at"`
}

type Registry struct {
	mu      sync.Mutex
	order   []string
	byID    map[string]*Client
	claimed bool
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*Client),
		now:  time.Now,
	}
}

// Register records a page that loaded on its own. Pages loading after a
// claim are controlled from the start.
func (r *Registry) Register(url string) (Client, error) {
	return r.add(url, false)
}

// Open opens a new focused page at url.
func (r *Registry) Open(url string) (Client, error) {
	return r.add(url, true)
}

func (r *Registry) add(url string, focus bool) (Client, error) {
	if url == "" {
		return Client{}, ErrEmptyURL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Client{
		ID:         "c_" + uuid.NewString(),
		URL:        url,
		Controlled: r.claimed,
		OpenedAt:   r.now().UTC(),
	}
	r.byID[c.ID] = c
	r.order = append(r.order, c.ID)

	if focus {
		r.focusLocked(c.ID)
	}
	return *c, nil
}

func (r *Registry) Get(id string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return *c, nil
}

// Focus makes id the only focused page.
func (r *Registry) Focus(id string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return Client{}, ErrNotFound
	}
	r.focusLocked(id)
	return *r.byID[id], nil
}

func (r *Registry) focusLocked(id string) {
	for _, c := range r.byID {
		c.Focused = c.ID == id
	}
}

func (r *Registry) Navigate(id, url string) (Client, error) {
	if url == "" {
		return Client{}, ErrEmptyURL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	c.URL = url
	return *c, nil
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	return nil
}

// MatchAll lists every open page, oldest first.
func (r *Registry) MatchAll() []Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// Claim marks every open page, and every page opened later, as controlled.
// It returns the number of pages that were open.
func (r *Registry) Claim() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.claimed = true
	for _, c := range r.byID {
		c.Controlled = true
	}
	return len(r.byID)
}
