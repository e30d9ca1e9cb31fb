// Package cachestore holds named caches of response snapshots keyed by
// request URL. Keys keep insertion order so that the oldest entry can be
// evicted first when a cache is bounded.
package cachestore

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrEmptyName = errors.New("cache name required")
	ErrEmptyKey  = errors.New("cache key required")
)

// Entry is a stored response snapshot.
type Entry struct {
	Key      string      `json:"key"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// Clone returns a deep copy so callers never share header maps or bodies
// with the store.
func (e Entry) Clone() Entry {
	out := e
	out.Header = e.Header.Clone()
	if e.Body != nil {
		out.Body = append([]byte(nil), e.Body...)
	}
	return out
}

// Cache is one named namespace.
type Cache interface {
	Name() string
	Match(ctx context.Context, key string) (Entry, bool, error)
	// Put stores e under e.Key, moving the key to the newest position. When
	// limit > 0 the oldest keys are evicted in the same atomic step until at
	// most limit remain; the evicted keys are returned oldest first.
	Put(ctx context.Context, e Entry, limit int) ([]string, error)
	// PutAll stores every entry or none of them.
	PutAll(ctx context.Context, entries []Entry) error
	Delete(ctx context.Context, key string) (bool, error)
	// Keys lists keys oldest first.
	Keys(ctx context.Context) ([]string, error)
}

// Storage is the set of named caches.
type Storage interface {
	// Open returns the named cache, creating it when missing.
	Open(ctx context.Context, name string) (Cache, error)
	Has(ctx context.Context, name string) (bool, error)
	// Names lists caches in creation order.
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
	// Match looks the key up in every cache in creation order.
	Match(ctx context.Context, key string) (Entry, bool, error)
	Ping(ctx context.Context) error
}

func validate(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	return nil
}
