package cachestore

import (
	"context"
	"slices"
	"sync"
	"time"
)

type Memory struct {
	mu     sync.Mutex
	order  []string
	caches map[string]*memCache
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		caches: make(map[string]*memCache),
		now:    time.Now,
	}
}

func (m *Memory) Open(_ context.Context, name string) (Cache, error) {
	if err := validate(name); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[name]; ok {
		return c, nil
	}

	c := &memCache{store: m, name: name, entries: make(map[string]Entry), now: m.now}
	m.caches[name] = c
	m.order = append(m.order, name)
	return c, nil
}

func (m *Memory) Has(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.caches[name]
	return ok, nil
}

func (m *Memory) Names(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order), nil
}

func (m *Memory) Delete(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.caches[name]
	if !ok {
		return false, nil
	}
	c.clear()
	delete(m.caches, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
	return true, nil
}

func (m *Memory) Match(ctx context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	caches := make([]*memCache, 0, len(m.order))
	for _, n := range m.order {
		caches = append(caches, m.caches[n])
	}
	m.mu.Unlock()

	for _, c := range caches {
		if e, ok, _ := c.Match(ctx, key); ok {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// live returns the registered cache for c's name. A handle whose name was
// deleted is registered again so its writes stay visible.
func (m *Memory) live(c *memCache) *memCache {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.caches[c.name]; ok {
		return cur
	}
	m.caches[c.name] = c
	m.order = append(m.order, c.name)
	return c
}

// current is live without registering: reads through a deleted handle see
// an empty cache until something is put.
func (m *Memory) current(c *memCache) *memCache {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.caches[c.name]; ok {
		return cur
	}
	return c
}

type memCache struct {
	store *Memory
	name  string
	now   func() time.Time

	mu      sync.Mutex
	keys    []string
	entries map[string]Entry
}

func (c *memCache) Name() string { return c.name }

func (c *memCache) Match(_ context.Context, key string) (Entry, bool, error) {
	c = c.store.current(c)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	return e.Clone(), true, nil
}

func (c *memCache) Put(_ context.Context, e Entry, limit int) ([]string, error) {
	if e.Key == "" {
		return nil, ErrEmptyKey
	}
	c = c.store.live(c)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.insert(e)

	if limit <= 0 || len(c.keys) <= limit {
		return nil, nil
	}

	n := len(c.keys) - limit
	evicted := slices.Clone(c.keys[:n])
	for _, k := range evicted {
		delete(c.entries, k)
	}
	c.keys = slices.Delete(c.keys, 0, n)
	return evicted, nil
}

func (c *memCache) PutAll(_ context.Context, entries []Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return ErrEmptyKey
		}
	}
	c = c.store.live(c)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		c.insert(e)
	}
	return nil
}

func (c *memCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keys = nil
	c.entries = make(map[string]Entry)
}

// insert must be called with c.mu held.
func (c *memCache) insert(e Entry) {
	e = e.Clone()
	if e.StoredAt.IsZero() {
		e.StoredAt = c.now().UTC()
	}

	if _, ok := c.entries[e.Key]; ok {
		c.keys = slices.DeleteFunc(c.keys, func(k string) bool { return k == e.Key })
	}
	c.keys = append(c.keys, e.Key)
	c.entries[e.Key] = e
}

func (c *memCache) Delete(_ context.Context, key string) (bool, error) {
	c = c.store.current(c)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false, nil
	}
	delete(c.entries, key)
	c.keys = slices.DeleteFunc(c.keys, func(k string) bool { return k == key })
	return true, nil
}

func (c *memCache) Keys(context.Context) ([]string, error) {
	c = c.store.current(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.keys), nil
}
