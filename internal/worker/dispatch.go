package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
)

type EventKind string

const (
	EventInstall           EventKind = "install"
	EventActivate          EventKind = "activate"
	EventFetch             EventKind = "fetch"
	EventPush              EventKind = "push"
	EventNotificationClick EventKind = "notificationclick"
)

var ErrNoHandler = errors.New("no handler registered")

// Event carries the input of one event kind. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind EventKind

	Request        *http.Request
	Data           []byte
	NotificationID string
}

// Result is what a handler produced. Fetch handlers fill Response; other
// kinds may return an arbitrary Value.
type Result struct {
	Response *Response
	Value    any
}

type HandlerFunc func(ctx context.Context, ev Event) (Result, error)

// Registrar is implemented by anything that accepts event handlers.
type Registrar interface {
	Handle(kind EventKind, fn HandlerFunc)
}

// Dispatcher is the table of handlers keyed by event kind.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventKind]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventKind]HandlerFunc)}
}

// Handle registers fn for kind. Registering twice for the same kind panics,
// like http.ServeMux does for duplicate patterns.
func (d *Dispatcher) Handle(kind EventKind, fn HandlerFunc) {
	if fn == nil {
		panic("worker: nil handler for " + string(kind))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.handlers[kind]; dup {
		panic("worker: multiple registrations for " + string(kind))
	}
	d.handlers[kind] = fn
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Result, error) {
	d.mu.RLock()
	fn, ok := d.handlers[ev.Kind]
	d.mu.RUnlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoHandler, ev.Kind)
	}
	return fn(ctx, ev)
}

// Kinds lists registered event kinds in lexical order.
func (d *Dispatcher) Kinds() []EventKind {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]EventKind, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
