package push

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationData struct {
	URL string `json:"url"`
}

type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Icon      string           `json:"icon"`
	Badge     string           `json:"badge"`
	Data      NotificationData `json:"data"`
	CreatedAt time.Time        `json:"created_at"`
}

// Center holds the notifications currently on display.
type Center struct {
	mu    sync.Mutex
	order []string
	byID  map[string]Notification
	now   func() time.Time
}

func NewCenter() *Center {
	return &Center{
		byID: make(map[string]Notification),
		now:  time.Now,
	}
}

func (c *Center) Show(p Payload) Notification {
	n := Notification{
		ID:        "n_" + uuid.NewString(),
		Title:     p.Title,
		Body:      p.Body,
		Icon:      p.Icon,
		Badge:     p.Badge,
		Data:      NotificationData{URL: p.URL},
		CreatedAt: c.now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID[n.ID] = n
	c.order = append(c.order, n.ID)
	return n
}

func (c *Center) Get(id string) (Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.byID[id]
	if !ok {
		return Notification{}, ErrNotificationNotFound
	}
	return n, nil
}

func (c *Center) Close(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[id]; !ok {
		return ErrNotificationNotFound
	}
	delete(c.byID, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	return nil
}

// List returns displayed notifications, oldest first.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
