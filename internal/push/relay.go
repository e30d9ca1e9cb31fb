// Package push turns push messages into displayed notifications and
// resolves notification clicks to a focused or newly opened page.
package push

import (
	"context"

	"go.uber.org/zap"

	"AwesomeShop/internal/clients"
	"AwesomeShop/internal/worker"
)

type ClickAction string

const (
	ActionFocus ClickAction = "focus"
	ActionOpen  ClickAction = "open"
)

type ClickOutcome struct {
	Action ClickAction    `json:"action"`
	URL    string         `json:"url"`
	Client clients.Client `json:"client"`
}

// Windows is the view of open pages a click needs.
type Windows interface {
	MatchAll() []clients.Client
	Focus(id string) (clients.Client, error)
	Open(url string) (clients.Client, error)
}

type Relay struct {
	center  *Center
	windows Windows
	log     *zap.Logger
}

func NewRelay(center *Center, windows Windows, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{center: center, windows: windows, log: log}
}

// Register wires the push and notificationclick handlers.
func (r *Relay) Register(reg worker.Registrar) {
	reg.Handle(worker.EventPush, r.handlePush)
	reg.Handle(worker.EventNotificationClick, r.handleClick)
}

func (r *Relay) handlePush(_ context.Context, ev worker.Event) (worker.Result, error) {
	p, err := ParsePayload(ev.Data)
	if err != nil {
		return worker.Result{}, err
	}

	n := r.center.Show(p)
	r.log.Info("push received", zap.String("notification_id", n.ID), zap.String("title", n.Title))
	return worker.Result{Value: n}, nil
}

func (r *Relay) handleClick(_ context.Context, ev worker.Event) (worker.Result, error) {
	n, err := r.center.Get(ev.NotificationID)
	if err != nil {
		return worker.Result{}, err
	}
	_ = r.center.Close(n.ID)

	target := n.Data.URL
	if target == "" {
		target = DefaultURL
	}

	for _, c := range r.windows.MatchAll() {
		if c.URL != target {
			continue
		}
		focused, err := r.windows.Focus(c.ID)
		if err != nil {
			// closed between listing and focusing; keep looking
			continue
		}
		r.log.Info("notification click: focus", zap.String("client_id", focused.ID), zap.String("url", target))
		return worker.Result{Value: ClickOutcome{Action: ActionFocus, URL: target, Client: focused}}, nil
	}

	opened, err := r.windows.Open(target)
	if err != nil {
		return worker.Result{}, err
	}
	r.log.Info("notification click: open", zap.String("client_id", opened.ID), zap.String("url", target))
	return worker.Result{Value: ClickOutcome{Action: ActionOpen, URL: target, Client: opened}}, nil
}
