package push_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"AwesomeShop/internal/clients"
	"AwesomeShop/internal/push"
	"AwesomeShop/internal/worker"
)

func newRelay(t *testing.T) (*worker.Dispatcher, *push.Center, *clients.Registry) {
	t.Helper()

	center := push.NewCenter()
	windows := clients.NewRegistry()
	d := worker.NewDispatcher()
	push.NewRelay(center, windows, zap.NewNop()).Register(d)
	return d, center, windows
}

func pushMsg(t *testing.T, d *worker.Dispatcher, data string) push.Notification {
	t.Helper()

	res, err := d.Dispatch(context.Background(), worker.Event{Kind: worker.EventPush, Data: []byte(data)})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	n, ok := res.Value.(push.Notification)
	if !ok {
		t.Fatalf("value=%T", res.Value)
	}
	return n
}

func click(t *testing.T, d *worker.Dispatcher, id string) push.ClickOutcome {
	t.Helper()

	res, err := d.Dispatch(context.Background(), worker.Event{Kind: worker.EventNotificationClick, NotificationID: id})
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	out, ok := res.Value.(push.ClickOutcome)
	if !ok {
		t.Fatalf("value=%T", res.Value)
	}
	return out
}

func TestRelay_PushShowsNotificationWithDefaults(t *testing.T) {
	d, center, _ := newRelay(t)

	n := pushMsg(t, d, `{"title":"Sale","url":"/x"}`)
	if n.Title != "Sale" || n.Body != push.DefaultBody || n.Data.URL != "/x" {
		t.Fatalf("notification=%+v", n)
	}
	if len(center.List()) != 1 {
		t.Fatalf("center holds %d notifications", len(center.List()))
	}
}

func TestRelay_PushRejectsMalformedJSON(t *testing.T) {
	d, center, _ := newRelay(t)

	_, err := d.Dispatch(context.Background(), worker.Event{Kind: worker.EventPush, Data: []byte("{")})
	if !errors.Is(err, push.ErrInvalidPayload) {
		t.Fatalf("err=%v", err)
	}
	if len(center.List()) != 0 {
		t.Fatalf("notification shown for malformed payload")
	}
}

func TestRelay_ClickFocusesExistingPage(t *testing.T) {
	d, center, windows := newRelay(t)

	home, _ := windows.Open("/")
	target, _ := windows.Register("/x")
	if c, _ := windows.Get(home.ID); !c.Focused {
		t.Fatalf("setup: home not focused")
	}

	n := pushMsg(t, d, `{"title":"Sale","url":"/x"}`)
	out := click(t, d, n.ID)

	if out.Action != push.ActionFocus || out.Client.ID != target.ID {
		t.Fatalf("outcome=%+v", out)
	}
	if c, _ := windows.Get(target.ID); !c.Focused {
		t.Fatalf("target page not focused")
	}
	if len(windows.MatchAll()) != 2 {
		t.Fatalf("no page should be opened")
	}
	if _, err := center.Get(n.ID); !errors.Is(err, push.ErrNotificationNotFound) {
		t.Fatalf("notification not closed: %v", err)
	}
}

func TestRelay_ClickOpensPageWhenNoneMatches(t *testing.T) {
	d, _, windows := newRelay(t)
	_, _ = windows.Register("/")

	n := pushMsg(t, d, `{"title":"Sale","url":"/x"}`)
	out := click(t, d, n.ID)

	if out.Action != push.ActionOpen || out.URL != "/x" {
		t.Fatalf("outcome=%+v", out)
	}
	all := windows.MatchAll()
	if len(all) != 2 || all[1].URL != "/x" || !all[1].Focused {
		t.Fatalf("windows=%+v", all)
	}
}

func TestRelay_ClickUnknownNotification(t *testing.T) {
	d, _, _ := newRelay(t)

	_, err := d.Dispatch(context.Background(), worker.Event{Kind: worker.EventNotificationClick, NotificationID: "n_missing"})
	if !errors.Is(err, push.ErrNotificationNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestTokenMaker_RoundTrip(t *testing.T) {
	tm := push.NewTokenMaker("0123456789abcdef0123456789abcdef")

	tok, err := tm.New("campaigns", time.Minute)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c, err := tm.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Sender != "campaigns" {
		t.Fatalf("sender=%q", c.Sender)
	}

	other := push.NewTokenMaker("another-secret-another-secret-xx")
	if _, err := other.Parse(tok); !errors.Is(err, push.ErrInvalidToken) {
		t.Fatalf("foreign token accepted: %v", err)
	}

	expired, _ := tm.New("campaigns", -time.Minute)
	if _, err := tm.Parse(expired); !errors.Is(err, push.ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}
