package edge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"AwesomeShop/internal/clients"
	"AwesomeShop/internal/push"
	"AwesomeShop/internal/worker"
	"AwesomeShop/pkg/kit"
)

const maxPushBody = 4 << 10

var validate = validator.New()

type swServer struct {
	worker  *worker.Worker
	center  *push.Center
	clients *clients.Registry
	log     *zap.Logger
}

type Status struct {
	State        string             `json:"state"`
	Controlling  bool               `json:"controlling"`
	StaticCache  string             `json:"static_cache"`
	DynamicCache string             `json:"dynamic_cache"`
	DynamicLimit int                `json:"dynamic_limit"`
	Events       []string           `json:"events"`
	Caches       []worker.CacheInfo `json:"caches"`
}

func (s *swServer) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.snapshot(r.Context())
	if err != nil {
		s.log.Error("list caches failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, st)
}

// update retries the lifecycle; it is a no-op for an active worker.
func (s *swServer) update(w http.ResponseWriter, r *http.Request) {
	if err := s.worker.Start(r.Context()); err != nil {
		kit.WriteError(w, r, http.StatusServiceUnavailable, "install failed",
			map[string]string{"state": s.worker.State().String(), "reason": err.Error()})
		return
	}
	s.status(w, r)
}

func (s *swServer) snapshot(ctx context.Context) (Status, error) {
	cfg := s.worker.Config()
	caches, err := s.worker.Caches(ctx)
	if err != nil {
		return Status{}, err
	}
	kinds := s.worker.Events()
	events := make([]string, 0, len(kinds))
	for _, k := range kinds {
		events = append(events, string(k))
	}
	return Status{
		State:        s.worker.State().String(),
		Controlling:  s.worker.Controlling(),
		StaticCache:  cfg.StaticCache,
		DynamicCache: cfg.DynamicCache,
		DynamicLimit: cfg.DynamicLimit,
		Events:       events,
		Caches:       caches,
	}, nil
}

func (s *swServer) push(w http.ResponseWriter, r *http.Request) {
	if !s.worker.Controlling() {
		kit.WriteError(w, r, http.StatusServiceUnavailable, "worker not active", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushBody))
	if err != nil {
		kit.WriteError(w, r, http.StatusRequestEntityTooLarge, "payload too large", nil)
		return
	}

	res, err := s.worker.Dispatch(r.Context(), worker.Event{Kind: worker.EventPush, Data: body})
	if err != nil {
		s.eventError(w, r, err)
		return
	}

	sender, _ := SenderFromContext(r.Context())
	s.log.Info("push delivered", zap.String("sender", sender))
	kit.WriteJSON(w, http.StatusCreated, res.Value)
}

func (s *swServer) listNotifications(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.center.List())
}

func (s *swServer) click(w http.ResponseWriter, r *http.Request) {
	res, err := s.worker.Dispatch(r.Context(), worker.Event{
		Kind:           worker.EventNotificationClick,
		NotificationID: chi.URLParam(r, "id"),
	})
	if err != nil {
		s.eventError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res.Value)
}

func (s *swServer) eventError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, push.ErrInvalidPayload):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid payload", err.Error())
	case errors.Is(err, push.ErrNotificationNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "notification not found", nil)
	case errors.Is(err, worker.ErrNoHandler):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "event not handled", nil)
	default:
		s.log.Error("event failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

type clientURLRequest struct {
	URL string `json:"url" validate:"required,startswith=/"`
}

func (s *swServer) listClients(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.clients.MatchAll())
}

func (s *swServer) registerClient(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeClientURL(w, r)
	if !ok {
		return
	}

	c, err := s.clients.Register(req.URL)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, c)
}

func (s *swServer) getClient(w http.ResponseWriter, r *http.Request) {
	c, err := s.clients.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.clientError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

// navigateClient points an open page at a new URL.
func (s *swServer) navigateClient(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeClientURL(w, r)
	if !ok {
		return
	}

	c, err := s.clients.Navigate(chi.URLParam(r, "id"), req.URL)
	if err != nil {
		s.clientError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

func decodeClientURL(w http.ResponseWriter, r *http.Request) (clientURLRequest, bool) {
	var req clientURLRequest
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid json", nil)
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "validation failed", err.Error())
		return req, false
	}
	return req, true
}

func (s *swServer) clientError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, clients.ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "client not found", nil)
	case errors.Is(err, clients.ErrEmptyURL):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	default:
		s.log.Error("client registry failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *swServer) closeClient(w http.ResponseWriter, r *http.Request) {
	if err := s.clients.Close(chi.URLParam(r, "id")); err != nil {
		s.clientError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartWorker runs the worker lifecycle, retrying a failed install every
// retry interval until it succeeds or ctx ends.
func StartWorker(ctx context.Context, w *worker.Worker, log *zap.Logger, retry time.Duration) error {
	if log == nil {
		log = zap.NewNop()
	}

	for {
		err := w.Start(ctx)
		if err == nil {
			log.Info("worker activated", zap.Int("precached", len(w.Config().Precache)))
			return nil
		}
		log.Warn("worker start failed, retrying", zap.Duration("retry", retry), zap.Error(err))

		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
