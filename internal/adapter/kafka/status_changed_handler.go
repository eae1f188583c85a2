package kafka

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aq2208/kiosk-api/internal/usecase"
)

// Deduper remembers applied events across redeliveries.
type Deduper interface {
	FirstSeen(ctx context.Context, scope, key string) (bool, error)
	Forget(ctx context.Context, scope, key string) error
}

// SessionRunner runs fn on the session's event loop.
type SessionRunner interface {
	Do(ctx context.Context, fn func(*usecase.Session) error) error
}

// StatusChangedHandler feeds backend status pushes into the running order.
// Events for transactions this kiosk is not tracking are acknowledged and dropped.
type StatusChangedHandler struct {
	sessions SessionRunner
	dedup    Deduper // optional
	log      *slog.Logger
}

func NewStatusChangedHandler(s SessionRunner, dedup Deduper, log *slog.Logger) *StatusChangedHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StatusChangedHandler{sessions: s, dedup: dedup, log: log}
}

func (h *StatusChangedHandler) Handle(ctx context.Context, ev usecase.TransactionStatusChangedMsg) error {
	txID := strings.TrimSpace(ev.TransactionID)
	status := strings.ToUpper(strings.TrimSpace(ev.Status))
	if txID == "" || status == "" {
		h.log.Warn("status event without transaction or status", "tx", ev.TransactionID, "status", ev.Status)
		return nil
	}

	key := txID + ":" + status
	if h.dedup != nil {
		first, err := h.dedup.FirstSeen(ctx, "status", key)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
	}

	var applied bool
	err := h.sessions.Do(ctx, func(s *usecase.Session) error {
		applied = s.PushStatus(txID, status)
		return nil
	})
	// only an applied event is remembered; a redelivery may still reach the poll
	if (err != nil || !applied) && h.dedup != nil {
		if ferr := h.dedup.Forget(ctx, "status", key); ferr != nil {
			h.log.Warn("forget status event", "tx", txID, "status", status, "err", ferr)
		}
	}
	if err != nil {
		return err
	}
	h.log.Debug("status event", "tx", txID, "status", status, "applied", applied)
	return nil
}
