package queue

import (
	"context"
	"fmt"

	"github.com/aq2208/kiosk-api/internal/usecase"
)

// SessionRunner runs fn on the session's event loop.
type SessionRunner interface {
	Do(ctx context.Context, fn func(*usecase.Session) error) error
}

// CommandHandler applies operator commands to the kiosk session.
type CommandHandler struct {
	sessions SessionRunner
}

func NewCommandHandler(s SessionRunner) *CommandHandler {
	return &CommandHandler{sessions: s}
}

// HandleCommand is intended to be used with the JSON adapter (queue.JSONHandler[KioskCommandMsg]).
// Unknown commands are poison: redelivery would not help.
func (h *CommandHandler) HandleCommand(ctx context.Context, msg usecase.KioskCommandMsg) error {
	var cmdErr error
	err := h.sessions.Do(ctx, func(s *usecase.Session) error {
		cmdErr = s.ExecuteCommand(msg)
		return nil
	})
	if err != nil {
		return err
	}
	if cmdErr != nil {
		return fmt.Errorf("%w: %v", ErrPoison, cmdErr)
	}
	return nil
}
