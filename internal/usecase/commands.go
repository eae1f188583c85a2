package usecase

import (
	"encoding/json"
	"fmt"
)

// Remote command events.
const (
	CommandSetLanguage = "setLanguage"
	CommandReset       = "reset"
	CommandReload      = "reload"
)

// ExecuteCommand applies a command received from the operator queue.
func (s *Session) ExecuteCommand(msg KioskCommandMsg) error {
	switch msg.Event {
	case CommandSetLanguage:
		var p SetLanguagePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return fmt.Errorf("setLanguage payload: %w", err)
		}
		s.SetLanguage(p.Lang)
	case CommandReset:
		s.Reset("remote")
	case CommandReload:
		var p ReloadPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return fmt.Errorf("reload payload: %w", err)
		}
		code := p.Code
		if code == "" {
			code = s.scanCode
		}
		s.Reset("remote_reload")
		if code != s.scanCode || !s.loading {
			s.LoadCatalog(code)
		}
	default:
		return fmt.Errorf("unknown kiosk command %q", msg.Event)
	}
	return nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
