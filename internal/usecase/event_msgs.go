package usecase

import "encoding/json"

// Published on the kiosk events exchange when an order reaches a terminal state.
type OrderOutcomeMsg struct {
	KioskID       string `json:"kioskId"`
	TransactionID string `json:"transactionId"`
	PaymentMethod string `json:"paymentMethod"`
	Status        string `json:"status"` // COMPLETED | FAILED
	Total         string `json:"total"`
	Reason        string `json:"reason,omitempty"`
	OccurredAt    int64  `json:"occurredAt"` // unix millis
}

// Sent by the vending backend on Kafka
type TransactionStatusChangedMsg struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// Consumed from the kiosk commands queue
type KioskCommandMsg struct {
	Event   string          `json:"event"` // setLanguage | reset | reload
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SetLanguagePayload struct {
	Lang string `json:"lang"`
}

type ReloadPayload struct {
	Code string `json:"code"`
}
