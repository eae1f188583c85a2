package usecase

import (
	"context"
	"errors"

	domain "github.com/aq2208/kiosk-api/internal/entity"
)

var (
	// ErrDeviceBusy is matched by backend errors carrying the DEVICE_BUSY code.
	ErrDeviceBusy     = errors.New("device busy")
	ErrNoSelection    = errors.New("nothing selected")
	ErrUnavailable    = errors.New("action not available on the current screen")
	ErrRefundNotAcked = errors.New("refund policy not acknowledged")
	ErrNoCatalog      = errors.New("catalog not loaded")
)

// VendingBackend is the remote kiosk API.
type VendingBackend interface {
	FetchCatalog(ctx context.Context, code string) (domain.Catalog, error)
	CreateOrder(ctx context.Context, pointID int64, req domain.OrderRequest) (domain.CreatedOrder, error)
	CreateCryptoOrder(ctx context.Context, pointID int64, lines []domain.Line) (domain.CreatedOrder, error)
	TransactionStatus(ctx context.Context, txID string) (domain.Status, error)
	PollInterval(ctx context.Context, txID string) (domain.PollInterval, error)
	LookupTransaction(ctx context.Context, txID string) (domain.TransactionLookup, error)
}

// OrderStore keeps the order record across restarts and payment redirects.
type OrderStore interface {
	SaveSnapshot(ctx context.Context, s domain.OrderSnapshot) error
	// SaveTransaction records the id for polling and for the receipt.
	SaveTransaction(ctx context.Context, txID string, paymentInProgress bool) error
	Load(ctx context.Context) (domain.OrderSnapshot, bool, error)
	// ClearTransaction drops only the transaction ids.
	ClearTransaction(ctx context.Context) error
	// Clear drops the order record; the scan code survives.
	Clear(ctx context.Context) error
	SaveScanCode(ctx context.Context, code string) error
	ScanCode(ctx context.Context) (string, error)
}

type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, msg OrderOutcomeMsg) error
}

// Recorder receives kiosk telemetry. Implementations must not block.
type Recorder interface {
	ScreenEntered(s domain.Screen)
	OrderCreated(method string)
	OrderOutcome(status domain.Status)
	StatusPolled(result string)
	SessionReset(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ScreenEntered(domain.Screen) {}
func (nopRecorder) OrderCreated(string)         {}
func (nopRecorder) OrderOutcome(domain.Status)  {}
func (nopRecorder) StatusPolled(string)         {}
func (nopRecorder) SessionReset(string)         {}

type nopPublisher struct{}

func (nopPublisher) PublishOutcome(context.Context, OrderOutcomeMsg) error { return nil }

type langKey struct{}

// WithLanguage tags ctx with the UI language sent as Content-Language.
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

func LanguageFrom(ctx context.Context) string {
	if v, ok := ctx.Value(langKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultLanguage
}

const (
	DefaultLanguage  = "en"
	LanguageGeorgian = "ka"
)

// NormalizeLanguage maps anything unsupported to English.
func NormalizeLanguage(lang string) string {
	if lang == LanguageGeorgian {
		return LanguageGeorgian
	}
	return DefaultLanguage
}
