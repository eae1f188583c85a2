package usecase

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
)

type LifecycleConfig struct {
	CryptoDeadline  time.Duration
	CryptoCadence   time.Duration
	DefaultInterval domain.PollInterval // used when the interval lookup fails
	CallTimeout     time.Duration
}

func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		CryptoDeadline:  190 * time.Second,
		CryptoCadence:   time.Second,
		DefaultInterval: domain.PollInterval{MaxTimeInSeconds: 180, NumberOfTries: 36},
		CallTimeout:     15 * time.Second,
	}
}

// Navigation is the part of the navigator the lifecycle drives.
type Navigation interface {
	Current() domain.Screen
	ChangeScreen(to domain.Screen)
}

// Outcome reasons.
const (
	ReasonFree         = "free"
	ReasonStatus       = "status"
	ReasonDeadline     = "deadline"
	ReasonCreateFailed = "create_failed"
	ReasonDeviceBusy   = "device_busy"
	ReasonReturnURL    = "return_url"
)

// Outcome is how an order ended. Transaction.ID is empty when creation itself failed.
type Outcome struct {
	Transaction domain.Transaction
	Reason      string
}

// OrderLifecycle owns the active transaction from creation to its terminal
// status. Every method must run on the event loop.
type OrderLifecycle struct {
	loop    eventloop.Loop
	backend VendingBackend
	store   OrderStore
	nav     Navigation
	cfg     LifecycleConfig
	log     *slog.Logger
	rec     Recorder
	ctx     func() context.Context
	onDone  func(Outcome)
	onAway  func()

	epoch    uint64
	creating bool
	tx       *domain.Transaction
	redirect string
	race     *pollRace
}

func NewOrderLifecycle(loop eventloop.Loop, backend VendingBackend, store OrderStore, nav Navigation, cfg LifecycleConfig, log *slog.Logger) *OrderLifecycle {
	def := DefaultLifecycleConfig()
	if cfg.CryptoDeadline <= 0 {
		cfg.CryptoDeadline = def.CryptoDeadline
	}
	if cfg.CryptoCadence <= 0 {
		cfg.CryptoCadence = def.CryptoCadence
	}
	if cfg.DefaultInterval.MaxTimeInSeconds <= 0 || cfg.DefaultInterval.NumberOfTries <= 0 {
		cfg.DefaultInterval = def.DefaultInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	return &OrderLifecycle{
		loop:    loop,
		backend: backend,
		store:   store,
		nav:     nav,
		cfg:     cfg,
		log:     log,
		rec:     nopRecorder{},
		ctx:     context.Background,
		onDone:  func(Outcome) {},
		onAway:  func() {},
	}
}

func (l *OrderLifecycle) OnOutcome(fn func(Outcome)) { l.onDone = fn }

// OnRedirect is called once a card order is handed to the hosted payment page.
func (l *OrderLifecycle) OnRedirect(fn func()) { l.onAway = fn }

func (l *OrderLifecycle) UseRecorder(rec Recorder) { l.rec = rec }

// UseContext sets the base context of backend calls (it carries the UI language).
func (l *OrderLifecycle) UseContext(fn func() context.Context) { l.ctx = fn }

// Transaction returns the active or last finished transaction.
func (l *OrderLifecycle) Transaction() (domain.Transaction, bool) {
	if l.tx == nil {
		return domain.Transaction{}, false
	}
	return *l.tx, true
}

// CheckoutURL is the crypto checkout frame for the active transaction.
func (l *OrderLifecycle) CheckoutURL() string {
	if l.tx == nil || l.tx.PaymentMethod != domain.PaymentCrypto {
		return ""
	}
	return l.tx.CheckoutURL
}

// RedirectURL is set when a card order must continue on the hosted payment page.
func (l *OrderLifecycle) RedirectURL() string { return l.redirect }

func (l *OrderLifecycle) Polling() bool { return l.race != nil }

// Redirecting reports a card order waiting for the customer to come back from
// the hosted payment page.
func (l *OrderLifecycle) Redirecting() bool { return l.redirect != "" }

// InProgress reports a create call in flight, a running status poll or a
// pending redirect. At most one transaction is active.
func (l *OrderLifecycle) InProgress() bool {
	return l.creating || l.race != nil || l.redirect != ""
}

// Cancel forgets the active order. Responses and ticks already queued are ignored.
func (l *OrderLifecycle) Cancel() {
	l.epoch++
	l.stopRace()
	l.creating = false
	l.tx = nil
	l.redirect = ""
}

// ConfirmReturn completes a card order that came back from the hosted payment
// page with a transaction id.
func (l *OrderLifecycle) ConfirmReturn(txID string) {
	l.epoch++
	l.stopRace()
	l.creating = false
	l.redirect = ""
	l.tx = &domain.Transaction{ID: txID, Status: domain.StatusCompleted, PaymentMethod: domain.PaymentCard}
	l.finish(ReasonReturnURL)
}

// PushStatus feeds a status learned out of band. It is handled exactly like a
// polled one and reports whether it matched the running poll.
func (l *OrderLifecycle) PushStatus(txID string, st domain.Status) bool {
	r := l.race
	if r == nil || r.txID != txID || !l.live(r) {
		l.log.Debug("lifecycle: ignoring pushed status", "tx_id", txID, "status", st)
		return false
	}
	l.applyStatus(r, st)
	return true
}

func (l *OrderLifecycle) finish(reason string) {
	tx := *l.tx
	if tx.Status == domain.StatusCompleted {
		l.nav.ChangeScreen(domain.ScreenSuccess)
	} else {
		l.nav.ChangeScreen(domain.ScreenError)
	}
	l.rec.OrderOutcome(tx.Status)
	l.log.Info("lifecycle: order finished", "tx_id", tx.ID, "status", tx.Status, "method", tx.PaymentMethod, "reason", reason)
	l.onDone(Outcome{Transaction: tx, Reason: reason})
}

// callCtx bounds one backend call. base must be captured on the loop.
func (l *OrderLifecycle) callCtx(base context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(base, l.cfg.CallTimeout)
}

func redirectURL(checkoutURL, outerID string) string {
	u, err := url.Parse(checkoutURL)
	if err != nil {
		return checkoutURL + "?trans_id=" + url.QueryEscape(outerID)
	}
	q := u.Query()
	q.Set("trans_id", outerID)
	u.RawQuery = q.Encode()
	return u.String()
}
