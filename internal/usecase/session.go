package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
	"github.com/aq2208/kiosk-api/internal/navigation"
	"github.com/aq2208/kiosk-api/internal/pricemath"
	"github.com/aq2208/kiosk-api/internal/selection"
	"github.com/aq2208/kiosk-api/internal/timeouts"
)

var ErrNoScanCode = errors.New("no scan code to load the catalog with")

const DefaultPointLabel = "KIOSK"

type SessionConfig struct {
	KioskID    string
	PointLabel string // used when the catalog has no point name
	Language   string
	Overlay    time.Duration
	Timeouts   timeouts.Durations
	Lifecycle  LifecycleConfig
}

// Session composes the kiosk engine: catalog selection, order lifecycle,
// navigation and idle timeouts. All methods except Do must run on the loop.
type Session struct {
	loop    eventloop.Loop
	backend VendingBackend
	store   OrderStore
	pub     OutcomePublisher
	rec     Recorder
	log     *slog.Logger
	cfg     SessionConfig

	engine *selection.Engine
	nav    *navigation.Navigator
	sup    *timeouts.Supervisor
	life   *OrderLifecycle

	gen       uint64 // bumped on every full reset
	loadEpoch uint64
	lang      string
	scanCode  string
	loading   bool
	loadErr   error

	tab       domain.Tab
	method    domain.PaymentMethod
	refundAck bool

	pending *domain.OrderSnapshot
	receipt *domain.Receipt
}

func NewSession(loop eventloop.Loop, backend VendingBackend, store OrderStore, pub OutcomePublisher, rec Recorder, cfg SessionConfig, log *slog.Logger) *Session {
	if pub == nil {
		pub = nopPublisher{}
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if cfg.PointLabel == "" {
		cfg.PointLabel = DefaultPointLabel
	}
	s := &Session{
		loop:      loop,
		backend:   backend,
		store:     store,
		pub:       pub,
		rec:       rec,
		log:       log,
		lang:      NormalizeLanguage(cfg.Language),
		tab:       domain.TabCapsules,
		method:    domain.PaymentCard,
		refundAck: true,
	}
	s.engine = selection.New(log)
	s.nav = navigation.New(loop, cfg.Overlay, log)
	s.sup = timeouts.New(loop, cfg.Timeouts, s.onIdle, log)
	s.life = NewOrderLifecycle(loop, backend, store, s.nav, cfg.Lifecycle, log)
	s.life.OnOutcome(s.onOutcome)
	s.life.OnRedirect(s.touch)
	s.life.UseRecorder(rec)
	s.life.UseContext(s.ctx)
	cfg.Lifecycle = s.life.cfg
	s.cfg = cfg

	s.nav.OnChange(func(_, to domain.Screen) {
		s.sup.ScreenChanged(to, s.hasSelection())
		s.rec.ScreenEntered(to)
	})
	return s
}

// Do runs fn on the loop and returns its error.
func (s *Session) Do(ctx context.Context, fn func(*Session) error) error {
	var ferr error
	if err := s.loop.Call(ctx, func() { ferr = fn(s) }); err != nil {
		return err
	}
	return ferr
}

func (s *Session) ctx() context.Context { return WithLanguage(context.Background(), s.lang) }

func (s *Session) hasSelection() bool { return !s.engine.Snapshot().Empty() }

// touch restarts the idle window of the current screen. While the customer is
// on the hosted payment page only the payment window runs.
func (s *Session) touch() {
	if s.life.Redirecting() {
		s.sup.Clear(timeouts.KindCatalog)
		s.sup.Restart(timeouts.KindPayment)
		return
	}
	s.sup.Clear(timeouts.KindPayment)
	s.sup.Touch(s.nav.Current(), s.hasSelection())
}

func (s *Session) Screen() domain.Screen { return s.nav.Current() }

func (s *Session) Language() string { return s.lang }

// LoadCatalog fetches the catalog for code. An empty code is recovered from
// the store, and failing that from the stored transaction.
func (s *Session) LoadCatalog(code string) { s.loadCatalog(code, "") }

// loadCatalog takes txHint as the lookup id when the store holds no transaction.
func (s *Session) loadCatalog(code, txHint string) {
	s.loadEpoch++
	e := s.loadEpoch
	s.loading = true
	s.loadErr = nil
	base := s.ctx()

	s.loop.Go(func() func() {
		resolved, pointID, err := s.resolveScanCode(base, code, txHint)
		var cat domain.Catalog
		if err == nil {
			ctx, cancel := context.WithTimeout(base, s.cfg.Lifecycle.CallTimeout)
			cat, err = s.backend.FetchCatalog(ctx, resolved)
			cancel()
		}
		if err == nil && cat.PointID == 0 {
			cat.PointID = pointID
		}
		return func() {
			if e != s.loadEpoch {
				return
			}
			s.loading = false
			if err == nil {
				err = s.engine.Load(cat)
			}
			if err != nil {
				s.loadErr = err
				s.log.Error("session: catalog load failed", "code", resolved, "err", err)
				// a background reload must not hide a finished order
				if s.nav.Current() == domain.ScreenCatalog {
					s.nav.ChangeScreen(domain.ScreenError)
				}
				return
			}
			s.scanCode = resolved
			s.tab = domain.TabCapsules
			s.log.Info("session: catalog loaded", "code", resolved, "point_id", cat.PointID,
				"capsules", len(cat.Capsules), "accessories", len(cat.Accessories))
		}
	})
}

// resolveScanCode runs off the loop.
func (s *Session) resolveScanCode(ctx context.Context, code, txHint string) (string, int64, error) {
	if code != "" {
		if err := s.store.SaveScanCode(ctx, code); err != nil {
			s.log.Warn("session: save scan code", "err", err)
		}
		return code, 0, nil
	}
	if stored, err := s.store.ScanCode(ctx); err == nil && stored != "" {
		return stored, 0, nil
	}
	txID := txHint
	if snap, ok, err := s.store.Load(ctx); err == nil && ok && snap.TransactionID != "" {
		txID = snap.TransactionID
	}
	if txID == "" {
		return "", 0, ErrNoScanCode
	}
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Lifecycle.CallTimeout)
	defer cancel()
	found, err := s.backend.LookupTransaction(cctx, txID)
	if err != nil {
		return "", 0, fmt.Errorf("recover scan code from %s: %w", txID, err)
	}
	if found.ScanCode == "" {
		return "", 0, ErrNoScanCode
	}
	if err := s.store.SaveScanCode(ctx, found.ScanCode); err != nil {
		s.log.Warn("session: save scan code", "err", err)
	}
	return found.ScanCode, found.PointID, nil
}

func (s *Session) Increment(cat domain.Category, id int64) error {
	return s.mutate(cat, id, s.engine.Increment)
}

func (s *Session) Decrement(cat domain.Category, id int64) error {
	return s.mutate(cat, id, s.engine.Decrement)
}

// mutate applies one ±1 change. Rejected changes are not errors.
func (s *Session) mutate(cat domain.Category, id int64, op func(domain.Category, int64) bool) error {
	if !s.engine.Loaded() {
		return ErrNoCatalog
	}
	if s.nav.Current() != domain.ScreenCatalog {
		return ErrUnavailable
	}
	op(cat, id)
	if s.tab == domain.TabAccessories && s.engine.Snapshot().TotalSelectedCapsuleQty == 0 {
		s.tab = domain.TabCapsules
	}
	s.touch()
	return nil
}

func (s *Session) SelectTab(tab domain.Tab) error {
	if s.nav.Current() != domain.ScreenCatalog {
		return ErrUnavailable
	}
	if tab == domain.TabAccessories {
		if !s.engine.HasAccessories() {
			return ErrUnavailable
		}
		if s.engine.Snapshot().TotalSelectedCapsuleQty == 0 {
			return ErrNoSelection
		}
	}
	s.tab = tab
	s.touch()
	return nil
}

// Next advances checkout: capsules, accessories, payment method, order.
func (s *Session) Next(userAgent string) error {
	switch s.nav.Current() {
	case domain.ScreenCatalog:
		snap := s.engine.Snapshot()
		if snap.Empty() {
			return ErrNoSelection
		}
		if s.tab == domain.TabCapsules && s.engine.HasAccessories() {
			s.tab = domain.TabAccessories
			s.touch()
			return nil
		}
		if snap.TotalPrice.IsZero() {
			return s.placeOrder(domain.PaymentCard, userAgent)
		}
		s.nav.ChangeScreen(domain.ScreenPaymentMethod)
		return nil
	case domain.ScreenPaymentMethod:
		if s.life.InProgress() {
			return ErrOrderInProgress
		}
		if !s.refundAck {
			return ErrRefundNotAcked
		}
		if s.method == domain.PaymentCrypto {
			s.nav.ChangeScreen(domain.ScreenCryptoPayment)
		}
		return s.placeOrder(s.method, userAgent)
	}
	return ErrUnavailable
}

func (s *Session) Back() error {
	switch s.nav.Current() {
	case domain.ScreenPaymentMethod:
		if s.life.InProgress() {
			return ErrOrderInProgress
		}
		s.tab = domain.TabCapsules
		s.nav.ChangeScreen(domain.ScreenCatalog)
		return nil
	case domain.ScreenCatalog:
		if s.tab == domain.TabAccessories {
			s.tab = domain.TabCapsules
			s.touch()
			return nil
		}
	}
	return ErrUnavailable
}

func (s *Session) SetPaymentMethod(m domain.PaymentMethod) error {
	if s.nav.Current() != domain.ScreenPaymentMethod {
		return ErrUnavailable
	}
	s.method = m
	s.touch()
	return nil
}

func (s *Session) AcknowledgeRefund(ack bool) error {
	if s.nav.Current() != domain.ScreenPaymentMethod {
		return ErrUnavailable
	}
	s.refundAck = ack
	s.touch()
	return nil
}

func (s *Session) placeOrder(method domain.PaymentMethod, userAgent string) error {
	if s.life.InProgress() {
		return ErrOrderInProgress
	}
	snap := s.engine.Snapshot()
	cat, _ := s.engine.Catalog()
	label := cat.PointName
	if label == "" {
		label = s.cfg.PointLabel
	}
	order := domain.OrderSnapshot{
		Catalog:    s.engine.ProductLookup(),
		Lines:      snap.SelectedLines,
		Total:      snap.TotalPrice,
		PointLabel: label,
	}
	s.pending = &order
	s.receipt = nil
	// an order in flight is not idle
	s.sup.Clear(timeouts.KindCatalog)

	in := OrderInput{
		PointID:  cat.PointID,
		Lines:    snap.SelectedLines,
		Total:    snap.TotalPrice,
		Snapshot: order,
		Wallet:   domain.WalletForUserAgent(userAgent),
	}
	s.log.Info("session: placing order", "method", method, "total", pricemath.Format(snap.TotalPrice), "lines", len(snap.SelectedLines))
	if method == domain.PaymentCrypto {
		return s.life.CreateCryptoOrder(in)
	}
	return s.life.CreateOrder(in)
}

func (s *Session) OpenReceipt() error {
	if s.nav.Current() != domain.ScreenSuccess {
		return ErrUnavailable
	}
	s.nav.ChangeScreen(domain.ScreenReceipt)
	return nil
}

// InteractReceipt keeps the receipt screen alive, e.g. while the policy sheet is open.
func (s *Session) InteractReceipt() error {
	if s.nav.Current() != domain.ScreenReceipt {
		return ErrUnavailable
	}
	s.touch()
	return nil
}

func (s *Session) ReceiptSent() error {
	if s.nav.Current() != domain.ScreenReceipt {
		return ErrUnavailable
	}
	s.nav.ChangeScreen(domain.ScreenDone)
	return nil
}

func (s *Session) Home() { s.Reset("home") }

// SetLanguage switches the UI language and restarts with a freshly localized catalog.
func (s *Session) SetLanguage(lang string) {
	s.lang = NormalizeLanguage(lang)
	s.Reset("language")
}

// Reset cancels every timer and request of every component, clears the
// durable order record and reloads the catalog. It is idempotent.
func (s *Session) Reset(reason string) {
	s.gen++
	s.life.Cancel()
	s.sup.CancelAll()
	s.nav.Reset()
	s.loadEpoch++
	s.loading = false
	s.engine.Clear()

	s.tab = domain.TabCapsules
	s.method = domain.PaymentCard
	s.refundAck = true
	s.pending = nil
	s.receipt = nil

	s.rec.SessionReset(reason)
	s.log.Info("session: reset", "reason", reason)

	base := s.ctx()
	s.loop.Go(func() func() {
		if err := s.store.Clear(base); err != nil {
			s.log.Warn("session: clear order store", "err", err)
		}
		return nil
	})
	if s.scanCode != "" {
		s.LoadCatalog(s.scanCode)
	}
}

func (s *Session) onIdle(k timeouts.Kind) { s.Reset("idle_" + string(k)) }

// onOutcome keeps the receipt in memory, then publishes and forgets the order.
func (s *Session) onOutcome(o Outcome) {
	tx := o.Transaction
	total := "0.00"
	if s.pending != nil {
		total = pricemath.Format(s.pending.Total)
		if tx.Status == domain.StatusCompleted {
			r := s.pending.Receipt(tx.ID)
			s.receipt = &r
		}
	}
	msg := OrderOutcomeMsg{
		KioskID:       s.cfg.KioskID,
		TransactionID: tx.ID,
		PaymentMethod: string(tx.PaymentMethod),
		Status:        string(tx.Status),
		Total:         total,
		Reason:        o.Reason,
		OccurredAt:    s.loop.Now().UnixMilli(),
	}
	base := s.ctx()
	s.loop.Go(func() func() {
		if err := s.pub.PublishOutcome(base, msg); err != nil {
			s.log.Warn("session: publish order outcome", "tx_id", msg.TransactionID, "err", err)
		}
		if err := s.store.Clear(base); err != nil {
			s.log.Warn("session: clear order store", "err", err)
		}
		return nil
	})
}

// PushStatus applies a status delivered by the backend instead of polled.
func (s *Session) PushStatus(txID string, status string) bool {
	return s.life.PushStatus(txID, domain.Status(status))
}
