package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	catalogs    map[string]domain.Catalog
	catalogErr  error
	created     domain.CreatedOrder
	createErr   error
	crypto      domain.CreatedOrder
	interval    domain.PollInterval
	intervalErr error
	lookup      domain.TransactionLookup
	// status answers the n-th status call, counting from 1.
	status func(n int) (domain.Status, error)

	calls      map[string]int
	lastOrder  domain.OrderRequest
	lastLang   string
	lastLookup string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		catalogs: map[string]domain.Catalog{"QR1": basicCatalog()},
		created:  domain.CreatedOrder{TransactionID: "TX1"},
		crypto:   domain.CreatedOrder{TransactionID: "CTX1", CheckoutURL: "https://crypto.example/frame/CTX1"},
		interval: domain.PollInterval{MaxTimeInSeconds: 10, NumberOfTries: 10},
		status:   func(int) (domain.Status, error) { return domain.StatusPending, nil },
		calls:    map[string]int{},
	}
}

func (b *fakeBackend) FetchCatalog(ctx context.Context, code string) (domain.Catalog, error) {
	b.calls["catalog"]++
	b.lastLang = LanguageFrom(ctx)
	if b.catalogErr != nil {
		return domain.Catalog{}, b.catalogErr
	}
	c, ok := b.catalogs[code]
	if !ok {
		return domain.Catalog{}, domain.ErrInvalidCatalog
	}
	return c, nil
}

func (b *fakeBackend) CreateOrder(_ context.Context, _ int64, req domain.OrderRequest) (domain.CreatedOrder, error) {
	b.calls["create"]++
	b.lastOrder = req
	return b.created, b.createErr
}

func (b *fakeBackend) CreateCryptoOrder(_ context.Context, _ int64, lines []domain.Line) (domain.CreatedOrder, error) {
	b.calls["crypto"]++
	b.lastOrder = domain.OrderRequest{Products: lines}
	return b.crypto, b.createErr
}

func (b *fakeBackend) TransactionStatus(context.Context, string) (domain.Status, error) {
	b.calls["status"]++
	return b.status(b.calls["status"])
}

func (b *fakeBackend) PollInterval(context.Context, string) (domain.PollInterval, error) {
	b.calls["interval"]++
	return b.interval, b.intervalErr
}

func (b *fakeBackend) LookupTransaction(_ context.Context, txID string) (domain.TransactionLookup, error) {
	b.calls["lookup"]++
	b.lastLookup = txID
	return b.lookup, nil
}

type fakeStore struct {
	snap     domain.OrderSnapshot
	has      bool
	scan     string
	clears   int
	txClears int
}

func (s *fakeStore) SaveSnapshot(_ context.Context, snap domain.OrderSnapshot) error {
	snap.TransactionID = s.snap.TransactionID
	snap.ReceiptTransactionID = s.snap.ReceiptTransactionID
	snap.PaymentInProgress = s.snap.PaymentInProgress
	s.snap = snap
	s.has = true
	return nil
}

func (s *fakeStore) SaveTransaction(_ context.Context, txID string, inProgress bool) error {
	s.snap.TransactionID = txID
	s.snap.ReceiptTransactionID = txID
	s.snap.PaymentInProgress = inProgress
	s.has = true
	return nil
}

func (s *fakeStore) Load(context.Context) (domain.OrderSnapshot, bool, error) {
	return s.snap, s.has, nil
}

func (s *fakeStore) ClearTransaction(context.Context) error {
	s.txClears++
	s.snap.TransactionID = ""
	s.snap.PaymentInProgress = false
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.clears++
	s.snap = domain.OrderSnapshot{}
	s.has = false
	return nil
}

func (s *fakeStore) SaveScanCode(_ context.Context, code string) error {
	s.scan = code
	return nil
}

func (s *fakeStore) ScanCode(context.Context) (string, error) { return s.scan, nil }

type fakePublisher struct{ msgs []OrderOutcomeMsg }

func (p *fakePublisher) PublishOutcome(_ context.Context, m OrderOutcomeMsg) error {
	p.msgs = append(p.msgs, m)
	return nil
}

type fakeRecorder struct {
	nopRecorder
	resets []string
}

func (r *fakeRecorder) SessionReset(reason string) { r.resets = append(r.resets, reason) }

func basicCatalog() domain.Catalog {
	return domain.Catalog{
		PointID:   7,
		PointName: "Tbilisi Mall",
		Capsules: []domain.CatalogItem{
			{ID: 1, Name: "Ristretto", UnitPrice: decimal.RequireFromString("2.25"), AvailableQuantity: 5, Classification: domain.AmericanCapsule},
			{ID: 2, Name: "Lungo", UnitPrice: decimal.RequireFromString("1.50"), AvailableQuantity: 5, Classification: domain.EuropeanCapsule},
		},
		MaxPurchaseQuantity:        3,
		PurchasePerCapsuleQuantity: 3,
	}
}

func freeCatalog() domain.Catalog {
	return domain.Catalog{
		PointID:                    7,
		Capsules:                   []domain.CatalogItem{{ID: 9, Name: "Sample", UnitPrice: decimal.Zero, AvailableQuantity: 2, Classification: domain.AmericanCapsule}},
		MaxPurchaseQuantity:        2,
		PurchasePerCapsuleQuantity: 2,
	}
}

func accessoryCatalog() domain.Catalog {
	c := basicCatalog()
	c.Accessories = []domain.CatalogItem{
		{ID: 30, Name: "Cup", UnitPrice: decimal.RequireFromString("0.10"), AvailableQuantity: 10, PerCapsuleQuantity: 1, Classification: domain.AmericanCup},
	}
	return c
}

type testKit struct {
	s     *Session
	loop  *eventloop.Manual
	be    *fakeBackend
	store *fakeStore
	pub   *fakePublisher
	rec   *fakeRecorder
}

func newKit(t *testing.T, be *fakeBackend) *testKit {
	t.Helper()
	k := &testKit{
		loop:  eventloop.NewManual(),
		be:    be,
		store: &fakeStore{},
		pub:   &fakePublisher{},
		rec:   &fakeRecorder{},
	}
	k.s = NewSession(k.loop, be, k.store, k.pub, k.rec, SessionConfig{KioskID: "kiosk-1"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	k.s.LoadCatalog("QR1")
	k.loop.Run()
	require.True(t, k.s.engine.Loaded())
	return k
}

// toPaymentMethod selects one Ristretto and moves to the payment method screen.
func (k *testKit) toPaymentMethod(t *testing.T) {
	t.Helper()
	require.NoError(t, k.s.Increment(domain.CategoryCapsule, 1))
	require.NoError(t, k.s.Next("Mozilla/5.0 (iPhone)"))
	require.Equal(t, domain.ScreenPaymentMethod, k.s.Screen())
}

// startCardPoll places a card order and lets it reach PAYMENT_SUCCESS.
func (k *testKit) startCardPoll(t *testing.T) {
	t.Helper()
	k.toPaymentMethod(t)
	require.NoError(t, k.s.Next("Mozilla/5.0 (iPhone)"))
	k.loop.Run()
	require.Equal(t, domain.ScreenPaymentSuccess, k.s.Screen())
	require.True(t, k.s.life.Polling())
}
