// Package usecasetest builds kiosk sessions on a manual loop for adapter tests.
package usecasetest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/aq2208/kiosk-api/internal/adapter/cache"
	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"github.com/shopspring/decimal"
)

// Backend is a scripted usecase.VendingBackend.
type Backend struct {
	mu       sync.Mutex
	Catalogs map[string]domain.Catalog
	Created  domain.CreatedOrder
	Crypto   domain.CreatedOrder
	Status   domain.Status
	Calls    map[string]int
}

func NewBackend() *Backend {
	return &Backend{
		Catalogs: map[string]domain.Catalog{"QR1": Catalog()},
		Created:  domain.CreatedOrder{TransactionID: "TX1"},
		Crypto:   domain.CreatedOrder{TransactionID: "CTX1", CheckoutURL: "https://crypto.example/frame/CTX1"},
		Status:   domain.StatusPending,
		Calls:    map[string]int{},
	}
}

func (b *Backend) count(op string) {
	b.mu.Lock()
	b.Calls[op]++
	b.mu.Unlock()
}

func (b *Backend) FetchCatalog(_ context.Context, code string) (domain.Catalog, error) {
	b.count("catalog")
	c, ok := b.Catalogs[code]
	if !ok {
		return domain.Catalog{}, domain.ErrInvalidCatalog
	}
	return c, nil
}

func (b *Backend) CreateOrder(context.Context, int64, domain.OrderRequest) (domain.CreatedOrder, error) {
	b.count("create")
	return b.Created, nil
}

func (b *Backend) CreateCryptoOrder(context.Context, int64, []domain.Line) (domain.CreatedOrder, error) {
	b.count("crypto")
	return b.Crypto, nil
}

func (b *Backend) TransactionStatus(context.Context, string) (domain.Status, error) {
	b.count("status")
	return b.Status, nil
}

func (b *Backend) PollInterval(context.Context, string) (domain.PollInterval, error) {
	b.count("interval")
	return domain.PollInterval{MaxTimeInSeconds: 180, NumberOfTries: 36}, nil
}

func (b *Backend) LookupTransaction(context.Context, string) (domain.TransactionLookup, error) {
	b.count("lookup")
	return domain.TransactionLookup{ScanCode: "QR1", PointID: 7}, nil
}

// Catalog has two capsules at 2.25 and 1.50 with a cap of 3, and one cup.
func Catalog() domain.Catalog {
	return domain.Catalog{
		PointID:   7,
		PointName: "Tbilisi Mall",
		Capsules: []domain.CatalogItem{
			{ID: 1, Name: "Ristretto", UnitPrice: decimal.RequireFromString("2.25"), AvailableQuantity: 5, Classification: domain.AmericanCapsule},
			{ID: 2, Name: "Lungo", UnitPrice: decimal.RequireFromString("1.50"), AvailableQuantity: 5, Classification: domain.EuropeanCapsule},
		},
		Accessories: []domain.CatalogItem{
			{ID: 30, Name: "Cup", UnitPrice: decimal.RequireFromString("0.10"), AvailableQuantity: 10, PerCapsuleQuantity: 1, Classification: domain.AmericanCup},
		},
		MaxPurchaseQuantity:        3,
		PurchasePerCapsuleQuantity: 3,
	}
}

// Kit is a session with the catalog for QR1 already loaded.
type Kit struct {
	Session *usecase.Session
	Loop    *eventloop.Manual
	Backend *Backend
	Store   *cache.MemoryOrderStore
}

func NewKit(t testing.TB, rec usecase.Recorder) *Kit {
	t.Helper()
	k := &Kit{
		Loop:    eventloop.NewManual(),
		Backend: NewBackend(),
		Store:   cache.NewMemoryOrderStore(),
	}
	k.Session = usecase.NewSession(k.Loop, k.Backend, k.Store, nil, rec,
		usecase.SessionConfig{KioskID: "kiosk-1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := k.Session.Do(context.Background(), func(s *usecase.Session) error {
		s.LoadCatalog("QR1")
		return nil
	}); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	k.Loop.Run()
	return k
}

// Do runs fn on the loop and drains whatever it scheduled.
func (k *Kit) Do(fn func(s *usecase.Session) error) error {
	err := k.Session.Do(context.Background(), fn)
	k.Loop.Run()
	return err
}
