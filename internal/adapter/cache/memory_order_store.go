package cache

import (
	"context"
	"maps"
	"slices"
	"sync"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/usecase"
)

// MemoryOrderStore is the order store used when no Redis is configured.
// Nothing survives a process restart.
type MemoryOrderStore struct {
	mu   sync.Mutex
	snap domain.OrderSnapshot
	has  bool
	scan string
}

func NewMemoryOrderStore() *MemoryOrderStore { return &MemoryOrderStore{} }

func (s *MemoryOrderStore) SaveSnapshot(_ context.Context, snap domain.OrderSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Catalog = maps.Clone(snap.Catalog)
	s.snap.Lines = slices.Clone(snap.Lines)
	s.snap.Total = snap.Total
	s.snap.PointLabel = snap.PointLabel
	s.has = true
	return nil
}

func (s *MemoryOrderStore) SaveTransaction(_ context.Context, txID string, paymentInProgress bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.TransactionID = txID
	s.snap.ReceiptTransactionID = txID
	s.snap.PaymentInProgress = paymentInProgress
	s.has = true
	return nil
}

func (s *MemoryOrderStore) Load(context.Context) (domain.OrderSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	out.Catalog = maps.Clone(s.snap.Catalog)
	out.Lines = slices.Clone(s.snap.Lines)
	return out, s.has, nil
}

func (s *MemoryOrderStore) ClearTransaction(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.TransactionID = ""
	s.snap.PaymentInProgress = false
	return nil
}

func (s *MemoryOrderStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = domain.OrderSnapshot{}
	s.has = false
	return nil
}

func (s *MemoryOrderStore) SaveScanCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scan = code
	return nil
}

func (s *MemoryOrderStore) ScanCode(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scan, nil
}

var _ usecase.OrderStore = (*MemoryOrderStore)(nil)
