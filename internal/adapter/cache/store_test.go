package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func sampleSnapshot() domain.OrderSnapshot {
	return domain.OrderSnapshot{
		Catalog: map[int64]domain.ProductInfo{
			1: {Name: "Ristretto", UnitPrice: decimal.RequireFromString("2.25"), Classification: domain.AmericanCapsule},
		},
		Lines:      []domain.Line{{ID: 1, Quantity: 3}},
		Total:      decimal.RequireFromString("6.75"),
		PointLabel: "Tbilisi Mall",
	}
}

func stores(t *testing.T) map[string]usecase.OrderStore {
	_, rdb := newRedis(t)
	return map[string]usecase.OrderStore{
		"redis":  NewRedisOrderStore(rdb, "k1", time.Hour),
		"memory": NewMemoryOrderStore(),
	}
}

func TestOrderStoreLifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Load(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SaveTransaction(ctx, "TX1", true))
			require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot()))

			got, ok, err := s.Load(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "TX1", got.TransactionID)
			assert.Equal(t, "TX1", got.ReceiptTransactionID)
			assert.True(t, got.PaymentInProgress)
			assert.Equal(t, []domain.Line{{ID: 1, Quantity: 3}}, got.Lines)
			assert.Equal(t, "6.75", got.Total.String())
			assert.Equal(t, "Ristretto", got.Catalog[1].Name)
			assert.True(t, got.Catalog[1].UnitPrice.Equal(decimal.RequireFromString("2.25")))
			assert.Equal(t, "Tbilisi Mall", got.PointLabel)

			require.NoError(t, s.ClearTransaction(ctx))
			got, ok, err = s.Load(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Empty(t, got.TransactionID)
			assert.False(t, got.PaymentInProgress)
			assert.Equal(t, "TX1", got.ReceiptTransactionID)
			assert.Len(t, got.Lines, 1)
		})
	}
}

func TestOrderStoreClearKeepsScanCode(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			code, err := s.ScanCode(ctx)
			require.NoError(t, err)
			assert.Empty(t, code)

			require.NoError(t, s.SaveScanCode(ctx, "QR1"))
			require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot()))
			require.NoError(t, s.Clear(ctx))

			_, ok, err := s.Load(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			code, err = s.ScanCode(ctx)
			require.NoError(t, err)
			assert.Equal(t, "QR1", code)
		})
	}
}

func TestRedisOrderStoreExpiresRecord(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisOrderStore(rdb, "k1", time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SaveTransaction(ctx, "TX1", false))
	require.NoError(t, s.SaveScanCode(ctx, "QR1"))
	assert.Equal(t, time.Minute, mr.TTL("kiosk:k1:order"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	code, err := s.ScanCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "QR1", code)
}

func TestRedisOrderStoreKeysArePerKiosk(t *testing.T) {
	_, rdb := newRedis(t)
	a := NewRedisOrderStore(rdb, "a", 0)
	b := NewRedisOrderStore(rdb, "b", 0)
	ctx := context.Background()

	require.NoError(t, a.SaveTransaction(ctx, "TXA", true))
	_, ok, err := b.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisOrderStoreRejectsCorruptSnapshot(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisOrderStore(rdb, "k1", 0)
	mr.HSet("kiosk:k1:order", "snapshot", "{not json")

	_, _, err := s.Load(context.Background())
	assert.Error(t, err)
}

func TestRedisDedupStore(t *testing.T) {
	mr, rdb := newRedis(t)
	d := NewRedisDedupStore(rdb, "k1", time.Minute)
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "status", "TX1:COMPLETED")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, "status", "TX1:COMPLETED")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Forget(ctx, "status", "TX1:COMPLETED"))
	first, err = d.FirstSeen(ctx, "status", "TX1:COMPLETED")
	require.NoError(t, err)
	assert.True(t, first)

	mr.FastForward(2 * time.Minute)
	first, err = d.FirstSeen(ctx, "status", "TX1:COMPLETED")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestRedisDedupStoreIsPerKiosk(t *testing.T) {
	mr, rdb := newRedis(t)
	a := NewRedisDedupStore(rdb, "k1", time.Minute)
	b := NewRedisDedupStore(rdb, "k2", time.Minute)
	ctx := context.Background()

	first, err := a.FirstSeen(ctx, "status", "TX1:COMPLETED")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = b.FirstSeen(ctx, "status", "TX1:COMPLETED")
	require.NoError(t, err)
	assert.True(t, first, "another kiosk's mark must not hide the event")
	assert.True(t, mr.Exists("kiosk:k1:dedup:status:TX1:COMPLETED"))
	assert.True(t, mr.Exists("kiosk:k2:dedup:status:TX1:COMPLETED"))
}
