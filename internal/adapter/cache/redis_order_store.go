package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	fieldTx         = "tx"
	fieldReceiptTx  = "receipt_tx"
	fieldInProgress = "in_progress"
	fieldSnapshot   = "snapshot"
)

// RedisOrderStore keeps one kiosk's order record in a hash. The scan code
// lives under its own key so clearing the order never forgets the device.
type RedisOrderStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisOrderStore(rdb *redis.Client, kioskID string, ttl time.Duration) *RedisOrderStore {
	return &RedisOrderStore{rdb: rdb, prefix: "kiosk:" + kioskID + ":", ttl: ttl}
}

func (s *RedisOrderStore) orderKey() string { return s.prefix + "order" }
func (s *RedisOrderStore) scanKey() string  { return s.prefix + "scan" }

type snapshotRecord struct {
	Catalog    map[int64]domain.ProductInfo `json:"catalog"`
	Lines      []domain.Line                `json:"lines"`
	Total      decimal.Decimal              `json:"total"`
	PointLabel string                       `json:"pointLabel"`
}

func (s *RedisOrderStore) SaveSnapshot(ctx context.Context, snap domain.OrderSnapshot) error {
	raw, err := json.Marshal(snapshotRecord{
		Catalog:    snap.Catalog,
		Lines:      snap.Lines,
		Total:      snap.Total,
		PointLabel: snap.PointLabel,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.hset(ctx, fieldSnapshot, string(raw))
}

func (s *RedisOrderStore) SaveTransaction(ctx context.Context, txID string, paymentInProgress bool) error {
	flag := "0"
	if paymentInProgress {
		flag = "1"
	}
	return s.hset(ctx, fieldTx, txID, fieldReceiptTx, txID, fieldInProgress, flag)
}

func (s *RedisOrderStore) hset(ctx context.Context, values ...any) error {
	key := s.orderKey()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, values...)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisOrderStore) Load(ctx context.Context) (domain.OrderSnapshot, bool, error) {
	m, err := s.rdb.HGetAll(ctx, s.orderKey()).Result()
	if err != nil {
		return domain.OrderSnapshot{}, false, err
	}
	if len(m) == 0 {
		return domain.OrderSnapshot{}, false, nil
	}
	snap := domain.OrderSnapshot{
		TransactionID:        m[fieldTx],
		ReceiptTransactionID: m[fieldReceiptTx],
		PaymentInProgress:    m[fieldInProgress] == "1",
	}
	if raw, ok := m[fieldSnapshot]; ok {
		var rec snapshotRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return domain.OrderSnapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
		}
		snap.Catalog = rec.Catalog
		snap.Lines = rec.Lines
		snap.Total = rec.Total
		snap.PointLabel = rec.PointLabel
	}
	return snap, true, nil
}

func (s *RedisOrderStore) ClearTransaction(ctx context.Context) error {
	return s.rdb.HDel(ctx, s.orderKey(), fieldTx, fieldInProgress).Err()
}

func (s *RedisOrderStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.orderKey()).Err()
}

func (s *RedisOrderStore) SaveScanCode(ctx context.Context, code string) error {
	return s.rdb.Set(ctx, s.scanKey(), code, 0).Err()
}

func (s *RedisOrderStore) ScanCode(ctx context.Context) (string, error) {
	code, err := s.rdb.Get(ctx, s.scanKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return code, err
}

var _ usecase.OrderStore = (*RedisOrderStore)(nil)
