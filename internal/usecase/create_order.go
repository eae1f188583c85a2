package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/shopspring/decimal"
)

var ErrOrderInProgress = errors.New("order already in progress")

type OrderInput struct {
	PointID  int64
	Lines    []domain.Line
	Total    decimal.Decimal
	Snapshot domain.OrderSnapshot
	Wallet   string // card payment method on the wire
}

// CreateOrder places a card or zero-price order. A zero total lands on SUCCESS
// without polling; a card order either publishes a redirect to the hosted
// payment page or polls until the deadline.
func (l *OrderLifecycle) CreateOrder(in OrderInput) error {
	if l.InProgress() {
		return ErrOrderInProgress
	}
	l.creating = true
	e := l.epoch
	base := l.ctx()
	free := in.Total.IsZero()

	l.loop.Go(func() func() {
		l.persistSnapshot(base, in.Snapshot)

		ctx, cancel := l.callCtx(base)
		created, err := l.backend.CreateOrder(ctx, in.PointID, domain.OrderRequest{Products: in.Lines, PaymentMethod: in.Wallet})
		cancel()

		return func() {
			if e != l.epoch {
				l.log.Info("lifecycle: late create response ignored", "tx_id", created.TransactionID)
				return
			}
			l.creating = false
			switch {
			case err != nil:
				l.createFailed(domain.PaymentCard, err)
			case free:
				l.completeFree(created.TransactionID)
			case created.TransactionID == "":
				l.createFailed(domain.PaymentCard, errors.New("create-order: response without transactionId"))
			default:
				l.cardCreated(created)
			}
		}
	})
	return nil
}

// CreateCryptoOrder places a crypto order and polls it while the checkout
// frame is shown. A zero total goes through CreateOrder instead.
func (l *OrderLifecycle) CreateCryptoOrder(in OrderInput) error {
	if in.Total.IsZero() {
		return l.CreateOrder(in)
	}
	if l.InProgress() {
		return ErrOrderInProgress
	}
	l.creating = true
	e := l.epoch
	base := l.ctx()

	l.loop.Go(func() func() {
		l.persistSnapshot(base, in.Snapshot)

		ctx, cancel := l.callCtx(base)
		created, err := l.backend.CreateCryptoOrder(ctx, in.PointID, in.Lines)
		cancel()

		return func() {
			if e != l.epoch {
				l.log.Info("lifecycle: late create response ignored", "tx_id", created.TransactionID)
				return
			}
			l.creating = false
			switch {
			case err != nil:
				l.createFailed(domain.PaymentCrypto, err)
			case created.TransactionID == "":
				l.createFailed(domain.PaymentCrypto, errors.New("create-crypto-order: response without transactionId"))
			default:
				l.tx = &domain.Transaction{
					ID:            created.TransactionID,
					Status:        domain.StatusPending,
					PaymentMethod: domain.PaymentCrypto,
					CheckoutURL:   created.CheckoutURL,
				}
				l.rec.OrderCreated(string(domain.PaymentCrypto))
				l.log.Info("lifecycle: crypto order created", "tx_id", created.TransactionID)
				l.persistTransaction(created.TransactionID)
				l.startRace(created.TransactionID, domain.PaymentCrypto, l.cfg.CryptoDeadline, l.cfg.CryptoCadence)
			}
		}
	})
	return nil
}

func (l *OrderLifecycle) completeFree(txID string) {
	if txID == "" {
		txID = domain.FreeTransactionPrefix + strconv.FormatInt(l.loop.Now().UnixMilli(), 10)
	}
	l.tx = &domain.Transaction{ID: txID, Status: domain.StatusCompleted, PaymentMethod: domain.PaymentCard}
	l.rec.OrderCreated("free")
	l.finish(ReasonFree)
}

func (l *OrderLifecycle) cardCreated(created domain.CreatedOrder) {
	l.tx = &domain.Transaction{
		ID:            created.TransactionID,
		Status:        domain.StatusPending,
		PaymentMethod: domain.PaymentCard,
		CheckoutURL:   created.CheckoutURL,
	}
	l.rec.OrderCreated(string(domain.PaymentCard))
	l.persistTransaction(created.TransactionID)

	if created.CheckoutURL != "" && created.OuterGeneratedID != "" {
		l.redirect = redirectURL(created.CheckoutURL, created.OuterGeneratedID)
		l.log.Info("lifecycle: card order redirected", "tx_id", created.TransactionID, "outer_id", created.OuterGeneratedID)
		l.onAway()
		return
	}
	l.nav.ChangeScreen(domain.ScreenPaymentSuccess)
	l.startCardPoll(created.TransactionID)
}

func (l *OrderLifecycle) createFailed(method domain.PaymentMethod, err error) {
	reason := ReasonCreateFailed
	screen := domain.ScreenError
	if errors.Is(err, ErrDeviceBusy) {
		reason = ReasonDeviceBusy
		screen = domain.ScreenBusy
	}
	l.log.Warn("lifecycle: order creation failed", "method", method, "err", err)
	l.tx = nil
	l.nav.ChangeScreen(screen)
	l.rec.OrderOutcome(domain.StatusFailed)
	l.onDone(Outcome{Transaction: domain.Transaction{Status: domain.StatusFailed, PaymentMethod: method}, Reason: reason})
}

// Store writes are best effort: a kiosk that cannot persist still sells.
func (l *OrderLifecycle) persistSnapshot(ctx context.Context, s domain.OrderSnapshot) {
	if err := l.store.SaveSnapshot(ctx, s); err != nil {
		l.log.Warn("lifecycle: save order snapshot", "err", err)
	}
}

// persistTransaction records an accepted order. It runs only for the current
// epoch, so a late create can never overwrite a newer order's id.
func (l *OrderLifecycle) persistTransaction(txID string) {
	e := l.epoch
	base := l.ctx()
	l.loop.Go(func() func() {
		if err := l.store.SaveTransaction(base, txID, true); err != nil {
			l.log.Warn("lifecycle: save transaction", "tx_id", txID, "err", err)
			return nil
		}
		return func() {
			if e == l.epoch || l.InProgress() {
				return
			}
			// reset while the write was in flight
			l.loop.Go(func() func() {
				if err := l.store.ClearTransaction(base); err != nil {
					l.log.Warn("lifecycle: clear stale transaction", "err", fmt.Errorf("tx %s: %w", txID, err))
				}
				return nil
			})
		}
	})
}
