package usecase

import (
	"time"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
)

// pollRace races a status timer against a deadline counter. Whichever side
// resolves first stops both; anything arriving later finds resolved set.
type pollRace struct {
	txID     string
	method   domain.PaymentMethod
	epoch    uint64
	start    time.Time
	deadline time.Duration
	cadence  time.Duration

	resolved bool
	inFlight bool
	ticks    int
	statusT  eventloop.Timer
	counterT eventloop.Timer
}

func (l *OrderLifecycle) startCardPoll(txID string) {
	e := l.epoch
	base := l.ctx()
	l.loop.Go(func() func() {
		ctx, cancel := l.callCtx(base)
		iv, err := l.backend.PollInterval(ctx, txID)
		cancel()
		return func() {
			if e != l.epoch {
				return
			}
			if err != nil || iv.MaxTimeInSeconds <= 0 || iv.NumberOfTries <= 0 {
				l.log.Warn("lifecycle: poll interval unavailable, using defaults", "tx_id", txID, "err", err, "interval", iv)
				iv = l.cfg.DefaultInterval
			}
			maxTime := time.Duration(iv.MaxTimeInSeconds) * time.Second
			l.startRace(txID, domain.PaymentCard, maxTime, maxTime/time.Duration(iv.NumberOfTries))
		}
	})
}

// startRace arms the deadline counter before the status timer so that a tick
// landing on the deadline instant loses.
func (l *OrderLifecycle) startRace(txID string, method domain.PaymentMethod, deadline, cadence time.Duration) {
	l.stopRace()
	r := &pollRace{
		txID:     txID,
		method:   method,
		epoch:    l.epoch,
		start:    l.loop.Now(),
		deadline: deadline,
		cadence:  cadence,
	}
	l.race = r
	l.armCounter(r)
	r.statusT = l.loop.AfterFunc(cadence, func() { l.statusTick(r) })
	l.log.Info("lifecycle: polling status", "tx_id", txID, "method", method, "deadline", deadline, "cadence", cadence)
}

func (l *OrderLifecycle) live(r *pollRace) bool {
	return !r.resolved && l.race == r && r.epoch == l.epoch
}

// armCounter ticks once per second and measures elapsed time on the clock,
// so a slow loop cannot stretch the deadline.
func (l *OrderLifecycle) armCounter(r *pollRace) {
	next := time.Second
	if rem := r.deadline - l.loop.Now().Sub(r.start); rem < next {
		next = rem
	}
	r.counterT = l.loop.AfterFunc(next, func() {
		if !l.live(r) {
			return
		}
		if l.loop.Now().Sub(r.start) >= r.deadline {
			l.log.Warn("lifecycle: status deadline reached", "tx_id", r.txID, "ticks", r.ticks)
			l.resolve(r, domain.StatusFailed, ReasonDeadline)
			return
		}
		l.armCounter(r)
	})
}

func (l *OrderLifecycle) statusTick(r *pollRace) {
	if !l.live(r) {
		return
	}
	r.statusT = l.loop.AfterFunc(r.cadence, func() { l.statusTick(r) })
	if r.inFlight {
		l.rec.StatusPolled("skipped")
		return
	}
	r.inFlight = true
	r.ticks++
	base := l.ctx()
	l.loop.Go(func() func() {
		ctx, cancel := l.callCtx(base)
		st, err := l.backend.TransactionStatus(ctx, r.txID)
		cancel()
		return func() {
			r.inFlight = false
			if !l.live(r) {
				l.log.Debug("lifecycle: late status ignored", "tx_id", r.txID, "status", st)
				return
			}
			if err != nil {
				l.rec.StatusPolled("error")
				l.log.Warn("lifecycle: status call failed, retrying on next tick", "tx_id", r.txID, "err", err)
				return
			}
			l.applyStatus(r, st)
		}
	})
}

func (l *OrderLifecycle) applyStatus(r *pollRace, st domain.Status) {
	l.rec.StatusPolled(string(st))
	switch r.method {
	case domain.PaymentCrypto:
		switch st {
		case domain.StatusPending:
			if l.nav.Current() != domain.ScreenPaymentSuccess {
				l.nav.ChangeScreen(domain.ScreenPaymentSuccess)
			}
		case domain.StatusCompleted, domain.StatusFailed:
			l.resolve(r, st, ReasonStatus)
		default:
			l.log.Debug("lifecycle: unknown crypto status", "tx_id", r.txID, "status", st)
		}
	default:
		switch st {
		case domain.StatusPending:
		case domain.StatusCompleted:
			l.resolve(r, st, ReasonStatus)
		default:
			l.resolve(r, domain.StatusFailed, ReasonStatus)
		}
	}
}

func (l *OrderLifecycle) resolve(r *pollRace, st domain.Status, reason string) {
	l.stopRace()
	if l.tx == nil || l.tx.ID != r.txID {
		l.tx = &domain.Transaction{ID: r.txID, PaymentMethod: r.method}
	}
	l.tx.Status = st
	l.finish(reason)
}

func (l *OrderLifecycle) stopRace() {
	r := l.race
	if r == nil {
		return
	}
	r.resolved = true
	if r.statusT != nil {
		r.statusT.Stop()
	}
	if r.counterT != nil {
		r.counterT.Stop()
	}
	l.race = nil
}
