// Package timeouts resets an abandoned kiosk after a per-screen idle window.
package timeouts

import (
	"log/slog"
	"time"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
)

type Kind string

const (
	KindStatus  Kind = "status" // ERROR, DONE and BUSY
	KindReceipt Kind = "receipt"
	KindSuccess Kind = "success"
	KindCatalog Kind = "catalog" // CATALOG and PAYMENT_METHOD while something is selected
	KindPayment Kind = "payment" // customer away on the hosted payment page
)

type Durations struct {
	Status  time.Duration
	Receipt time.Duration
	Success time.Duration
	Catalog time.Duration
	Payment time.Duration
}

func DefaultDurations() Durations {
	return Durations{
		Status:  10 * time.Second,
		Receipt: 60 * time.Second,
		Success: 120 * time.Second,
		Catalog: 10 * time.Second,
		Payment: 5 * time.Minute,
	}
}

func (d Durations) of(k Kind) time.Duration {
	switch k {
	case KindStatus:
		return d.Status
	case KindReceipt:
		return d.Receipt
	case KindSuccess:
		return d.Success
	case KindCatalog:
		return d.Catalog
	case KindPayment:
		return d.Payment
	}
	return 0
}

// KindFor returns the idle window a screen runs under. Catalog screens only
// count while a selection exists.
func KindFor(s domain.Screen, hasSelection bool) (Kind, bool) {
	switch s {
	case domain.ScreenError, domain.ScreenDone, domain.ScreenBusy:
		return KindStatus, true
	case domain.ScreenSuccess:
		return KindSuccess, true
	case domain.ScreenReceipt:
		return KindReceipt, true
	case domain.ScreenCatalog, domain.ScreenPaymentMethod:
		return KindCatalog, hasSelection
	}
	return "", false
}

type armed struct {
	timer eventloop.Timer
	gen   uint64
}

type Supervisor struct {
	loop     eventloop.Loop
	log      *slog.Logger
	d        Durations
	onExpire func(Kind)

	gen    uint64
	timers map[Kind]*armed
}

func New(loop eventloop.Loop, d Durations, onExpire func(Kind), log *slog.Logger) *Supervisor {
	def := DefaultDurations()
	if d.Status <= 0 {
		d.Status = def.Status
	}
	if d.Receipt <= 0 {
		d.Receipt = def.Receipt
	}
	if d.Success <= 0 {
		d.Success = def.Success
	}
	if d.Catalog <= 0 {
		d.Catalog = def.Catalog
	}
	if d.Payment <= 0 {
		d.Payment = def.Payment
	}
	return &Supervisor{loop: loop, log: log, d: d, onExpire: onExpire, timers: map[Kind]*armed{}}
}

// ScreenChanged drops every idle timer and arms the one the new screen runs under.
func (s *Supervisor) ScreenChanged(to domain.Screen, hasSelection bool) {
	s.clearAll()
	if k, ok := KindFor(to, hasSelection); ok {
		s.Restart(k)
	}
}

// Touch records customer activity on the current screen.
func (s *Supervisor) Touch(on domain.Screen, hasSelection bool) {
	k, ok := KindFor(on, hasSelection)
	switch {
	case ok:
		s.Restart(k)
	case on == domain.ScreenCatalog || on == domain.ScreenPaymentMethod:
		s.Clear(KindCatalog)
	}
}

func (s *Supervisor) Restart(k Kind) {
	s.Clear(k)
	a := &armed{gen: s.gen}
	a.timer = s.loop.AfterFunc(s.d.of(k), func() {
		if a.gen != s.gen || s.timers[k] != a {
			return
		}
		delete(s.timers, k)
		s.log.Info("timeouts: idle window expired", "kind", k)
		s.onExpire(k)
	})
	s.timers[k] = a
}

func (s *Supervisor) Clear(k Kind) {
	if a, ok := s.timers[k]; ok {
		a.timer.Stop()
		delete(s.timers, k)
	}
}

func (s *Supervisor) clearAll() {
	for k := range s.timers {
		s.Clear(k)
	}
}

// CancelAll stops every timer and invalidates callbacks already queued.
func (s *Supervisor) CancelAll() {
	s.gen++
	s.clearAll()
}

func (s *Supervisor) Armed(k Kind) bool {
	_, ok := s.timers[k]
	return ok
}
