package usecase

import (
	domain "github.com/aq2208/kiosk-api/internal/entity"
)

// ReturnParams are the query parameters the hosted payment page sends the kiosk back with.
type ReturnParams struct {
	Error             string
	TransID           string
	CardholderConfirm string // Ucaf_Cardholder_Confirm, unreliable and ignored
}

// HandleReturn resumes after the hosted payment page. An error parameter always
// wins; otherwise a trans_id is trusted as a completed payment.
func (s *Session) HandleReturn(p ReturnParams) {
	switch {
	case p.Error != "":
		s.log.Warn("session: payment page returned an error", "error", p.Error)
		if tx, ok := s.life.Transaction(); ok && tx.ID != "" && tx.Status == domain.StatusPending {
			s.failReturn(tx)
			return
		}
		// after a restart only the store knows the transaction
		gen := s.gen
		base := s.ctx()
		s.loop.Go(func() func() {
			snap, ok, err := s.store.Load(base)
			if err != nil {
				s.log.Warn("session: load order record", "err", err)
				ok = false
			}
			return func() {
				if gen != s.gen {
					return
				}
				tx := domain.Transaction{PaymentMethod: domain.PaymentCard}
				if ok {
					tx.ID = snap.TransactionID
				}
				s.failReturn(tx)
			}
		})

	case p.TransID != "":
		if p.CardholderConfirm == "0" {
			s.log.Warn("session: cardholder confirm is 0, trusting trans_id", "trans_id", p.TransID)
		}
		gen := s.gen
		base := s.ctx()
		s.loop.Go(func() func() {
			snap, ok, err := s.store.Load(base)
			if err != nil {
				s.log.Warn("session: load order record", "err", err)
				ok = false
			}
			if !ok || snap.TransactionID == "" {
				if err := s.store.SaveTransaction(base, p.TransID, false); err != nil {
					s.log.Warn("session: save returned transaction", "err", err)
				}
				snap.TransactionID = p.TransID
				snap.ReceiptTransactionID = p.TransID
			}
			return func() {
				if gen != s.gen {
					return
				}
				if len(snap.Lines) > 0 {
					s.pending = &snap
				}
				id := snap.ReceiptTransactionID
				if id == "" {
					id = snap.TransactionID
				}
				if !s.engine.Loaded() && !s.loading {
					s.loadCatalog(s.scanCode, id)
				}
				s.life.ConfirmReturn(id)
			}
		})

	default:
		if s.life.Redirecting() {
			s.log.Info("session: payment page returned without a result")
			s.life.Cancel()
			s.touch()
		}
		if s.life.InProgress() {
			return
		}
		base := s.ctx()
		s.loop.Go(func() func() {
			if err := s.store.ClearTransaction(base); err != nil {
				s.log.Warn("session: clear transaction", "err", err)
			}
			return nil
		})
	}
}

// failReturn resets to ERROR and reports tx as failed when its id is known.
func (s *Session) failReturn(tx domain.Transaction) {
	s.Reset("return_error")
	s.nav.ChangeScreen(domain.ScreenError)
	if tx.ID != "" {
		tx.Status = domain.StatusFailed
		s.onOutcome(Outcome{Transaction: tx, Reason: ReasonReturnURL})
	}
}
