package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
	"github.com/aq2208/kiosk-api/internal/logging"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

// SessionRunner runs fn on the session's event loop.
type SessionRunner interface {
	Do(ctx context.Context, fn func(*usecase.Session) error) error
}

// KioskHandler exposes the customer actions to the kiosk UI. Every action
// answers with the fresh view so the UI never needs a second round trip.
type KioskHandler struct {
	sessions SessionRunner
	timeout  time.Duration
}

func NewKioskHandler(s SessionRunner, timeout time.Duration) *KioskHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &KioskHandler{sessions: s, timeout: timeout}
}

type catalogReq struct {
	Code string `json:"code"`
}

type tabReq struct {
	Tab string `json:"tab" binding:"required"`
}

type paymentMethodReq struct {
	Method string `json:"method" binding:"required"`
}

type refundAckReq struct {
	Acknowledged *bool `json:"acknowledged" binding:"required"`
}

type languageReq struct {
	Lang string `json:"lang" binding:"required"`
}

// act runs fn on the loop and answers with the view taken right after it.
func (h *KioskHandler) act(c *gin.Context, fn func(s *usecase.Session) error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var view usecase.View
	err := h.sessions.Do(ctx, func(s *usecase.Session) error {
		if err := fn(s); err != nil {
			return err
		}
		view = s.View()
		return nil
	})
	if err != nil {
		status, code := errorStatus(err)
		if status >= http.StatusInternalServerError {
			logging.From(c).Error("kiosk action failed", "err", err)
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrNoSelection):
		return http.StatusUnprocessableEntity, "no_selection"
	case errors.Is(err, usecase.ErrRefundNotAcked):
		return http.StatusUnprocessableEntity, "refund_not_acknowledged"
	case errors.Is(err, usecase.ErrNoCatalog):
		return http.StatusConflict, "no_catalog"
	case errors.Is(err, usecase.ErrOrderInProgress):
		return http.StatusConflict, "order_in_progress"
	case errors.Is(err, usecase.ErrUnavailable):
		return http.StatusConflict, "unavailable"
	case errors.Is(err, eventloop.ErrStopped):
		return http.StatusServiceUnavailable, "stopped"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "busy"
	}
	return http.StatusInternalServerError, "internal"
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": msg})
}

func (h *KioskHandler) State(c *gin.Context) {
	h.act(c, func(*usecase.Session) error { return nil })
}

func (h *KioskHandler) LoadCatalog(c *gin.Context) {
	var req catalogReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	h.act(c, func(s *usecase.Session) error {
		s.LoadCatalog(req.Code)
		return nil
	})
}

func (h *KioskHandler) ChangeItem(c *gin.Context) {
	cat, ok := domain.ParseCategory(c.Param("category"))
	if !ok {
		badRequest(c, "unknown category")
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid product id")
		return
	}
	switch c.Param("op") {
	case "increment":
		h.act(c, func(s *usecase.Session) error { return s.Increment(cat, id) })
	case "decrement":
		h.act(c, func(s *usecase.Session) error { return s.Decrement(cat, id) })
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	}
}

func (h *KioskHandler) SelectTab(c *gin.Context) {
	var req tabReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	tab, ok := domain.ParseTab(req.Tab)
	if !ok {
		badRequest(c, "unknown tab")
		return
	}
	h.act(c, func(s *usecase.Session) error { return s.SelectTab(tab) })
}

func (h *KioskHandler) Next(c *gin.Context) {
	ua := c.Request.UserAgent()
	h.act(c, func(s *usecase.Session) error { return s.Next(ua) })
}

func (h *KioskHandler) Back(c *gin.Context) {
	h.act(c, func(s *usecase.Session) error { return s.Back() })
}

func (h *KioskHandler) SetPaymentMethod(c *gin.Context) {
	var req paymentMethodReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, ok := domain.ParsePaymentMethod(req.Method)
	if !ok {
		badRequest(c, "unknown payment method")
		return
	}
	h.act(c, func(s *usecase.Session) error { return s.SetPaymentMethod(m) })
}

func (h *KioskHandler) AcknowledgeRefund(c *gin.Context) {
	var req refundAckReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ack := *req.Acknowledged
	h.act(c, func(s *usecase.Session) error { return s.AcknowledgeRefund(ack) })
}

func (h *KioskHandler) OpenReceipt(c *gin.Context) {
	h.act(c, func(s *usecase.Session) error { return s.OpenReceipt() })
}

func (h *KioskHandler) InteractReceipt(c *gin.Context) {
	h.act(c, func(s *usecase.Session) error { return s.InteractReceipt() })
}

func (h *KioskHandler) ReceiptSent(c *gin.Context) {
	h.act(c, func(s *usecase.Session) error { return s.ReceiptSent() })
}

func (h *KioskHandler) Home(c *gin.Context) {
	h.act(c, func(s *usecase.Session) error {
		s.Home()
		return nil
	})
}

func (h *KioskHandler) SetLanguage(c *gin.Context) {
	var req languageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.act(c, func(s *usecase.Session) error {
		s.SetLanguage(req.Lang)
		return nil
	})
}

// Return is where the hosted payment page sends the kiosk browser back.
func (h *KioskHandler) Return(c *gin.Context) {
	p := usecase.ReturnParams{
		Error:             c.Query("error"),
		TransID:           c.Query("trans_id"),
		CardholderConfirm: c.Query("Ucaf_Cardholder_Confirm"),
	}
	logging.From(c).Info("payment return", "trans_id", p.TransID, "error", p.Error)
	h.act(c, func(s *usecase.Session) error {
		s.HandleReturn(p)
		return nil
	})
}
