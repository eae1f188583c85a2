package http

import (
	"log/slog"
	"net/http"

	"github.com/aq2208/kiosk-api/internal/adapter/http/middleware"
	"github.com/aq2208/kiosk-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *KioskHandler, gatherer prometheus.Gatherer, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	r.Use(middleware.Logging(log))

	r.GET("/healthz", func(c *gin.Context) {
		logging.From(c).Debug("health check")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	k := r.Group("/v1/kiosk")
	{
		k.GET("/state", h.State)
		k.POST("/catalog", h.LoadCatalog)
		k.POST("/items/:category/:id/:op", h.ChangeItem)
		k.POST("/tab", h.SelectTab)
		k.POST("/next", h.Next)
		k.POST("/back", h.Back)
		k.POST("/payment-method", h.SetPaymentMethod)
		k.POST("/refund-ack", h.AcknowledgeRefund)
		k.POST("/receipt/open", h.OpenReceipt)
		k.POST("/receipt/interact", h.InteractReceipt)
		k.POST("/receipt/sent", h.ReceiptSent)
		k.POST("/home", h.Home)
		k.POST("/language", h.SetLanguage)
		k.GET("/return", h.Return)
		k.POST("/return", h.Return)
	}

	return r
}
