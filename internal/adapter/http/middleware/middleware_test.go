package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"log/slog"

	"github.com/aq2208/kiosk-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware(), Logging(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	r.POST("/v1/kiosk/catalog", func(c *gin.Context) {
		var req struct {
			Code string `json:"code"`
		}
		_ = c.ShouldBindJSON(&req)
		logging.FromCtx(c.Request.Context()).Info("inside")
		c.JSON(http.StatusOK, gin.H{"ok": req.Code != ""})
	})
	return r
}

func TestLoggingAssignsRequestIDAndRedacts(t *testing.T) {
	var buf bytes.Buffer
	r := newEngine(&buf)

	req := httptest.NewRequest(http.MethodPost, "/v1/kiosk/catalog", strings.NewReader(`{"code":"QR-SECRET"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String(), "handler must see the unredacted body")
	reqID := w.Header().Get("X-Request-Id")
	assert.Len(t, reqID, 36)

	out := buf.String()
	assert.Contains(t, out, `"msg":"inside"`)
	assert.Contains(t, out, reqID)
	assert.NotContains(t, out, "QR-SECRET")
	assert.Contains(t, out, "***redacted***")
}

func TestLoggingKeepsIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := newEngine(&buf)

	req := httptest.NewRequest(http.MethodPost, "/v1/kiosk/catalog", nil)
	req.Header.Set("X-Request-Id", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-Id"))
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	r := newEngine(&buf)

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

func TestRedactJSONLeavesNonJSONAlone(t *testing.T) {
	assert.Equal(t, []byte("plain"), redactJSON([]byte("plain")))
	assert.JSONEq(t, `{"a":{"token":"***redacted***"},"b":[1]}`, string(redactJSON([]byte(`{"a":{"token":"x"},"b":[1]}`))))
}
