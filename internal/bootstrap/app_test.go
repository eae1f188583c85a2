package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aq2208/kiosk-api/configs"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) configs.Config {
	var cfg configs.Config
	cfg.App.HTTPAddr = ":0"
	cfg.App.LogLevel = "error"
	cfg.Kiosk.ID = "k1"
	cfg.Kiosk.Language = "ka"
	cfg.Kiosk.Timeouts.Success = 90 * time.Second
	cfg.Kiosk.Timeouts.Payment = 3 * time.Minute
	cfg.Kiosk.Payment.DefaultMaxTime = 120
	cfg.Kiosk.Payment.DefaultAttempts = 24
	cfg.Vending.BaseURL = baseURL
	cfg.ApplyDefaults()
	return cfg
}

func TestSessionConfigMapping(t *testing.T) {
	sc := SessionConfig(testConfig("http://vms.example"))
	assert.Equal(t, "k1", sc.KioskID)
	assert.Equal(t, "ka", sc.Language)
	assert.Equal(t, 90*time.Second, sc.Timeouts.Success)
	assert.Equal(t, 3*time.Minute, sc.Timeouts.Payment)
	assert.Equal(t, 120, sc.Lifecycle.DefaultInterval.MaxTimeInSeconds)
	assert.Equal(t, 24, sc.Lifecycle.DefaultInterval.NumberOfTries)
}

func TestInitWithConfigWithoutOptionalInfra(t *testing.T) {
	k, cleanup, err := InitWithConfig(testConfig("http://127.0.0.1:1/vms/api/mobile/kiosk"))
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, k.Rabbit)
	assert.Nil(t, k.Dedup)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Loop.Run(ctx) }()

	var lang string
	require.NoError(t, k.Session.Do(context.Background(), func(s *usecase.Session) error {
		lang = s.Language()
		return nil
	}))
	assert.Equal(t, "ka", lang)

	w := httptest.NewRecorder()
	k.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/kiosk/state", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	cancel()
	<-done
}

func TestInitWithConfigRejectsBadBackendURL(t *testing.T) {
	_, _, err := InitWithConfig(testConfig("not a url"))
	assert.Error(t, err)
}
