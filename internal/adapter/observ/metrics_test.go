package observ

import (
	"testing"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"github.com/aq2208/kiosk-api/internal/usecase/usecasetest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderTracksCurrentScreen(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ScreenEntered(domain.ScreenPaymentMethod)
	r.ScreenEntered(domain.ScreenSuccess)

	assert.Equal(t, 0.0, testutil.ToFloat64(r.screen.WithLabelValues(string(domain.ScreenPaymentMethod))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.screen.WithLabelValues(string(domain.ScreenSuccess))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.entered.WithLabelValues(string(domain.ScreenSuccess))))
}

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.OrderCreated("CARD")
	r.OrderOutcome(domain.StatusCompleted)
	r.OrderOutcome(domain.StatusFailed)
	r.StatusPolled("PENDING")
	r.StatusPolled("PENDING")
	r.SessionReset("idle_catalog")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.created.WithLabelValues("CARD")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.outcomes))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.polls.WithLabelValues("PENDING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resets.WithLabelValues("idle_catalog")))
}

func TestRecorderWiredIntoSession(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	kit := usecasetest.NewKit(t, r)

	require.NoError(t, kit.Do(func(s *usecase.Session) error {
		s.Reset("remote")
		return nil
	}))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resets.WithLabelValues("remote")))
}
