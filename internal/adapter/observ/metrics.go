// Package observ exports kiosk engine telemetry as Prometheus metrics.
package observ

import (
	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements usecase.Recorder. Every method only bumps a counter or
// gauge, so it is safe to call from the event loop.
type Recorder struct {
	screen   *prometheus.GaugeVec
	entered  *prometheus.CounterVec
	created  *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	polls    *prometheus.CounterVec
	resets   *prometheus.CounterVec

	current string
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		screen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kiosk_screen",
			Help: "1 for the screen currently shown, 0 otherwise",
		}, []string{"screen"}),
		entered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_screen_entered_total",
			Help: "Screen transitions by target screen",
		}, []string{"screen"}),
		created: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_orders_created_total",
			Help: "Orders accepted by the backend",
		}, []string{"method"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_order_outcomes_total",
			Help: "Terminal order outcomes",
		}, []string{"status"}),
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_status_polls_total",
			Help: "Transaction status calls by result",
		}, []string{"result"}),
		resets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_session_resets_total",
			Help: "Full session resets by reason",
		}, []string{"reason"}),
	}
}

func (r *Recorder) ScreenEntered(s domain.Screen) {
	if r.current != "" {
		r.screen.WithLabelValues(r.current).Set(0)
	}
	r.current = string(s)
	r.screen.WithLabelValues(r.current).Set(1)
	r.entered.WithLabelValues(r.current).Inc()
}

func (r *Recorder) OrderCreated(method string) { r.created.WithLabelValues(method).Inc() }

func (r *Recorder) OrderOutcome(status domain.Status) {
	r.outcomes.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) StatusPolled(result string) { r.polls.WithLabelValues(result).Inc() }

func (r *Recorder) SessionReset(reason string) { r.resets.WithLabelValues(reason).Inc() }

var _ usecase.Recorder = (*Recorder)(nil)
