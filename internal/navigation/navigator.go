// Package navigation tracks the single screen the kiosk UI is showing.
package navigation

import (
	"log/slog"
	"time"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
)

const DefaultOverlay = 500 * time.Millisecond

// Listener observes every transition, including re-entering the current screen.
type Listener func(from, to domain.Screen)

type Navigator struct {
	loop       eventloop.Loop
	log        *slog.Logger
	overlayFor time.Duration

	current      domain.Screen
	overlay      bool
	overlayTimer eventloop.Timer
	listeners    []Listener
}

func New(loop eventloop.Loop, overlayFor time.Duration, log *slog.Logger) *Navigator {
	if overlayFor <= 0 {
		overlayFor = DefaultOverlay
	}
	return &Navigator{loop: loop, log: log, overlayFor: overlayFor, current: domain.ScreenCatalog}
}

func (n *Navigator) Current() domain.Screen { return n.current }

// Overlay reports whether the transition overlay is still up.
func (n *Navigator) Overlay() bool { return n.overlay }

func (n *Navigator) OnChange(l Listener) { n.listeners = append(n.listeners, l) }

// ChangeScreen switches screens and raises the overlay for the configured window.
func (n *Navigator) ChangeScreen(to domain.Screen) {
	from := n.current
	n.raiseOverlay()
	n.current = to
	n.log.Info("navigation: screen changed", "from", from, "to", to)
	for _, l := range n.listeners {
		l(from, to)
	}
}

func (n *Navigator) raiseOverlay() {
	if n.overlayTimer != nil {
		n.overlayTimer.Stop()
	}
	n.overlay = true
	var t eventloop.Timer
	t = n.loop.AfterFunc(n.overlayFor, func() {
		if n.overlayTimer != t {
			return
		}
		n.overlay = false
		n.overlayTimer = nil
	})
	n.overlayTimer = t
}

// Cancel drops the overlay timer without changing screens.
func (n *Navigator) Cancel() {
	if n.overlayTimer != nil {
		n.overlayTimer.Stop()
		n.overlayTimer = nil
	}
	n.overlay = false
}

// Reset returns to the initial screen silently; listeners are not notified.
func (n *Navigator) Reset() {
	n.Cancel()
	n.current = domain.ScreenCatalog
}
