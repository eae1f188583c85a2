package navigation

import (
	"io"
	"log/slog"
	"testing"
	"time"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
	"github.com/stretchr/testify/assert"
)

func newNav() (*Navigator, *eventloop.Manual) {
	loop := eventloop.NewManual()
	return New(loop, 0, slog.New(slog.NewTextHandler(io.Discard, nil))), loop
}

func TestStartsOnCatalog(t *testing.T) {
	n, _ := newNav()
	assert.Equal(t, domain.ScreenCatalog, n.Current())
	assert.False(t, n.Overlay())
}

func TestOverlayFollowsEveryTransition(t *testing.T) {
	n, loop := newNav()

	n.ChangeScreen(domain.ScreenPaymentMethod)
	assert.True(t, n.Overlay())
	loop.Advance(499 * time.Millisecond)
	assert.True(t, n.Overlay())
	loop.Advance(time.Millisecond)
	assert.False(t, n.Overlay())
	assert.Equal(t, 0, loop.Pending())
}

func TestBackToBackTransitionsExtendOverlay(t *testing.T) {
	n, loop := newNav()

	n.ChangeScreen(domain.ScreenPaymentMethod)
	loop.Advance(400 * time.Millisecond)
	n.ChangeScreen(domain.ScreenPaymentSuccess)
	loop.Advance(400 * time.Millisecond)
	assert.True(t, n.Overlay(), "the first window must not lower the second overlay")
	loop.Advance(100 * time.Millisecond)
	assert.False(t, n.Overlay())
	assert.Equal(t, 0, loop.Pending())
}

func TestListenersSeeFromAndTo(t *testing.T) {
	n, _ := newNav()
	var seen [][2]domain.Screen
	n.OnChange(func(from, to domain.Screen) { seen = append(seen, [2]domain.Screen{from, to}) })

	n.ChangeScreen(domain.ScreenPaymentMethod)
	n.ChangeScreen(domain.ScreenError)
	n.ChangeScreen(domain.ScreenError)

	assert.Equal(t, [][2]domain.Screen{
		{domain.ScreenCatalog, domain.ScreenPaymentMethod},
		{domain.ScreenPaymentMethod, domain.ScreenError},
		{domain.ScreenError, domain.ScreenError},
	}, seen)
}

func TestResetCancelsOverlay(t *testing.T) {
	n, loop := newNav()
	called := 0
	n.OnChange(func(_, _ domain.Screen) { called++ })

	n.ChangeScreen(domain.ScreenSuccess)
	n.Reset()
	assert.Equal(t, domain.ScreenCatalog, n.Current())
	assert.False(t, n.Overlay())
	assert.Equal(t, 0, loop.Pending())
	assert.Equal(t, 1, called)
}
