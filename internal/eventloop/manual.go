package eventloop

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Manual is a Loop driven by the caller on virtual time. Nothing runs until
// Run or Advance is called, which makes timer races reproducible in tests.
type Manual struct {
	clk *clock.Mock

	mu      sync.Mutex
	queue   []func()
	timers  []*manualTimer
	seq     uint64
	hold    bool
	held    []func() func()
	running bool
}

func NewManual() *Manual {
	m := clock.NewMock()
	m.Set(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	return &Manual{clk: m}
}

type manualTimer struct {
	due     time.Time
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
	owner   *Manual
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (m *Manual) Clock() *clock.Mock { return m.clk }

func (m *Manual) Now() time.Time { return m.clk.Now() }

func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// Go queues work as an ordinary task; while HoldWork is on it is parked
// instead, simulating a request that is still in flight.
func (m *Manual) Go(work func() func()) {
	m.mu.Lock()
	if m.hold {
		m.held = append(m.held, work)
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, func() {
		if cont := work(); cont != nil {
			m.Post(cont)
		}
	})
	m.mu.Unlock()
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{due: m.clk.Now().Add(d), seq: m.seq, fn: fn, owner: m}
	m.timers = append(m.timers, t)
	return t
}

func (m *Manual) Call(_ context.Context, fn func()) error {
	m.Post(fn)
	m.Run()
	return nil
}

// Run drains the task queue, including tasks queued while draining. It is a
// no-op when called from inside a running task.
func (m *Manual) Run() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.running = false
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
	}
}

// Advance moves virtual time forward by d, firing due timers in (due, creation)
// order and draining the queue after each one.
func (m *Manual) Advance(d time.Duration) {
	m.Run()
	target := m.clk.Now().Add(d)
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		m.clk.Set(t.due)
		m.Post(t.fn)
		m.Run()
	}
	m.clk.Set(target)
}

func (m *Manual) nextDue(limit time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due.Equal(m.timers[j].due) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].due.Before(m.timers[j].due)
	})
	if len(m.timers) == 0 || m.timers[0].due.After(limit) {
		return nil
	}
	t := m.timers[0]
	t.fired = true
	return t
}

// Pending counts timers that are armed and not yet fired.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (m *Manual) HoldWork(on bool) {
	m.mu.Lock()
	m.hold = on
	m.mu.Unlock()
}

// Release completes every parked request and drains the queue.
func (m *Manual) Release() {
	m.mu.Lock()
	held := m.held
	m.held = nil
	m.mu.Unlock()
	for _, work := range held {
		w := work
		m.Post(func() {
			if cont := w(); cont != nil {
				m.Post(cont)
			}
		})
	}
	m.Run()
}
