// Package clock abstracts time so countdowns, polling tickers and cache
// expiry can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time and tickers.
// Use RealClock in production and MockClock in tests.
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// NowUnixMilli returns the current time as Unix milliseconds
	NowUnixMilli() int64
	// NewTicker returns a ticker that fires every d
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the board relies on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock implements Clock using the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// MockClock is a manually advanced clock. Tickers created from it fire when
// Advance or Set moves time past their next deadline. Like time.Ticker, a
// mock ticker drops ticks when the receiver is slow.
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
	tickers     []*mockTicker
}

// NewMockClock creates a new MockClock set to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *MockClock) NowUnixMilli() int64 {
	return m.Now().UnixMilli()
}

func (m *MockClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &mockTicker{
		clock:    m,
		interval: d,
		next:     m.currentTime.Add(d),
		ch:       make(chan time.Time, 1),
	}
	m.tickers = append(m.tickers, t)
	return t
}

// Set moves the clock to t, firing any tickers that became due.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	m.currentTime = t
	m.fireLocked()
	m.mu.Unlock()
}

// Advance moves the clock by d. Negative durations move it backwards and
// never fire tickers.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.currentTime = m.currentTime.Add(d)
	m.fireLocked()
	m.mu.Unlock()
}

// ActiveTickers reports how many tickers have not been stopped.
func (m *MockClock) ActiveTickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

func (m *MockClock) fireLocked() {
	for _, t := range m.tickers {
		if m.currentTime.Before(t.next) {
			continue
		}
		select {
		case t.ch <- m.currentTime:
		default:
		}
		for !m.currentTime.Before(t.next) {
			t.next = t.next.Add(t.interval)
		}
	}
}

func (m *MockClock) remove(target *mockTicker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tickers {
		if t == target {
			m.tickers = append(m.tickers[:i], m.tickers[i+1:]...)
			return
		}
	}
}

type mockTicker struct {
	clock    *MockClock
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopOnce sync.Once
}

func (t *mockTicker) C() <-chan time.Time { return t.ch }

func (t *mockTicker) Stop() {
	t.stopOnce.Do(func() { t.clock.remove(t) })
}
