package browser

import (
	"context"
	"sort"
	"sync"
	"time"
)

// fakeClock lets pool tests drive idle/max-age/circuit timers deterministically,
// without a real clock or the Go toolchain's -race sleep jitter.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	fireAt  time.Time
	fn      func()
	fired   bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fireAt: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the fake clock forward and synchronously fires every timer
// whose deadline has now passed, in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.fireAt.After(now) {
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].fireAt.Before(due[j].fireAt) })
	for _, t := range due {
		t.fired = true
		t.fn()
	}
}

// fakeDriver launches fakeHandles, optionally failing every launch with a
// fixed error to drive circuit-breaker tests.
type fakeDriver struct {
	mu        sync.Mutex
	launchErr error
	launches  int
	handles   []*fakeHandle
}

func (d *fakeDriver) Launch(ctx context.Context, opts LaunchOptions) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.launches++
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	h := &fakeHandle{connected: true}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDriver) launchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launches
}

type fakeHandle struct {
	mu           sync.Mutex
	connected    bool
	closed       bool
	disconnectCb func()
}

func (h *fakeHandle) NewContext(ctx context.Context, opts ContextOptions) (Context, error) {
	return &fakeContext{}, nil
}

func (h *fakeHandle) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *fakeHandle) OnDisconnected(cb func()) {
	h.mu.Lock()
	h.disconnectCb = cb
	h.mu.Unlock()
}

func (h *fakeHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	h.connected = false
	h.closed = true
	h.mu.Unlock()
	return nil
}

// disconnect simulates an unexpected driver-side disconnect, invoking the
// callback the pool registered via OnDisconnected.
func (h *fakeHandle) disconnect() {
	h.mu.Lock()
	h.connected = false
	cb := h.disconnectCb
	h.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type fakeContext struct{}

func (c *fakeContext) Route(ctx context.Context, handler RouteHandler) error { return nil }
func (c *fakeContext) Unroute(ctx context.Context) error                    { return nil }
func (c *fakeContext) OnPage(handler func(Page))                            {}
func (c *fakeContext) NewPage(ctx context.Context) (Page, error)            { return nil, nil }
func (c *fakeContext) Cookies(ctx context.Context) ([]Cookie, error)        { return nil, nil }
func (c *fakeContext) Close(ctx context.Context) error                     { return nil }
