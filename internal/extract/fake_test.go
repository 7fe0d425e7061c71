package extract

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/law-makers/hlsextract/internal/browser"
)

// fakeDriver always hands out the same handle/context pair, letting tests
// install a route handler once and drive requests through it directly.
type fakeDriver struct {
	handle *fakeHandle
}

func (d *fakeDriver) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Handle, error) {
	return d.handle, nil
}

type fakeHandle struct {
	ctx *fakeContext
}

func (h *fakeHandle) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.Context, error) {
	return h.ctx, nil
}
func (h *fakeHandle) IsConnected() bool           { return true }
func (h *fakeHandle) OnDisconnected(cb func())    {}
func (h *fakeHandle) Close(ctx context.Context) error { return nil }

// fakeContext captures the single route handler the pipeline installs and
// exposes deliver so a test can push a synthetic request through it from
// another goroutine while the pipeline blocks on settle/timeout.
type fakeContext struct {
	mu      sync.Mutex
	handler browser.RouteHandler
	routed  chan struct{}
	cookies []browser.Cookie
}

func newFakeContext() *fakeContext {
	return &fakeContext{routed: make(chan struct{}, 1)}
}

func (c *fakeContext) Route(ctx context.Context, handler browser.RouteHandler) error {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
	select {
	case c.routed <- struct{}{}:
	default:
	}
	return nil
}

func (c *fakeContext) Unroute(ctx context.Context) error {
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()
	return nil
}

func (c *fakeContext) OnPage(handler func(browser.Page)) {}

func (c *fakeContext) NewPage(ctx context.Context) (browser.Page, error) {
	return &fakePage{}, nil
}

func (c *fakeContext) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	return c.cookies, nil
}

func (c *fakeContext) Close(ctx context.Context) error { return nil }

// deliver simulates the driver routing one intercepted request through the
// handler the pipeline installed via Route.
func (c *fakeContext) deliver(url string, rt browser.ResourceType, headers map[string]string) *fakeRoute {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	route := &fakeRoute{req: browser.Request{URL: url, ResourceType: rt, Headers: headers}}
	if h != nil {
		h(context.Background(), route)
	}
	return route
}

type fakeRoute struct {
	req       browser.Request
	aborted   bool
	continued bool
}

func (r *fakeRoute) Request() browser.Request { return r.req }
func (r *fakeRoute) Abort(ctx context.Context) error {
	r.aborted = true
	return nil
}
func (r *fakeRoute) Continue(ctx context.Context) error {
	r.continued = true
	return nil
}

type fakePage struct {
	mu        sync.Mutex
	navigated string
	closed    bool
	frame     *fakeFrame
}

func (p *fakePage) Navigate(ctx context.Context, url string, opts browser.NavigateOptions) error {
	p.mu.Lock()
	p.navigated = url
	p.mu.Unlock()
	return nil
}

// WaitForTimeout blocks for the requested duration like the real driver
// does, so a test delivering a request concurrently has a real window to
// resolve the extraction before settle/timeout fires.
func (p *fakePage) WaitForTimeout(ctx context.Context, ms int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	}
}

func (p *fakePage) MainFrame() browser.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frame == nil {
		p.frame = &fakeFrame{}
	}
	return p.frame
}

func (p *fakePage) Frames(ctx context.Context) ([]browser.Frame, error) { return nil, nil }

func (p *fakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type fakeFrame struct {
	elements map[string]*fakeElement
}

func (f *fakeFrame) Find(ctx context.Context, selector string) (browser.Element, error) {
	if f.elements == nil {
		return nil, errors.New("no such element")
	}
	el, ok := f.elements[selector]
	if !ok {
		return nil, errors.New("no such element")
	}
	return el, nil
}

type fakeElement struct {
	box      *browser.BoundingBox
	clicked  bool
	clickErr error
}

func (e *fakeElement) BoundingBox(ctx context.Context) (*browser.BoundingBox, error) {
	return e.box, nil
}

func (e *fakeElement) Click(ctx context.Context, timeoutMs int) error {
	e.clicked = true
	return e.clickErr
}
