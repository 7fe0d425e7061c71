package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// ErrElementNotFound is returned by Frame.Find when no node matches the
// requested selector.
var ErrElementNotFound = errors.New("browser: element not found")

// ChromeDriver launches real headless Chromium via chromedp, implementing
// the Driver capability set (spec §4.5).
type ChromeDriver struct{}

func NewChromeDriver() *ChromeDriver { return &ChromeDriver{} }

// Launch starts a new browser process behind a dedicated exec allocator.
// The allocator and browser-level context are rooted in context.Background,
// not the passed ctx, so the browser outlives the request that triggered
// the launch; ctx only bounds how long Launch itself waits to come up.
func (d *ChromeDriver) Launch(ctx context.Context, opts LaunchOptions) (Handle, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-domain-reliability", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		// disable-features carries the site-isolation-off flag the same way
		// the teacher's own allocator options do (browser_pool.go).
		chromedp.Flag("disable-features", "site-per-process,TranslateUI,BlinkGenPropertyTrees"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("renderer-process-limit", "1"),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("headless", "new"),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("js-flags", "--max-old-space-size=128"),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(browserCtx) }()

	select {
	case err := <-launched:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	return &chromeHandle{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

type chromeHandle struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu             sync.Mutex
	onDisconnected func()
	watchOnce      sync.Once
}

func (h *chromeHandle) NewContext(ctx context.Context, opts ContextOptions) (Context, error) {
	tabCtx, cancel := chromedp.NewContext(h.browserCtx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	actions := []chromedp.Action{
		network.Enable(),
		page.Enable(),
	}
	if opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(opts.UserAgent))
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		scale := opts.DeviceScaleFactor
		if scale == 0 {
			scale = 1
		}
		actions = append(actions, emulation.SetDeviceMetricsOverride(
			int64(opts.ViewportWidth), int64(opts.ViewportHeight), scale, opts.Mobile,
		).WithScreenOrientation(&emulation.ScreenOrientation{Type: emulation.OrientationTypePortraitPrimary}))
	}
	if opts.HasTouch {
		actions = append(actions, emulation.SetTouchEmulationEnabled(true))
	}
	if opts.BypassCSP {
		actions = append(actions, page.SetBypassCSP(true))
	}
	if opts.IgnoreHTTPSErrors {
		actions = append(actions, network.SetIgnoreCertificateErrors(true))
	}
	if opts.BlockServiceWorkers {
		actions = append(actions, network.SetBypassServiceWorker(true))
	}
	if opts.ReducedMotion {
		actions = append(actions, emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-reduced-motion", Value: "reduce"},
		}))
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("configure browser context: %w", err)
	}

	return &chromeContext{ctx: tabCtx, cancel: cancel}, nil
}

func (h *chromeHandle) IsConnected() bool {
	select {
	case <-h.browserCtx.Done():
		return false
	default:
		return true
	}
}

func (h *chromeHandle) OnDisconnected(callback func()) {
	h.mu.Lock()
	h.onDisconnected = callback
	h.mu.Unlock()

	h.watchOnce.Do(func() {
		go func() {
			<-h.browserCtx.Done()
			h.mu.Lock()
			cb := h.onDisconnected
			h.mu.Unlock()
			if cb != nil {
				cb()
			}
		}()
	})
}

func (h *chromeHandle) Close(ctx context.Context) error {
	// A deliberate close is not a disconnect: drop the callback first so the
	// watcher goroutine does not report it.
	h.mu.Lock()
	h.onDisconnected = nil
	h.mu.Unlock()
	h.browserCancel()
	h.allocCancel()
	return nil
}

// chromeContext is a single browser-context "profile" (spec §3
// "ExtractionContext"): a fresh cookie jar and its own route registration,
// isolated from every other concurrent extraction on the same Handle.
type chromeContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	routeHandler RouteHandler
	routeActive  bool
	onPage       func(Page)
	pageCancels  []context.CancelFunc
}

func (c *chromeContext) Route(ctx context.Context, handler RouteHandler) error {
	c.mu.Lock()
	if c.routeHandler != nil {
		c.mu.Unlock()
		return errors.New("browser: context already has a route handler")
	}
	c.routeHandler = handler
	c.routeActive = true
	c.mu.Unlock()

	if err := chromedp.Run(c.ctx, fetch.Enable()); err != nil {
		return fmt.Errorf("enable fetch domain: %w", err)
	}

	chromedp.ListenTarget(c.ctx, func(ev interface{}) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		c.mu.Lock()
		active, h := c.routeActive, c.routeHandler
		c.mu.Unlock()
		if !active || h == nil {
			return
		}
		go h(ctx, &chromeRoute{parentCtx: c.ctx, event: e})
	})
	return nil
}

func (c *chromeContext) Unroute(ctx context.Context) error {
	c.mu.Lock()
	c.routeActive = false
	c.mu.Unlock()
	return chromedp.Run(c.ctx, fetch.Disable())
}

func (c *chromeContext) OnPage(handler func(Page)) {
	c.mu.Lock()
	c.onPage = handler
	c.mu.Unlock()

	chromedp.ListenBrowser(c.ctx, func(ev interface{}) {
		e, ok := ev.(*target.EventTargetCreated)
		if !ok || e.TargetInfo.Type != "page" {
			return
		}
		pageCtx, pageCancel := chromedp.NewContext(c.ctx, chromedp.WithTargetID(e.TargetInfo.TargetID))

		c.mu.Lock()
		h := c.onPage
		c.pageCancels = append(c.pageCancels, pageCancel)
		c.mu.Unlock()

		if h != nil {
			h(&chromePage{ctx: pageCtx, cancel: pageCancel})
		}
	})
}

func (c *chromeContext) NewPage(ctx context.Context) (Page, error) {
	pageCtx, cancel := chromedp.NewContext(c.ctx)
	if err := chromedp.Run(pageCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	c.mu.Lock()
	c.pageCancels = append(c.pageCancels, cancel)
	c.mu.Unlock()
	return &chromePage{ctx: pageCtx, cancel: cancel}, nil
}

func (c *chromeContext) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []*network.Cookie
	action := chromedp.ActionFunc(func(actionCtx context.Context) error {
		cs, err := network.GetCookies().Do(actionCtx)
		cookies = cs
		return err
	})
	if err := chromedp.Run(c.ctx, action); err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	out := make([]Cookie, 0, len(cookies))
	for _, ck := range cookies {
		out = append(out, Cookie{Name: ck.Name, Value: ck.Value})
	}
	return out, nil
}

func (c *chromeContext) Close(ctx context.Context) error {
	c.mu.Lock()
	c.routeActive = false
	cancels := c.pageCancels
	c.pageCancels = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// chromeRoute is the one-shot decision point for a single intercepted
// request (spec §4.2 step 4).
type chromeRoute struct {
	parentCtx context.Context
	event     *fetch.EventRequestPaused
}

func (r *chromeRoute) Request() Request {
	headers := make(map[string]string, len(r.event.Request.Headers))
	for k, v := range r.event.Request.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	return Request{
		URL:          r.event.Request.URL,
		ResourceType: mapResourceType(r.event.ResourceType),
		Headers:      headers,
	}
}

func (r *chromeRoute) Abort(ctx context.Context) error {
	c := chromedp.FromContext(r.parentCtx)
	execCtx := cdp.WithExecutor(ctx, c.Target)
	return fetch.FailRequest(r.event.RequestID, network.ErrorReasonAborted).Do(execCtx)
}

func (r *chromeRoute) Continue(ctx context.Context) error {
	c := chromedp.FromContext(r.parentCtx)
	execCtx := cdp.WithExecutor(ctx, c.Target)
	return fetch.ContinueRequest(r.event.RequestID).Do(execCtx)
}

func mapResourceType(rt network.ResourceType) ResourceType {
	switch rt {
	case network.ResourceTypeImage:
		return ResourceImage
	case network.ResourceTypeFont:
		return ResourceFont
	case network.ResourceTypeStylesheet:
		return ResourceStylesheet
	case network.ResourceTypeScript:
		return ResourceScript
	case network.ResourceTypeXHR:
		return ResourceXHR
	case network.ResourceTypeFetch:
		return ResourceFetch
	default:
		return ResourceOther
	}
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	navCtx := p.ctx
	if opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(p.ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}
	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	if opts.WaitDOMContentLoaded {
		tasks = append(tasks, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	return chromedp.Run(navCtx, tasks)
}

func (p *chromePage) WaitForTimeout(ctx context.Context, ms int) error {
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *chromePage) MainFrame() Frame {
	return &chromeFrame{ctx: p.ctx}
}

func (p *chromePage) Frames(ctx context.Context) ([]Frame, error) {
	var root *cdp.Node
	action := chromedp.ActionFunc(func(actionCtx context.Context) error {
		n, err := dom.GetDocument().WithDepth(-1).WithPierce(true).Do(actionCtx)
		root = n
		return err
	})
	if err := chromedp.Run(p.ctx, action); err != nil {
		return nil, fmt.Errorf("walk frame tree: %w", err)
	}

	var frames []Frame
	var walk func(n *cdp.Node)
	walk = func(n *cdp.Node) {
		if n == nil {
			return
		}
		if n.NodeName == "IFRAME" && n.FrameID != "" {
			frames = append(frames, &chromeFrame{ctx: p.ctx, frameID: n.FrameID})
		}
		for _, child := range n.Children {
			walk(child)
		}
		if n.ContentDocument != nil {
			walk(n.ContentDocument)
		}
	}
	walk(root)
	return frames, nil
}

func (p *chromePage) Close(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// chromeFrame is either a page's main frame (frameID unset) or one of its
// sub-frames, scoped so Find only searches that frame's own document.
type chromeFrame struct {
	ctx     context.Context
	frameID cdp.FrameID
}

func (f *chromeFrame) Find(ctx context.Context, selector string) (Element, error) {
	var nodes []*cdp.Node
	opts := []chromedp.QueryOption{chromedp.ByQuery, chromedp.AtLeast(0)}
	if f.frameID != "" {
		opts = append(opts, chromedp.FromNode(&cdp.Node{FrameID: f.frameID}))
	}
	action := chromedp.Nodes(selector, &nodes, opts...)
	if err := chromedp.Run(f.ctx, action); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, ErrElementNotFound
	}
	return &chromeElement{ctx: f.ctx, node: nodes[0]}, nil
}

type chromeElement struct {
	ctx  context.Context
	node *cdp.Node
}

func (e *chromeElement) BoundingBox(ctx context.Context) (*BoundingBox, error) {
	var model *dom.BoxModel
	action := chromedp.ActionFunc(func(actionCtx context.Context) error {
		m, err := dom.GetBoxModel().WithNodeID(e.node.NodeID).Do(actionCtx)
		model = m
		return err
	})
	if err := chromedp.Run(e.ctx, action); err != nil {
		return nil, err
	}
	if model == nil || len(model.Content) < 8 {
		return nil, errors.New("browser: no box model for element")
	}
	width := model.Content[2] - model.Content[0]
	height := model.Content[5] - model.Content[1]
	return &BoundingBox{Width: width, Height: height}, nil
}

func (e *chromeElement) Click(ctx context.Context, timeoutMs int) error {
	clickCtx := e.ctx
	if timeoutMs > 0 {
		var cancel context.CancelFunc
		clickCtx, cancel = context.WithTimeout(e.ctx, time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()
	}
	return chromedp.Run(clickCtx, chromedp.MouseClickNode(e.node))
}
