// Package browser implements the browser resource controller: the lazy
// Chromium lifecycle, the priority-ordered concurrency queue, the circuit
// breaker guarding relaunch, and the watchdog that force-exits a stuck
// process. It consumes only the narrow driver capability set defined here
// (spec §4.5) so the orchestration logic never depends on chromedp types
// directly.
package browser

import "context"

// LaunchOptions carries the per-deployment settings a Driver uses to start a
// browser process; the launch flag set itself is fixed inside the driver
// (spec §6 "Browser launch flags").
type LaunchOptions struct {
	ChromePath string
	UserAgent  string
}

// ContextOptions configures a fresh browser context (spec §6 "Context
// options").
type ContextOptions struct {
	UserAgent        string
	BypassCSP        bool
	IgnoreHTTPSErrors bool
	ViewportWidth    int
	ViewportHeight   int
	DeviceScaleFactor float64
	Mobile           bool
	HasTouch         bool
	ReducedMotion    bool
	BlockServiceWorkers bool
}

// ResourceType classifies a driver-observed request, mirroring the subset of
// CDP resource types the route policy (spec §4.2) cares about.
type ResourceType string

// Resource types referenced by the route policy.
const (
	ResourceImage      ResourceType = "image"
	ResourceFont       ResourceType = "font"
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceScript     ResourceType = "script"
	ResourceXHR        ResourceType = "xhr"
	ResourceFetch      ResourceType = "fetch"
	ResourceOther      ResourceType = "other"
)

// Request is the read-only view of an intercepted request exposed to a
// RouteHandler.
type Request struct {
	URL          string
	ResourceType ResourceType
	Headers      map[string]string
}

// Route lets a RouteHandler decide the fate of one intercepted request.
// Exactly one of Abort or Continue must be called.
type Route interface {
	Request() Request
	Abort(ctx context.Context) error
	Continue(ctx context.Context) error
}

// RouteHandler is invoked once per intercepted request. Invocations are not
// serialized: the chromedp driver runs each one on its own goroutine, so
// handlers may run concurrently and do not necessarily run in arrival order.
type RouteHandler func(ctx context.Context, route Route)

// BoundingBox is a coarse element geometry check used to decide whether a
// play-button candidate is actually visible.
type BoundingBox struct {
	Width  float64
	Height float64
}

// Element is a DOM node handle returned by Frame.Find.
type Element interface {
	BoundingBox(ctx context.Context) (*BoundingBox, error)
	Click(ctx context.Context, timeoutMs int) error
}

// Frame is either a page's main frame or one of its sub-frames.
type Frame interface {
	Find(ctx context.Context, selector string) (Element, error)
}

// NavigateOptions configures Page.Navigate.
type NavigateOptions struct {
	WaitDOMContentLoaded bool
	TimeoutMs            int
}

// Page is a single tab opened under a Context.
type Page interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	WaitForTimeout(ctx context.Context, ms int) error
	MainFrame() Frame
	Frames(ctx context.Context) ([]Frame, error)
	Close(ctx context.Context) error
}

// Cookie is a single captured cookie.
type Cookie struct {
	Name  string
	Value string
}

// Context is a short-lived browser context: a fresh cookie jar, viewport,
// and user-agent, owning its route registration and all pages opened under
// it (spec §3 "ExtractionContext").
type Context interface {
	// Route installs a single interceptor for all requests under this
	// context. Only one registration is supported per context, matching the
	// pipeline's single-interceptor protocol (spec §4.2 step 4).
	Route(ctx context.Context, handler RouteHandler) error
	Unroute(ctx context.Context) error

	// OnPage registers a callback invoked for every page opened under this
	// context, including attacker-controlled popups (spec §4.2 step 3).
	OnPage(handler func(Page))

	NewPage(ctx context.Context) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	Close(ctx context.Context) error
}

// Handle is an opaque handle to the underlying browser process (spec §3
// "BrowserHandle"), exclusively owned by the Pool.
type Handle interface {
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)
	IsConnected() bool
	// OnDisconnected registers a callback fired at most once, the first time
	// the underlying process disconnects unexpectedly.
	OnDisconnected(callback func())
	Close(ctx context.Context) error
}

// Driver is the capability set the pool and pipeline require from a browser
// automation library (spec §4.5). Launch is the only entry point; everything
// else hangs off the returned Handle.
type Driver interface {
	Launch(ctx context.Context, opts LaunchOptions) (Handle, error)
}
