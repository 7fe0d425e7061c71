// Package extract implements the per-request extraction choreography
// (spec §4.2): context setup, request routing, manifest capture,
// play-button coaxing, and unconditional teardown.
package extract

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/law-makers/hlsextract/internal/browser"
	"github.com/law-makers/hlsextract/internal/metrics"
	urlutil "github.com/law-makers/hlsextract/internal/utils/url"
	"github.com/law-makers/hlsextract/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	settleDelay       = 500 * time.Millisecond
	playClickTimeout  = 500
	navigationTimeout = 15 * time.Second
)

// Request is one extraction attempt (spec §4.2 public contract).
type Request struct {
	EmbedURL string
	Timeout  time.Duration
	Priority int
}

// Pipeline runs extractions against a shared browser pool.
type Pipeline struct {
	pool      *browser.Pool
	metrics   *metrics.Sink
	userAgent string
}

func NewPipeline(pool *browser.Pool, sink *metrics.Sink, userAgent string) *Pipeline {
	return &Pipeline{pool: pool, metrics: sink, userAgent: userAgent}
}

// Extract runs a single embed-URL extraction end to end, including queue
// admission under the given priority.
func (p *Pipeline) Extract(ctx context.Context, req Request) (models.ExtractionResult, error) {
	enqueuedAt := time.Now()

	result, err := browser.Submit(p.pool, ctx, req.Priority, func(ctx context.Context, getContext browser.GetContextFunc) (models.ExtractionResult, error) {
		if p.metrics != nil {
			p.metrics.QueueWait.Observe(time.Since(enqueuedAt).Seconds())
		}
		return p.runExtraction(ctx, req, getContext)
	})

	p.recordOutcome(result, err)
	return result, err
}

func (p *Pipeline) recordOutcome(result models.ExtractionResult, err error) {
	if p.metrics == nil {
		return
	}
	status, errType := "success", string(ErrCodeNone)
	if err != nil {
		status = "failure"
		errType = string(classify(err))
	}
	p.metrics.Extractions.WithLabelValues(status, errType).Inc()
}

func classify(err error) ErrorCode {
	var extractionErr *ExtractionError
	if eerr, ok := err.(*ExtractionError); ok {
		extractionErr = eerr
	}
	var circuitErr *browser.CircuitOpenError
	switch {
	case extractionErr != nil:
		return extractionErr.Code
	case err == ErrTimeout:
		return ErrCodeTimeout
	default:
		if asCircuit(err, &circuitErr) {
			return ErrCodeCircuitOpen
		}
		return ErrCodeBrowserError
	}
}

func asCircuit(err error, target **browser.CircuitOpenError) bool {
	c, ok := err.(*browser.CircuitOpenError)
	if ok {
		*target = c
	}
	return ok
}

type pipelineOutcome struct {
	result models.ExtractionResult
	err    error
}

func (p *Pipeline) runExtraction(ctx context.Context, req Request, getContext browser.GetContextFunc) (models.ExtractionResult, error) {
	var zero models.ExtractionResult
	start := time.Now()

	contextStart := time.Now()
	bctx, err := getContext(ctx, browser.ContextOptions{
		UserAgent:           p.userAgent,
		BypassCSP:           true,
		IgnoreHTTPSErrors:   true,
		ViewportWidth:       800,
		ViewportHeight:      600,
		DeviceScaleFactor:   1,
		Mobile:              false,
		HasTouch:            false,
		ReducedMotion:       true,
		BlockServiceWorkers: true,
	})
	if err != nil {
		p.observeDuration("error", time.Since(start))
		return zero, newExtractionError(ErrCodeBrowserError, "create extraction context", err)
	}
	if p.metrics != nil {
		p.metrics.ContextCreation.Observe(time.Since(contextStart).Seconds())
	}
	defer func() { _ = bctx.Close(context.Background()) }()

	page, err := bctx.NewPage(ctx)
	if err != nil {
		p.observeDuration("error", time.Since(start))
		return zero, newExtractionError(ErrCodeBrowserError, "open extraction page", err)
	}
	defer func() { _ = page.Close(context.Background()) }()

	bctx.OnPage(func(popup browser.Page) {
		go func() { _ = popup.Close(context.Background()) }()
	})

	var mu sync.Mutex
	resolved := false
	finished := make(chan pipelineOutcome, 1)
	embedOrigin, _ := urlutil.Origin(req.EmbedURL)
	admittedAt := start

	var timeoutTimer *time.Timer
	timeoutTimer = time.AfterFunc(req.Timeout, func() {
		mu.Lock()
		if resolved {
			mu.Unlock()
			return
		}
		resolved = true
		mu.Unlock()
		finished <- pipelineOutcome{err: ErrTimeout}
	})
	defer timeoutTimer.Stop()

	if err := bctx.Route(ctx, func(rctx context.Context, route browser.Route) {
		p.handleRoute(rctx, route, bctx, embedOrigin, admittedAt, &mu, &resolved, timeoutTimer, finished)
	}); err != nil {
		p.observeDuration("error", time.Since(start))
		return zero, newExtractionError(ErrCodeBrowserError, "install route interceptor", err)
	}
	defer func() { _ = bctx.Unroute(context.Background()) }()

	navCtx, navCancel := context.WithTimeout(ctx, navigationTimeout)
	_ = page.Navigate(navCtx, req.EmbedURL, browser.NavigateOptions{WaitDOMContentLoaded: true, TimeoutMs: int(navigationTimeout.Milliseconds())})
	navCancel()

	if !p.waitSettled(ctx, page, &mu, &resolved) {
		coaxFrame(ctx, page.MainFrame())
	}

	if p.stillUnresolved(&mu, &resolved) {
		if !p.waitSettled(ctx, page, &mu, &resolved) {
			coaxSubFrames(ctx, page)
		}
	}

	outcome := <-finished

	if outcome.err != nil {
		p.observeDuration(statusFor(outcome.err), time.Since(start))
		return zero, outcome.err
	}
	p.observeDuration("success", time.Since(start))
	return outcome.result, nil
}

func statusFor(err error) string {
	if err == ErrTimeout {
		return "timeout"
	}
	return "error"
}

func (p *Pipeline) observeDuration(status string, d time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.ExtractionDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (p *Pipeline) stillUnresolved(mu *sync.Mutex, resolved *bool) bool {
	mu.Lock()
	defer mu.Unlock()
	return !*resolved
}

// waitSettled sleeps the settle delay and reports whether the extraction
// resolved while waiting (spec §4.2 steps 7-8).
func (p *Pipeline) waitSettled(ctx context.Context, page browser.Page, mu *sync.Mutex, resolved *bool) bool {
	_ = page.WaitForTimeout(ctx, int(settleDelay.Milliseconds()))
	mu.Lock()
	defer mu.Unlock()
	return *resolved
}

func (p *Pipeline) handleRoute(
	rctx context.Context,
	route browser.Route,
	bctx browser.Context,
	embedOrigin string,
	admittedAt time.Time,
	mu *sync.Mutex,
	resolved *bool,
	timeoutTimer *time.Timer,
	finished chan pipelineOutcome,
) {
	request := route.Request()
	url := request.URL

	if isManifestURL(url) {
		mu.Lock()
		if *resolved {
			mu.Unlock()
			_ = route.Abort(rctx)
			return
		}
		*resolved = true
		mu.Unlock()

		timeoutTimer.Stop()
		cookies, _ := bctx.Cookies(rctx)
		_ = route.Abort(rctx)

		if p.metrics != nil {
			p.metrics.ManifestDetection.Observe(time.Since(admittedAt).Seconds())
		}

		refererSource := request.Headers["Referer"]
		if refererSource == "" {
			refererSource = embedOrigin
		}
		origin, err := urlutil.Origin(refererSource)
		if err != nil || origin == "://" {
			origin = embedOrigin
		}
		referer := origin + "/"

		var cookieHeader *string
		if len(cookies) > 0 {
			parts := make([]string, 0, len(cookies))
			for _, c := range cookies {
				parts = append(parts, c.Name+"="+c.Value)
			}
			joined := strings.Join(parts, "; ")
			cookieHeader = &joined
		}

		finished <- pipelineOutcome{result: models.ExtractionResult{
			ManifestURL: url,
			Headers: map[string]string{
				"Referer":    referer,
				"Origin":     origin,
				"User-Agent": p.userAgent,
			},
			Cookies: cookieHeader,
		}}
		return
	}

	switch request.ResourceType {
	case browser.ResourceImage, browser.ResourceFont, browser.ResourceStylesheet:
		_ = route.Abort(rctx)
		return
	case browser.ResourceScript:
		if !playerDomainAllowlist.MatchString(url) && matchesBlockPattern(url) {
			_ = route.Abort(rctx)
			return
		}
	case browser.ResourceXHR, browser.ResourceFetch:
		if telemetryPattern.MatchString(url) {
			_ = route.Abort(rctx)
			return
		}
	}

	if matchesBlockPattern(url) {
		_ = route.Abort(rctx)
		return
	}

	if err := route.Continue(rctx); err != nil {
		log.Debug().Err(err).Str("url", url).Msg("extract: failed to continue request")
	}
}

func isManifestURL(url string) bool {
	return strings.Contains(url, ".m3u8") && !strings.Contains(url, ".ts.m3u8")
}

// coaxFrame clicks the first visible play-button candidate in the given
// frame, swallowing every error: a failed coax attempt never fails the
// extraction, it only leaves the manifest to arrive on its own.
func coaxFrame(ctx context.Context, frame browser.Frame) {
	for _, sel := range playButtonSelectors {
		el, err := frame.Find(ctx, sel)
		if err != nil || el == nil {
			continue
		}
		box, err := el.BoundingBox(ctx)
		if err != nil || box == nil || box.Width <= 0 || box.Height <= 0 {
			continue
		}
		if err := el.Click(ctx, playClickTimeout); err == nil {
			return
		}
	}
}

// coaxSubFrames fans out coaxFrame across every sub-frame concurrently; no
// single frame's failure affects any other (spec §9 "coroutine control
// flow").
func coaxSubFrames(ctx context.Context, page browser.Page) {
	frames, err := page.Frames(ctx)
	if err != nil || len(frames) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, f := range frames {
		wg.Add(1)
		go func(frame browser.Frame) {
			defer wg.Done()
			coaxFrame(ctx, frame)
		}(f)
	}
	wg.Wait()
}
