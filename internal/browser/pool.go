package browser

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/law-makers/hlsextract/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ErrPoolClosed is returned by Submit once Shutdown has been called.
var ErrPoolClosed = errors.New("browser pool is shut down")

// PoolConfig configures a Pool's concurrency bound and restart discipline
// (spec §6 environment table).
type PoolConfig struct {
	MaxConcurrent int
	IdleTimeout   time.Duration
	MaxAge        time.Duration
	Launch        LaunchOptions
}

// launchFuture is the linearisation point for concurrent acquisitions:
// concurrent callers await the same future rather than each triggering a
// launch (spec §9 "Lazy singleton with cooperative relaunch").
type launchFuture struct {
	done   chan struct{}
	handle Handle
	err    error
}

// Status is the snapshot returned by Pool.Status (spec §4.1).
type Status struct {
	CircuitOpen         bool
	ConsecutiveFailures int
	ReopenAt            time.Time
	Pending             int
	Active              int
}

// Pool is the Browser Pool (spec §2 component 4): a lazy singleton browser
// handle with idle/max-age/disconnect restart, a concurrent-launch guard,
// and priority-queued task admission.
type Pool struct {
	mu sync.Mutex

	driver  Driver
	metrics *metrics.Sink
	clock   clock

	maxConcurrent int
	idleTimeout   time.Duration
	maxAge        time.Duration
	launchOpts    LaunchOptions

	handle           Handle
	handleLaunchedAt time.Time
	launching        *launchFuture

	activeCount int
	idleTimer   timer

	heap taskHeap
	seq  uint64

	circuit *circuitBreaker
	closed  bool
	wg      sync.WaitGroup
}

// NewPool constructs a Pool. The browser is not launched until first use.
func NewPool(driver Driver, sink *metrics.Sink, cfg PoolConfig) *Pool {
	return newPoolWithClock(driver, sink, cfg, realClock{})
}

func newPoolWithClock(driver Driver, sink *metrics.Sink, cfg PoolConfig, c clock) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Pool{
		driver:        driver,
		metrics:       sink,
		clock:         c,
		maxConcurrent: cfg.MaxConcurrent,
		idleTimeout:   cfg.IdleTimeout,
		maxAge:        cfg.MaxAge,
		launchOpts:    cfg.Launch,
		circuit:       newCircuitBreaker(circuitThresholdOf(cfg), circuitResetDelayOf(cfg)),
	}
}

// circuitThresholdOf/circuitResetDelayOf keep the breaker's threshold and
// cool-down as internal constants (spec §6), not per-pool config.
func circuitThresholdOf(PoolConfig) int            { return 3 }
func circuitResetDelayOf(PoolConfig) time.Duration { return 30 * time.Second }

// GetContextFunc yields a fresh ExtractionContext for the duration of one
// admitted task.
type GetContextFunc func(ctx context.Context, opts ContextOptions) (Context, error)

// Submit schedules a task under the concurrency bound; it blocks until the
// task is admitted and runs to completion. On admission, run receives a
// callable that yields an ExtractionContext (spec §4.1).
//
// Submit is a free function, not a method, because Go methods cannot carry
// their own type parameters.
func Submit[T any](p *Pool, ctx context.Context, priority int, run func(context.Context, GetContextFunc) (T, error)) (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrPoolClosed
	}

	p.seq++
	task := &pendingTask{priority: priority, seq: p.seq, admit: make(chan error, 1)}
	heap.Push(&p.heap, task)
	p.tryAdmitLocked()
	p.updateGaugesLocked()
	p.mu.Unlock()

	select {
	case admitErr := <-task.admit:
		if admitErr != nil {
			return zero, admitErr
		}
		// fallthrough to run
	case <-ctx.Done():
		p.mu.Lock()
		if task.index >= 0 {
			heap.Remove(&p.heap, task.index)
			p.updateGaugesLocked()
			p.mu.Unlock()
			return zero, ctx.Err()
		}
		p.mu.Unlock()
		// Lost the race: the task left the heap in the same instant it was
		// cancelled, either admitted or rejected by Shutdown. Its admission
		// result is already buffered; an admitted task gives its slot back
		// rather than leaking it.
		if admitErr := <-task.admit; admitErr == nil {
			p.release()
		}
		return zero, ctx.Err()
	}

	defer p.release()

	handle, err := p.acquireHandle(ctx)
	if err != nil {
		return zero, err
	}

	getContext := func(ctx context.Context, opts ContextOptions) (Context, error) {
		return handle.NewContext(ctx, opts)
	}

	return run(ctx, getContext)
}

// tryAdmitLocked admits as many heap-front tasks as the concurrency bound
// allows. Must be called with p.mu held.
func (p *Pool) tryAdmitLocked() int {
	admitted := 0
	for p.activeCount < p.maxConcurrent && p.heap.Len() > 0 {
		t := heap.Pop(&p.heap).(*pendingTask)
		if p.activeCount == 0 {
			p.cancelIdleTimerLocked()
		}
		p.activeCount++
		p.wg.Add(1)
		t.admit <- nil
		admitted++
	}
	return admitted
}

// release returns one admission slot to the pool, rescheduling the idle
// timer when the active count falls back to zero.
func (p *Pool) release() {
	p.mu.Lock()
	p.activeCount--
	if p.activeCount == 0 {
		p.scheduleIdleTimerLocked()
	}
	p.tryAdmitLocked()
	p.updateGaugesLocked()
	p.mu.Unlock()
	p.wg.Done()
}

func (p *Pool) updateGaugesLocked() {
	if p.metrics == nil {
		return
	}
	p.metrics.QueueDepth.Set(float64(p.heap.Len()))
	p.metrics.ActiveExtractions.Set(float64(p.activeCount))
}

// scheduleIdleTimerLocked starts a one-shot idle-restart timer if the pool
// is idle and a handle is live. Must be called with p.mu held.
func (p *Pool) scheduleIdleTimerLocked() {
	if p.idleTimer != nil || p.handle == nil || p.activeCount != 0 {
		return
	}
	p.idleTimer = p.clock.AfterFunc(p.idleTimeout, p.onIdleTimeout)
}

func (p *Pool) cancelIdleTimerLocked() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
}

func (p *Pool) onIdleTimeout() {
	p.mu.Lock()
	if p.activeCount != 0 || p.handle == nil {
		p.idleTimer = nil
		p.mu.Unlock()
		return
	}
	old := p.handle
	p.handle = nil
	p.handleLaunchedAt = time.Time{}
	p.idleTimer = nil
	if p.metrics != nil {
		p.metrics.Restarts.WithLabelValues("idle").Inc()
	}
	p.mu.Unlock()

	log.Debug().Msg("browser pool: idle restart")
	go func() { _ = old.Close(context.Background()) }()
}

// acquireHandle implements the lifecycle and relaunch discipline of spec
// §4.1: reuse a live handle, restart on max-age once no sibling extraction
// is active, or launch behind the shared launching future.
func (p *Pool) acquireHandle(ctx context.Context) (Handle, error) {
	p.mu.Lock()

	now := p.clock.Now()
	if p.circuit.isOpen(now) {
		remaining := p.circuit.remaining(now)
		p.mu.Unlock()
		return nil, &CircuitOpenError{RemainingSeconds: remaining.Seconds()}
	}

	if p.handle != nil {
		if !p.handle.IsConnected() {
			p.handle = nil
		} else {
			age := now.Sub(p.handleLaunchedAt)
			// activeCount includes this acquisition itself; activeCount<=1
			// means no sibling extraction is relying on the current handle.
			if age <= p.maxAge || p.activeCount > 1 {
				h := p.handle
				p.mu.Unlock()
				return h, nil
			}
			old := p.handle
			p.handle = nil
			p.handleLaunchedAt = time.Time{}
			if p.metrics != nil {
				p.metrics.Restarts.WithLabelValues("max_age").Inc()
			}
			p.mu.Unlock()
			log.Debug().Msg("browser pool: max-age restart")
			go func() { _ = old.Close(context.Background()) }()
			p.mu.Lock()
		}
	}

	if p.launching != nil {
		fut := p.launching
		p.mu.Unlock()
		return awaitLaunch(ctx, fut)
	}

	fut := &launchFuture{done: make(chan struct{})}
	p.launching = fut
	p.mu.Unlock()

	h, err := p.driver.Launch(ctx, p.launchOpts)
	launchedAt := p.clock.Now()

	p.mu.Lock()
	p.launching = nil
	if err != nil {
		if p.metrics != nil {
			p.metrics.LaunchFailures.Inc()
		}
		if p.circuit.recordFailure(launchedAt) {
			if p.metrics != nil {
				p.metrics.CircuitTrips.Inc()
				p.metrics.CircuitOpen.Set(1)
			}
		}
		p.mu.Unlock()
		fut.err = err
		close(fut.done)
		return nil, err
	}

	p.circuit.recordSuccess()
	if p.metrics != nil {
		p.metrics.CircuitOpen.Set(0)
		p.metrics.Launches.Inc()
	}
	p.handle = h
	p.handleLaunchedAt = launchedAt
	h.OnDisconnected(func() { p.onDisconnect(h) })
	p.mu.Unlock()

	fut.handle = h
	close(fut.done)
	return h, nil
}

func awaitLaunch(ctx context.Context, fut *launchFuture) (Handle, error) {
	select {
	case <-fut.done:
		return fut.handle, fut.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// onDisconnect is the driver's "disconnected" callback (spec §4.5). It nulls
// the handle reference so the next acquisition relaunches.
func (p *Pool) onDisconnect(h Handle) {
	p.mu.Lock()
	if p.handle == h {
		p.handle = nil
		p.handleLaunchedAt = time.Time{}
	}
	p.mu.Unlock()
	if p.metrics != nil {
		p.metrics.Disconnects.Inc()
	}
	log.Warn().Msg("browser pool: unexpected disconnect")
}

// StatusSnapshot returns a snapshot for health and watchdog consumers.
func (p *Pool) StatusSnapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	return Status{
		CircuitOpen:         p.circuit.isOpen(now),
		ConsecutiveFailures: p.circuit.consecutiveFailures,
		ReopenAt:            p.circuit.reopenAt,
		Pending:             p.heap.Len(),
		Active:              p.activeCount,
	}
}

// Shutdown drains the queue to a terminal state, closes the browser if
// live, and releases all timers. It is idempotent and cooperative: it waits
// up to the context deadline for in-flight extractions to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cancelIdleTimerLocked()
	for p.heap.Len() > 0 {
		t := heap.Pop(&p.heap).(*pendingTask)
		t.admit <- ErrPoolClosed
	}
	handle := p.handle
	p.handle = nil
	p.updateGaugesLocked()
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		log.Warn().Msg("browser pool: shutdown timed out waiting for drain")
	}

	if handle != nil {
		_ = handle.Close(context.Background())
	}
	return nil
}
