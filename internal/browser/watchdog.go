package browser

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Watchdog force-exits the process when the circuit breaker has stayed open
// continuously for longer than the configured threshold (spec §4.4): a
// stuck launch loop is treated as unrecoverable and left to the process
// supervisor to restart, rather than spun on forever in-process.
type Watchdog struct {
	pool      *Pool
	interval  time.Duration
	threshold time.Duration
	clock     clock
	exitFunc  func(code int)

	mu        sync.Mutex
	openSince time.Time
	stopped   bool
	done      chan struct{}
}

// NewWatchdog constructs a Watchdog polling the given pool's circuit status.
func NewWatchdog(pool *Pool, interval, threshold time.Duration) *Watchdog {
	return newWatchdogWithClock(pool, interval, threshold, realClock{}, func(code int) { os.Exit(code) })
}

func newWatchdogWithClock(pool *Pool, interval, threshold time.Duration, c clock, exitFunc func(code int)) *Watchdog {
	return &Watchdog{
		pool:      pool,
		interval:  interval,
		threshold: threshold,
		clock:     c,
		exitFunc:  exitFunc,
		done:      make(chan struct{}),
	}
}

// Run polls until Stop is called, so callers should start it in its own
// goroutine.
func (w *Watchdog) Run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.done:
			return
		}
	}
}

func (w *Watchdog) tick() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	status := w.pool.StatusSnapshot()
	now := w.clock.Now()

	w.mu.Lock()
	if !status.CircuitOpen {
		w.openSince = time.Time{}
		w.mu.Unlock()
		return
	}
	if w.openSince.IsZero() {
		w.openSince = now
		w.mu.Unlock()
		return
	}
	stuckFor := now.Sub(w.openSince)
	w.mu.Unlock()

	if stuckFor >= w.threshold {
		log.Error().
			Dur("stuck_for", stuckFor).
			Msg("browser watchdog: circuit open past exit threshold, forcing restart")
		w.exitFunc(1)
	}
}

// Stop disables the watchdog, used during graceful shutdown so a circuit
// that is open while the pool drains never trips os.Exit.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()
	close(w.done)
}
