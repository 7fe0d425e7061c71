package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestPool(driver Driver, clk clock, cfg PoolConfig) *Pool {
	return newPoolWithClock(driver, nil, cfg, clk)
}

func TestSubmitPriorityOrdering(t *testing.T) {
	driver := &fakeDriver{}
	clk := newFakeClock()
	pool := newTestPool(driver, clk, PoolConfig{MaxConcurrent: 1, IdleTimeout: time.Minute, MaxAge: time.Hour})

	release := make(chan struct{})
	var order []string
	var mu sync.Mutex
	started := make(chan string, 3)

	run := func(name string) func(context.Context, GetContextFunc) (string, error) {
		return func(ctx context.Context, _ GetContextFunc) (string, error) {
			started <- name
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			<-release
			return name, nil
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		Submit(pool, context.Background(), 0, run("A"))
	}()
	// Ensure A is admitted and occupying the single slot before B/C enqueue.
	first := <-started
	if first != "A" {
		t.Fatalf("expected A to be admitted first, got %s", first)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		Submit(pool, context.Background(), 0, run("B"))
	}()
	go func() {
		defer wg.Done()
		Submit(pool, context.Background(), 10, run("C"))
	}()

	// Give B and C a moment to enqueue behind the held slot.
	time.Sleep(20 * time.Millisecond)
	release <- struct{}{} // let A finish

	second := <-started
	if second != "C" {
		t.Fatalf("expected high-priority C admitted before normal-priority B, got %s", second)
	}
	release <- struct{}{}

	third := <-started
	if third != "B" {
		t.Fatalf("expected B admitted last, got %s", third)
	}
	release <- struct{}{}

	wg.Wait()
}

func TestCircuitTripAndCoolDown(t *testing.T) {
	driver := &fakeDriver{launchErr: errors.New("boom")}
	clk := newFakeClock()
	pool := newTestPool(driver, clk, PoolConfig{MaxConcurrent: 1, IdleTimeout: time.Minute, MaxAge: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
			t.Fatal("run should not be called when launch fails")
			return "", nil
		})
		if err == nil {
			t.Fatalf("expected launch failure on attempt %d", i)
		}
	}

	_, err := Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
		t.Fatal("run should not be called while circuit is open")
		return "", nil
	})
	var circuitErr *CircuitOpenError
	if !errors.As(err, &circuitErr) {
		t.Fatalf("expected CircuitOpenError, got %v", err)
	}

	clk.Advance(31 * time.Second)
	driver.launchErr = nil

	result, err := Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected circuit to have reset, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("unexpected result %q", result)
	}
}

func TestIdleRestart(t *testing.T) {
	driver := &fakeDriver{}
	clk := newFakeClock()
	pool := newTestPool(driver, clk, PoolConfig{MaxConcurrent: 1, IdleTimeout: 60 * time.Second, MaxAge: time.Hour})

	_, err := Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
		return "first", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := driver.launchCount(); got != 1 {
		t.Fatalf("expected 1 launch, got %d", got)
	}

	clk.Advance(61 * time.Second)

	_, err = Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
		return "second", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := driver.launchCount(); got != 2 {
		t.Fatalf("expected idle restart to trigger a second launch, got %d", got)
	}
}

func TestDisconnectTriggersRelaunch(t *testing.T) {
	driver := &fakeDriver{}
	clk := newFakeClock()
	pool := newTestPool(driver, clk, PoolConfig{MaxConcurrent: 1, IdleTimeout: time.Minute, MaxAge: time.Hour})

	_, err := Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
		return "first", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	driver.mu.Lock()
	h := driver.handles[0]
	driver.mu.Unlock()
	h.disconnect()

	_, err = Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
		return "second", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := driver.launchCount(); got != 2 {
		t.Fatalf("expected disconnect to force a relaunch, got %d launches", got)
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	driver := &fakeDriver{}
	clk := newFakeClock()
	pool := newTestPool(driver, clk, PoolConfig{MaxConcurrent: 1, IdleTimeout: time.Minute, MaxAge: time.Hour})

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
			close(started)
			<-release
			return "in-flight", nil
		})
		done <- err
	}()
	<-started

	queued := make(chan error, 1)
	go func() {
		_, err := Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
			return "should not run", nil
		})
		queued <- err
	}()

	time.Sleep(20 * time.Millisecond)

	shutdownDone := make(chan error, 1)
	go func() {
		shutdownDone <- pool.Shutdown(context.Background())
	}()

	if err := <-queued; !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected queued task to be rejected with ErrPoolClosed, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight task should complete despite shutdown, got %v", err)
	}

	if err := <-shutdownDone; err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	if _, err := Submit(pool, context.Background(), 0, func(ctx context.Context, _ GetContextFunc) (string, error) {
		return "after", nil
	}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected submissions after shutdown to be rejected, got %v", err)
	}
}
