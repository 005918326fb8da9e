package generate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLimiter_AcquireRelease(t *testing.T) {
	l := NewLimiter(2, time.Second)
	ctx := context.Background()

	if got := l.Status(); got.Active != 0 || got.Available != 2 || got.MaxConcurrent != 2 {
		t.Fatalf("initial status = %+v", got)
	}

	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i+1, err)
		}
	}
	if got := l.Status(); got.Active != 2 || got.Available != 0 {
		t.Errorf("full status = %+v", got)
	}

	l.Release()
	if got := l.Active(); got != 1 {
		t.Errorf("after Release, Active = %d, want 1", got)
	}
	l.Release()
	if got := l.Status(); got.Active != 0 || got.Available != 2 {
		t.Errorf("drained status = %+v", got)
	}
}

func TestLimiter_TimesOutWhenFull(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	start := time.Now()
	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTooManyRuns) {
		t.Errorf("err = %v, want ErrTooManyRuns", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("gave up after %v, expected to wait", elapsed)
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLimiter_TryAcquire(t *testing.T) {
	l := NewLimiter(1, time.Second)
	if !l.TryAcquire() {
		t.Fatal("TryAcquire on empty limiter failed")
	}
	if l.TryAcquire() {
		t.Error("TryAcquire on full limiter succeeded")
	}
	l.Release()
	if !l.TryAcquire() {
		t.Error("TryAcquire after Release failed")
	}
	l.Release()
}

func TestLimiter_NeverExceedsMax(t *testing.T) {
	const maxConcurrent = 3
	l := NewLimiter(maxConcurrent, 5*time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	peak := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer l.Release()

			mu.Lock()
			if n := l.Active(); n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
		}()
	}
	wg.Wait()

	if peak > maxConcurrent {
		t.Errorf("peak active = %d, want <= %d", peak, maxConcurrent)
	}
	if got := l.Active(); got != 0 {
		t.Errorf("Active after all released = %d", got)
	}
}

func TestLimiter_WaitForDrain(t *testing.T) {
	l := NewLimiter(2, time.Second)

	if err := l.WaitForDrain(context.Background()); err != nil {
		t.Fatalf("WaitForDrain on idle limiter: %v", err)
	}

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.WaitForDrain(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Release()
	}()
	if err := l.WaitForDrain(context.Background()); err != nil {
		t.Errorf("WaitForDrain: %v", err)
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, 0)
	if got := l.MaxConcurrent(); got != DefaultMaxConcurrentRuns {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentRuns)
	}
}
