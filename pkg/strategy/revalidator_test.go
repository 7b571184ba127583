package strategy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func TestRevalidator_DetachedFromRequest(t *testing.T) {
	r := NewRevalidator(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool
	started := make(chan struct{})
	proceed := make(chan struct{})

	r.Go(ctx, StaleWhileRevalidate, "/a", func(jobCtx context.Context) error {
		close(started)
		<-proceed
		sawCancel.Store(jobCtx.Err() != nil)
		return nil
	})

	<-started
	cancel()
	close(proceed)
	r.Wait()

	if sawCancel.Load() {
		t.Error("job context should not inherit request cancellation")
	}
}

func TestRevalidator_ErrorSink(t *testing.T) {
	var got atomic.Int32
	wantErr := errors.New("boom")

	r := NewRevalidator(zerolog.Nop(), WithErrorSink(func(strategy Kind, url string, err error) {
		if strategy == CacheFirst && url == "/b" && errors.Is(err, wantErr) {
			got.Add(1)
		}
	}))

	r.Go(context.Background(), CacheFirst, "/b", func(context.Context) error { return wantErr })
	r.Go(context.Background(), CacheFirst, "/b", func(context.Context) error { return nil })
	r.Wait()

	if got.Load() != 1 {
		t.Errorf("sink calls = %d, want 1", got.Load())
	}
}

func TestRevalidator_Limiter(t *testing.T) {
	r := NewRevalidator(zerolog.Nop(), WithLimiter(rate.NewLimiter(rate.Every(50*time.Millisecond), 1)))

	var runs atomic.Int32
	start := time.Now()
	for i := 0; i < 3; i++ {
		r.Go(context.Background(), CacheFirst, "/c", func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}
	r.Wait()

	if runs.Load() != 3 {
		t.Errorf("runs = %d, want 3", runs.Load())
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("limiter did not pace jobs, elapsed %v", elapsed)
	}
}

func TestOfflineResponse(t *testing.T) {
	resp := OfflineResponse(nil, []byte(DefaultOfflinePage))
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}
