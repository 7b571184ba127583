package strategy

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var revalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "asset_revalidations_total",
	Help: "Background revalidations by strategy and result",
}, []string{"strategy", "result"})

// ErrorSink receives the failures of background jobs.
type ErrorSink func(strategy Kind, url string, err error)

// Revalidator runs detached background refreshes. The caller never waits
// for them; their errors go to the sink.
type Revalidator struct {
	limiter *rate.Limiter
	sink    ErrorSink
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// RevalidatorOption configures a Revalidator.
type RevalidatorOption func(*Revalidator)

// WithLimiter paces background refreshes. A nil limiter means unlimited.
func WithLimiter(l *rate.Limiter) RevalidatorOption {
	return func(r *Revalidator) { r.limiter = l }
}

// WithErrorSink replaces the default logging sink.
func WithErrorSink(sink ErrorSink) RevalidatorOption {
	return func(r *Revalidator) { r.sink = sink }
}

// NewRevalidator creates a background job runner.
func NewRevalidator(logger zerolog.Logger, opts ...RevalidatorOption) *Revalidator {
	r := &Revalidator{logger: logger}
	r.sink = func(strategy Kind, url string, err error) {
		r.logger.Warn().
			Err(err).
			Str("strategy", string(strategy)).
			Str("url", url).
			Msg("Background revalidation failed")
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Go starts fn in its own goroutine. The job context keeps the values of ctx
// but not its cancellation, so a finished request does not abort it.
func (r *Revalidator) Go(ctx context.Context, strategy Kind, url string, fn func(context.Context) error) {
	jobCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if r.limiter != nil {
			if err := r.limiter.Wait(jobCtx); err != nil {
				revalidationsTotal.WithLabelValues(string(strategy), "error").Inc()
				r.sink(strategy, url, err)
				return
			}
		}

		if err := fn(jobCtx); err != nil {
			revalidationsTotal.WithLabelValues(string(strategy), "error").Inc()
			r.sink(strategy, url, err)
			return
		}
		revalidationsTotal.WithLabelValues(string(strategy), "ok").Inc()
	}()
}

// Wait blocks until every started job has finished.
func (r *Revalidator) Wait() {
	r.wg.Wait()
}
