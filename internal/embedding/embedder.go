package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"ragchat/internal/domain"
)

// StatusError is returned by HTTP embedders when the provider answers with a non-2xx status.
type StatusError struct {
	Code       int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("embeddings request failed: %s", e.Status)
	}
	return fmt.Sprintf("embeddings request failed: %s: %s", e.Status, e.Body)
}

// Temporary reports whether the failure is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Retrying wraps an Embedder with bounded exponential backoff. It is meant to
// be composed around a remote provider by the application wiring; the
// knowledge base itself never retries.
type Retrying struct {
	next       domain.Embedder
	maxRetries uint64
	base       time.Duration
	cap        time.Duration
}

// WithRetry returns next unchanged when maxRetries is not positive.
func WithRetry(next domain.Embedder, maxRetries int) domain.Embedder {
	if maxRetries <= 0 {
		return next
	}
	return &Retrying{
		next:       next,
		maxRetries: uint64(maxRetries),
		base:       200 * time.Millisecond,
		cap:        5 * time.Second,
	}
}

func (r *Retrying) Name() string { return r.next.Name() }

func (r *Retrying) Embed(ctx context.Context, text string) ([]float64, error) {
	var (
		out        []float64
		retryAfter time.Duration
	)
	b := honourRetryAfter(r.backoff(), &retryAfter)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		v, err := r.next.Embed(ctx, text)
		if err == nil {
			out = v
			return nil
		}
		retryAfter = 0
		var serr *StatusError
		if errors.As(err, &serr) {
			if !serr.Temporary() {
				return err
			}
			retryAfter = serr.RetryAfter
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Retrying) backoff() retry.Backoff {
	b := retry.NewExponential(r.base)
	b = retry.WithCappedDuration(r.cap, b)
	return retry.WithMaxRetries(r.maxRetries, b)
}

// honourRetryAfter replaces the next delay with the provider's Retry-After
// hint when the last failure carried one.
func honourRetryAfter(next retry.Backoff, hint *time.Duration) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if *hint > 0 {
			d = *hint
		}
		return d, false
	})
}
