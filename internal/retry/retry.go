// Package retry runs calls to remote model backends with a deterministic
// backoff schedule chosen by the class of the last error.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"lexa/internal/domain"
	"lexa/internal/logging"
)

// Class groups errors by how they should be retried.
type Class int

const (
	Transient Class = iota
	RateLimited
	Permanent
)

func (c Class) String() string {
	switch c {
	case Permanent:
		return "permanent"
	case RateLimited:
		return "rate_limited"
	default:
		return "transient"
	}
}

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	MaxAttempts      int
	TransientInitial time.Duration
	RateLimitInitial time.Duration
	Max              time.Duration
}

// DefaultPolicy returns the schedule used for generation and remote embeddings.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		TransientInitial: 200 * time.Millisecond,
		RateLimitInitial: time.Second,
		Max:              5 * time.Second,
	}
}

// WithMaxAttempts returns a copy of p with a different attempt budget.
// Non-positive values keep the current one.
func (p Policy) WithMaxAttempts(n int) Policy {
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// Delay returns the wait before retry number n (0-based) after an error of
// the given class. Delays double per retry and are capped at Max.
func (p Policy) Delay(class Class, n int) time.Duration {
	d := p.TransientInitial
	if class == RateLimited {
		d = p.RateLimitInitial
	}
	for i := 0; i < n && d < p.Max; i++ {
		d *= 2
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// Classify decides how err should be retried. ctx is the caller's context;
// once it is done every error is permanent.
func Classify(ctx context.Context, err error) Class {
	if ctx != nil && ctx.Err() != nil {
		return Permanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrConfiguration) {
		return Permanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// per-attempt timeout; the caller's deadline was checked above
		return Transient
	}
	if code, ok := statusCode(err); ok {
		return classifyStatus(code)
	}
	// network failures and unknown errors
	return Transient
}

func statusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func classifyStatus(code int) Class {
	switch code {
	case http.StatusTooManyRequests:
		return RateLimited
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return Permanent
	default:
		return Transient
	}
}

// classBackOff is a backoff.BackOff whose next delay depends on the class
// of the most recent failure.
type classBackOff struct {
	policy Policy
	last   Class
	n      int
}

func (b *classBackOff) NextBackOff() time.Duration {
	d := b.policy.Delay(b.last, b.n)
	b.n++
	return d
}

func (b *classBackOff) Reset() { b.n = 0 }

// Do calls op until it succeeds, returns a permanent error, the attempt
// budget is spent or ctx is done. The returned error is the last one op
// produced, or ctx.Err().
func Do(ctx context.Context, p Policy, log *zap.Logger, op func(ctx context.Context) error) error {
	log = logging.OrNop(log)
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	cb := &classBackOff{policy: p}
	b := backoff.WithContext(backoff.WithMaxRetries(cb, uint64(p.MaxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		cb.last = Classify(ctx, err)
		if cb.last == Permanent {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("retrying backend call",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Stringer("class", cb.last),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err != nil && attempt > 1 {
		return fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return err
}
