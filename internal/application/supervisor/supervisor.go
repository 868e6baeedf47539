package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildgate/internal/domain"
)

// Connector opens the long-lived event-stream session. Implementations map
// provider failures onto *domain.RateLimitError, domain.ErrAuthentication or
// any other (transient) error.
type Connector interface {
	Open(ctx context.Context) error
}

// Policy bounds the retry loop.
type Policy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	RateLimitBuffer time.Duration
	TransientDelay  time.Duration
}

// DefaultPolicy is five attempts, 30s doubling backoff capped at 5m, a 5s
// buffer on provider hints and 10s between transient failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      5,
		BaseDelay:       30 * time.Second,
		MaxDelay:        300 * time.Second,
		RateLimitBuffer: 5 * time.Second,
		TransientDelay:  10 * time.Second,
	}
}

// Backoff returns min(MaxDelay, BaseDelay * 2^attempt).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Delay chooses the wait before the next attempt after err, and whether a
// retry is allowed at all.
func (p Policy) Delay(attempt int, err error) (time.Duration, bool) {
	if errors.Is(err, domain.ErrAuthentication) {
		return 0, false
	}
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		if rl.RetryAfter > 0 {
			return rl.RetryAfter + p.RateLimitBuffer, true
		}
		return p.Backoff(attempt), true
	}
	return p.TransientDelay, true
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Supervisor connects a Connector under a retry Policy.
type Supervisor struct {
	conn   Connector
	policy Policy
	sleep  SleepFunc
}

func New(conn Connector, policy Policy) *Supervisor {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 1
	}
	return &Supervisor{conn: conn, policy: policy, sleep: sleepCtx}
}

// WithSleep replaces the wait function, mostly for tests.
func (s *Supervisor) WithSleep(fn SleepFunc) *Supervisor {
	s.sleep = fn
	return s
}

// Run tries to open the session until it succeeds, an authentication
// failure occurs, the attempts are exhausted or ctx is cancelled. When all
// attempts fail the last error is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < s.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		slog.Info("connecting to event stream", "attempt", attempt+1, "max_attempts", s.policy.MaxRetries)
		err := s.conn.Open(ctx)
		if err == nil {
			slog.Info("event stream connected", "attempt", attempt+1)
			return nil
		}
		lastErr = err

		delay, retry := s.policy.Delay(attempt, err)
		if !retry {
			slog.Error("event stream authentication failed, not retrying", "err", err)
			return fmt.Errorf("open event stream: %w", err)
		}
		if attempt == s.policy.MaxRetries-1 {
			break
		}

		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			slog.Warn("rate limited while connecting", "suggested", rl.RetryAfter, "wait", delay, "attempt", attempt+1)
		} else {
			slog.Warn("event stream connect failed, retrying", "err", err, "wait", delay, "attempt", attempt+1)
		}
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}

	var rl *domain.RateLimitError
	if errors.As(lastErr, &rl) {
		slog.Error("max retries reached, rate limit persists; the token may be in use elsewhere or too many recent connection attempts were made",
			"attempts", s.policy.MaxRetries)
	}
	return fmt.Errorf("open event stream after %d attempts: %w", s.policy.MaxRetries, lastErr)
}
