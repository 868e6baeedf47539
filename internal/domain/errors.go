package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Adapters wrap these so the callback handler can map a failure to an HTTP
// status without leaking provider details to the member.
var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")

	ErrConfiguration     = errors.New("configuration error")
	ErrOAuthExchange     = errors.New("oauth exchange failed")
	ErrIdentityFetch     = errors.New("identity fetch failed")
	ErrInvalidState      = errors.New("invalid oauth state")
	ErrSessionExpired    = errors.New("verification expired or not initiated")
	ErrCommunityNotFound = errors.New("community not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrPermission        = errors.New("bot lacks permission")
	ErrAuthentication    = errors.New("authentication failed")
	ErrNetworkTransient  = errors.New("transient network error")
	ErrNotification      = errors.New("notification failed")
)

// RateLimitError is returned by the event-stream connector when the provider
// answers 429. RetryAfter is zero when no hint was supplied.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error { return e.Err }
