package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guildgate/internal/domain"
)

// SessionStore holds at most one pending verification per user.
// Entries older than the configured TTL are treated as absent.
type SessionStore struct {
	mu      sync.Mutex
	pending map[string]domain.PendingVerification
	ttl     time.Duration
	now     func() time.Time
}

// Option customises a SessionStore.
type Option func(*SessionStore)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates an empty store whose entries live for ttl.
func NewSessionStore(ttl time.Duration, opts ...Option) *SessionStore {
	s := &SessionStore{
		pending: make(map[string]domain.PendingVerification),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a pending verification for userID, replacing any prior one.
func (s *SessionStore) Create(userID, communityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = domain.PendingVerification{
		UserID:      userID,
		CommunityID: communityID,
		CreatedAt:   s.now().UTC(),
	}
}

// Consume removes and returns the live entry for userID. Absent and expired
// entries both yield domain.ErrNotFound; expired ones are purged.
func (s *SessionStore) Consume(userID string) (*domain.PendingVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[userID]
	if !ok {
		return nil, fmt.Errorf("pending verification: %w", domain.ErrNotFound)
	}
	delete(s.pending, userID)
	if p.Expired(s.now(), s.ttl) {
		return nil, fmt.Errorf("pending verification expired: %w", domain.ErrNotFound)
	}
	return &p, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for userID, p := range s.pending {
		if p.Expired(now, s.ttl) {
			delete(s.pending, userID)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("evicted expired pending verifications", "count", n)
			}
		}
	}
}
