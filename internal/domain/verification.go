package domain

import "time"

// PendingVerification links a user to the community they started verifying
// into. At most one is live per UserID; a newer one replaces the older.
type PendingVerification struct {
	UserID      string    `json:"user_id"`
	CommunityID string    `json:"community_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired reports whether the entry is older than ttl at now.
// A non-positive ttl never expires.
func (p PendingVerification) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(p.CreatedAt) >= ttl
}
