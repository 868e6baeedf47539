package domain

import "time"

// NotificationEvent is the write-once record handed to the notification
// dispatcher after a successful verification.
type NotificationEvent struct {
	AttemptID     string
	Identity      VerifiedIdentity
	CommunityName string
	MemberMention string
	VerifiedAt    time.Time
}

// RaidAlert describes a join burst flagged by the raid detector.
type RaidAlert struct {
	CommunityID   string
	CommunityName string
	Joins         int
	Window        time.Duration
	At            time.Time
}
