// Package events routes gateway events to their handlers through a fixed
// table built at construction time.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildgate/internal/domain"
)

// Kind identifies a gateway event the bot reacts to.
type Kind string

const (
	KindMemberJoined  Kind = "member_joined"
	KindVerifyClicked Kind = "verify_clicked"
	KindPing          Kind = "ping"
	KindSetup         Kind = "setup"
)

// Event is a provider-neutral gateway event.
type Event struct {
	Kind          Kind
	CommunityID   string
	CommunityName string
	UserID        string
	At            time.Time
}

// Panel is a persistent message with a verify button, posted by setup.
type Panel struct {
	Title       string
	Description string
	ButtonLabel string
}

// Reply is what the bot answers to an interaction. A nil Reply means no answer.
type Reply struct {
	Content   string
	LinkURL   string
	LinkLabel string
	Ephemeral bool
	Panel     *Panel
}

// Verifier starts a verification and returns the consent URL.
type Verifier interface {
	Begin(ctx context.Context, userID, communityID string) (string, error)
}

// JoinTracker records member joins per community.
type JoinTracker interface {
	Tally(communityID string, now time.Time) (int, bool)
	Window() time.Duration
}

// Alerter forwards raid alerts to operators.
type Alerter interface {
	Alert(ctx context.Context, alert domain.RaidAlert) error
}

// LatencyReporter exposes the gateway heartbeat latency.
type LatencyReporter interface {
	Latency() time.Duration
}

type HandlerFunc func(ctx context.Context, ev Event) (*Reply, error)

// Deps groups the collaborators of the dispatcher. Alerter may be nil.
type Deps struct {
	Verifier Verifier
	Joins    JoinTracker
	Alerter  Alerter
	Latency  LatencyReporter
}

type Dispatcher struct {
	deps     Deps
	handlers map[Kind]HandlerFunc
}

func NewDispatcher(deps Deps) *Dispatcher {
	d := &Dispatcher{deps: deps}
	d.handlers = map[Kind]HandlerFunc{
		KindMemberJoined:  d.memberJoined,
		KindVerifyClicked: d.verifyClicked,
		KindPing:          d.ping,
		KindSetup:         d.setup,
	}
	return d
}

// Handle runs the handler registered for ev.Kind.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) (*Reply, error) {
	h, ok := d.handlers[ev.Kind]
	if !ok {
		return nil, fmt.Errorf("event kind %q: %w", ev.Kind, domain.ErrBadRequest)
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return h(ctx, ev)
}

func (d *Dispatcher) memberJoined(ctx context.Context, ev Event) (*Reply, error) {
	joins, raid := d.deps.Joins.Tally(ev.CommunityID, ev.At)
	if !raid {
		return nil, nil
	}
	slog.WarnContext(ctx, "potential raid detected",
		"community_id", ev.CommunityID, "community_name", ev.CommunityName, "joins", joins)
	if d.deps.Alerter == nil {
		return nil, nil
	}
	alert := domain.RaidAlert{
		CommunityID:   ev.CommunityID,
		CommunityName: ev.CommunityName,
		Joins:         joins,
		Window:        d.deps.Joins.Window(),
		At:            ev.At.UTC(),
	}
	if err := d.deps.Alerter.Alert(ctx, alert); err != nil {
		slog.ErrorContext(ctx, "raid alert failed", "community_id", ev.CommunityID, "err", err)
	}
	return nil, nil
}

func (d *Dispatcher) verifyClicked(ctx context.Context, ev Event) (*Reply, error) {
	authURL, err := d.deps.Verifier.Begin(ctx, ev.UserID, ev.CommunityID)
	if err != nil {
		return nil, err
	}
	return &Reply{
		Content:   "Click below to verify:",
		LinkURL:   authURL,
		LinkLabel: "Open Verification",
		Ephemeral: true,
	}, nil
}

func (d *Dispatcher) ping(_ context.Context, _ Event) (*Reply, error) {
	var ms int64
	if d.deps.Latency != nil {
		ms = d.deps.Latency.Latency().Milliseconds()
	}
	return &Reply{Content: fmt.Sprintf("Pong! %dms", ms)}, nil
}

func (d *Dispatcher) setup(_ context.Context, _ Event) (*Reply, error) {
	return &Reply{
		Content:   "Verification panel created.",
		Ephemeral: true,
		Panel: &Panel{
			Title:       "Server Verification",
			Description: "Click below to verify and gain access.",
			ButtonLabel: "Verify",
		},
	}, nil
}
