package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildgate/internal/domain"
	jwtinfra "github.com/guildgate/internal/infrastructure/jwt"
	"github.com/guildgate/internal/pkg/id"
	"golang.org/x/oauth2"
)

// Step names a state of the verification state machine.
type Step string

const (
	StepStart              Step = "start"
	StepExchangingToken    Step = "exchanging_token"
	StepFetchingIdentity   Step = "fetching_identity"
	StepValidatingSession  Step = "validating_session"
	StepResolvingMember    Step = "resolving_member"
	StepGrantingCredential Step = "granting_credential"
	StepNotifying          Step = "notifying"
	StepComplete           Step = "complete"
)

// StepError is the Failed(reason) terminal state: the step that failed and
// the domain error that caused it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

func fail(step Step, err error) error { return &StepError{Step: step, Err: err} }

// SessionStore is the pending-verification store.
type SessionStore interface {
	Create(userID, communityID string)
	Consume(userID string) (*domain.PendingVerification, error)
}

// OAuthClient talks to the token and identity endpoints.
type OAuthClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Identity(ctx context.Context, tok *oauth2.Token) (*domain.VerifiedIdentity, error)
}

// StateSigner binds the OAuth round-trip to the user who started it.
type StateSigner interface {
	Sign(userID, communityID string) (string, error)
	Verify(token string) (*jwtinfra.StateClaims, error)
}

// Grantor resolves communities and members and grants the access role.
// FindRole returns domain.ErrNotFound when no role has the name; permission
// failures wrap domain.ErrPermission.
type Grantor interface {
	Community(ctx context.Context, communityID string) (*domain.Community, error)
	Member(ctx context.Context, communityID, userID string) (*domain.Member, error)
	FindRole(ctx context.Context, communityID, name string) (*domain.Role, error)
	CreateRole(ctx context.Context, communityID, name string) (*domain.Role, error)
	GrantRole(ctx context.Context, communityID, userID, roleID string) error
}

// Notifier accepts a verification event without blocking.
type Notifier interface {
	Dispatch(event domain.NotificationEvent)
}

// CallbackRequest is what the OAuth redirect carries.
type CallbackRequest struct {
	Code  string
	State string
}

// Result describes a completed verification.
type Result struct {
	AttemptID     string
	UserID        string
	CommunityID   string
	CommunityName string
	RoleID        string
	RoleCreated   bool
	AlreadyHeld   bool
}

type Service interface {
	// Begin records a pending verification and returns the consent URL.
	Begin(ctx context.Context, userID, communityID string) (string, error)
	// Complete runs the callback state machine for one OAuth redirect.
	Complete(ctx context.Context, req CallbackRequest) (*Result, error)
}

// ServiceDeps groups the collaborators of the verification service.
type ServiceDeps struct {
	Sessions SessionStore
	OAuth    OAuthClient
	State    StateSigner
	Grantor  Grantor
	Notifier Notifier
	RoleName string
	Now      func() time.Time
}

type service struct {
	sessions SessionStore
	oauth    OAuthClient
	state    StateSigner
	grantor  Grantor
	notifier Notifier
	roleName string
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		sessions: deps.Sessions,
		oauth:    deps.OAuth,
		state:    deps.State,
		grantor:  deps.Grantor,
		notifier: deps.Notifier,
		roleName: deps.RoleName,
		now:      now,
	}
}

func (s *service) Begin(ctx context.Context, userID, communityID string) (string, error) {
	if userID == "" || communityID == "" {
		return "", fmt.Errorf("user and community required: %w", domain.ErrBadRequest)
	}
	state := ""
	if s.state != nil {
		signed, err := s.state.Sign(userID, communityID)
		if err != nil {
			return "", fmt.Errorf("sign state: %w", err)
		}
		state = signed
	}
	s.sessions.Create(userID, communityID)
	slog.InfoContext(ctx, "verification started", "user_id", userID, "community_id", communityID)
	return s.oauth.AuthCodeURL(state), nil
}

func (s *service) Complete(ctx context.Context, req CallbackRequest) (*Result, error) {
	attemptID := id.New()
	log := slog.With("attempt_id", attemptID)

	if req.Code == "" {
		return nil, fail(StepStart, fmt.Errorf("no code: %w", domain.ErrBadRequest))
	}
	var claims *jwtinfra.StateClaims
	if req.State != "" && s.state != nil {
		c, err := s.state.Verify(req.State)
		if err != nil {
			return nil, fail(StepStart, err)
		}
		claims = c
	}

	log.DebugContext(ctx, "exchanging authorization code")
	tok, err := s.oauth.Exchange(ctx, req.Code)
	if err != nil {
		return nil, fail(StepExchangingToken, err)
	}

	ident, err := s.oauth.Identity(ctx, tok)
	if err != nil {
		return nil, fail(StepFetchingIdentity, err)
	}
	log = log.With("user_id", ident.ID)
	log.InfoContext(ctx, "processing verification")

	if claims != nil && claims.Subject != ident.ID {
		return nil, fail(StepValidatingSession, fmt.Errorf("state issued to %s: %w", claims.Subject, domain.ErrInvalidState))
	}

	// Consumed before any side effect so a replayed callback cannot grant twice.
	pending, err := s.sessions.Consume(ident.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fail(StepValidatingSession, fmt.Errorf("%v: %w", err, domain.ErrSessionExpired))
		}
		return nil, fail(StepValidatingSession, err)
	}
	log = log.With("community_id", pending.CommunityID)

	community, err := s.grantor.Community(ctx, pending.CommunityID)
	if err != nil {
		return nil, fail(StepResolvingMember, err)
	}
	member, err := s.grantor.Member(ctx, community.ID, ident.ID)
	if err != nil {
		return nil, fail(StepResolvingMember, err)
	}

	role, created, err := s.ensureRole(ctx, community.ID)
	if err != nil {
		return nil, fail(StepGrantingCredential, err)
	}
	if created {
		log.InfoContext(ctx, "created verified role", "role_id", role.ID, "role_name", role.Name)
	}
	held := member.HasRole(role.ID)
	if !held {
		if err := s.grantor.GrantRole(ctx, community.ID, ident.ID, role.ID); err != nil {
			return nil, fail(StepGrantingCredential, err)
		}
	}
	log.InfoContext(ctx, "user verified", "role_id", role.ID, "already_held", held)

	if s.notifier != nil {
		s.notifier.Dispatch(domain.NotificationEvent{
			AttemptID:     attemptID,
			Identity:      *ident,
			CommunityName: community.Name,
			MemberMention: member.Mention(),
			VerifiedAt:    s.now().UTC(),
		})
	}

	return &Result{
		AttemptID:     attemptID,
		UserID:        ident.ID,
		CommunityID:   community.ID,
		CommunityName: community.Name,
		RoleID:        role.ID,
		RoleCreated:   created,
		AlreadyHeld:   held,
	}, nil
}

func (s *service) ensureRole(ctx context.Context, communityID string) (*domain.Role, bool, error) {
	role, err := s.grantor.FindRole(ctx, communityID, s.roleName)
	if err == nil {
		return role, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	role, err = s.grantor.CreateRole(ctx, communityID, s.roleName)
	if err != nil {
		return nil, false, err
	}
	return role, true, nil
}
