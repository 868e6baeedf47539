package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/guildgate/internal/domain"
)

// guildAPI is the subset of *discordgo.Session the Grantor calls.
type guildAPI interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Grantor resolves guilds and members and assigns roles. Cached state is
// consulted before REST.
type Grantor struct {
	api     guildAPI
	state   *discordgo.State
	timeout time.Duration
}

func NewGrantor(api guildAPI, state *discordgo.State, timeout time.Duration) *Grantor {
	return &Grantor{api: api, state: state, timeout: timeout}
}

func (g *Grantor) opts(ctx context.Context) ([]discordgo.RequestOption, context.CancelFunc) {
	var cancel context.CancelFunc = func() {}
	if g.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	return []discordgo.RequestOption{discordgo.WithContext(ctx)}, cancel
}

func (g *Grantor) Community(ctx context.Context, communityID string) (*domain.Community, error) {
	if g.state != nil {
		if guild, err := g.state.Guild(communityID); err == nil {
			return &domain.Community{ID: guild.ID, Name: guild.Name}, nil
		}
	}
	opts, cancel := g.opts(ctx)
	defer cancel()
	guild, err := g.api.Guild(communityID, opts...)
	if err != nil {
		return nil, fmt.Errorf("fetch guild %s: %w", communityID, classifyREST(err, domain.ErrCommunityNotFound))
	}
	return &domain.Community{ID: guild.ID, Name: guild.Name}, nil
}

func (g *Grantor) Member(ctx context.Context, communityID, userID string) (*domain.Member, error) {
	if g.state != nil {
		if m, err := g.state.Member(communityID, userID); err == nil {
			return toMember(communityID, userID, m), nil
		}
	}
	opts, cancel := g.opts(ctx)
	defer cancel()
	m, err := g.api.GuildMember(communityID, userID, opts...)
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", userID, classifyREST(err, domain.ErrMemberNotFound))
	}
	return toMember(communityID, userID, m), nil
}

// FindRole returns the role named exactly name. Roles differing only in
// case do not match.
func (g *Grantor) FindRole(ctx context.Context, communityID, name string) (*domain.Role, error) {
	opts, cancel := g.opts(ctx)
	defer cancel()
	roles, err := g.api.GuildRoles(communityID, opts...)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", classifyREST(err, domain.ErrCommunityNotFound))
	}
	for _, r := range roles {
		if r.Name == name {
			return &domain.Role{ID: r.ID, Name: r.Name}, nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", name, domain.ErrNotFound)
}

func (g *Grantor) CreateRole(ctx context.Context, communityID, name string) (*domain.Role, error) {
	opts, cancel := g.opts(ctx)
	defer cancel()
	r, err := g.api.GuildRoleCreate(communityID, &discordgo.RoleParams{Name: name}, opts...)
	if err != nil {
		return nil, fmt.Errorf("create role %q: %w", name, classifyREST(err, domain.ErrCommunityNotFound))
	}
	return &domain.Role{ID: r.ID, Name: r.Name}, nil
}

func (g *Grantor) GrantRole(ctx context.Context, communityID, userID, roleID string) error {
	opts, cancel := g.opts(ctx)
	defer cancel()
	if err := g.api.GuildMemberRoleAdd(communityID, userID, roleID, opts...); err != nil {
		return fmt.Errorf("grant role %s to %s: %w", roleID, userID, classifyREST(err, domain.ErrMemberNotFound))
	}
	return nil
}

func toMember(communityID, userID string, m *discordgo.Member) *domain.Member {
	roles := make([]string, len(m.Roles))
	copy(roles, m.Roles)
	return &domain.Member{CommunityID: communityID, UserID: userID, RoleIDs: roles}
}
