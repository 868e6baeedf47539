// Package discord adapts discordgo to the gateway connector, the credential
// grantor and the interaction surface used by the application layer.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/guildgate/internal/application/events"
	"github.com/guildgate/internal/config"
	"github.com/guildgate/internal/domain"
)

// EventHandler consumes translated gateway events.
type EventHandler interface {
	Handle(ctx context.Context, ev events.Event) (*events.Reply, error)
}

const failedReply = "Something went wrong. Please try again later."

type Client struct {
	session *discordgo.Session
	timeout time.Duration
	handler atomic.Pointer[EventHandler]
	ready   atomic.Bool
}

func NewClient(cfg *config.Config) (*Client, error) {
	s, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("%w: discord session: %v", domain.ErrConfiguration, err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	s.ShouldRetryOnRateLimit = false
	s.Client = &http.Client{Timeout: cfg.DiscordTimeout}

	c := &Client{session: s, timeout: cfg.DiscordTimeout}
	s.AddHandler(c.onReady)
	s.AddHandler(c.onResumed)
	s.AddHandler(c.onDisconnect)
	s.AddHandler(c.onMemberAdd)
	s.AddHandler(c.onInteraction)
	return c, nil
}

// Bind sets the handler that receives gateway events.
func (c *Client) Bind(h EventHandler) { c.handler.Store(&h) }

// Grantor returns a role grantor backed by this session.
func (c *Client) Grantor() *Grantor {
	return NewGrantor(c.session, c.session.State, c.timeout)
}

// Open connects to the gateway. Errors are classified for the supervisor.
func (c *Client) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classifyGateway(c.session.Open())
}

func (c *Client) Close() error {
	c.ready.Store(false)
	return c.session.Close()
}

func (c *Client) Ready() bool { return c.ready.Load() }

func (c *Client) GuildCount() int {
	st := c.session.State
	st.RLock()
	defer st.RUnlock()
	return len(st.Guilds)
}

func (c *Client) Latency() time.Duration { return c.session.HeartbeatLatency() }

func (c *Client) onReady(s *discordgo.Session, r *discordgo.Ready) {
	c.ready.Store(true)
	if r.User == nil {
		return
	}
	slog.Info("gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	registered, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", commands(), discordgo.WithContext(ctx))
	if err != nil {
		slog.Error("command registration failed", "err", err)
		return
	}
	slog.Info("commands registered", "count", len(registered))
}

func (c *Client) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) { c.ready.Store(true) }

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.ready.Store(false)
	slog.Warn("gateway disconnected")
}

func (c *Client) dispatch(ctx context.Context, ev events.Event) (*events.Reply, error) {
	h := c.handler.Load()
	if h == nil {
		return nil, nil
	}
	return (*h).Handle(ctx, ev)
}

func (c *Client) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	ev := events.Event{
		Kind:        events.KindMemberJoined,
		CommunityID: m.GuildID,
		UserID:      m.User.ID,
		At:          m.JoinedAt,
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if g, err := s.State.Guild(m.GuildID); err == nil {
		ev.CommunityName = g.Name
	}
	if _, err := c.dispatch(context.Background(), ev); err != nil {
		slog.Error("member join handling failed", "community_id", m.GuildID, "err", err)
	}
}

func (c *Client) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev, ok := interactionEvent(i, time.Now())
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	reply, err := c.dispatch(ctx, ev)
	if err != nil {
		slog.Error("interaction failed", "kind", ev.Kind, "user_id", ev.UserID, "err", err)
		reply = &events.Reply{Content: failedReply, Ephemeral: true}
	}
	if reply == nil {
		return
	}
	if reply.Panel != nil {
		if _, err := s.ChannelMessageSendComplex(i.ChannelID, panelMessage(reply.Panel), discordgo.WithContext(ctx)); err != nil {
			slog.Error("panel post failed", "channel_id", i.ChannelID, "err", classifyREST(err, nil))
			reply = &events.Reply{Content: failedReply, Ephemeral: true}
		}
	}
	if err := s.InteractionRespond(i.Interaction, interactionResponse(reply), discordgo.WithContext(ctx)); err != nil {
		slog.Error("interaction response failed", "kind", ev.Kind, "err", err)
	}
}
