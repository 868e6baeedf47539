package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/guildgate/internal/application/events"
)

// VerifyButtonID is the custom id of the persistent verify button.
const VerifyButtonID = "guildgate:verify"

func commands() []*discordgo.ApplicationCommand {
	admin := int64(discordgo.PermissionAdministrator)
	return []*discordgo.ApplicationCommand{
		{Name: "ping", Description: "Check bot latency"},
		{Name: "setup", Description: "Post the verification panel", DefaultMemberPermissions: &admin},
	}
}

// interactionEvent translates an interaction into a dispatcher event.
// It reports false for interactions the bot does not handle.
func interactionEvent(i *discordgo.InteractionCreate, now time.Time) (events.Event, bool) {
	if i == nil || i.Interaction == nil {
		return events.Event{}, false
	}
	ev := events.Event{CommunityID: i.GuildID, UserID: interactionUser(i.Interaction), At: now}
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "ping":
			ev.Kind = events.KindPing
		case "setup":
			ev.Kind = events.KindSetup
		default:
			return events.Event{}, false
		}
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID != VerifyButtonID {
			return events.Event{}, false
		}
		ev.Kind = events.KindVerifyClicked
	default:
		return events.Event{}, false
	}
	return ev, true
}

func interactionUser(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func interactionResponse(r *events.Reply) *discordgo.InteractionResponse {
	data := &discordgo.InteractionResponseData{Content: r.Content}
	if r.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if r.LinkURL != "" {
		data.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: r.LinkLabel, Style: discordgo.LinkButton, URL: r.LinkURL},
			}},
		}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

func panelMessage(p *events.Panel) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{Title: p.Title, Description: p.Description}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: p.ButtonLabel, Style: discordgo.SuccessButton, CustomID: VerifyButtonID},
			}},
		},
	}
}
