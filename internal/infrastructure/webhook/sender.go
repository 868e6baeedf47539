package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/guildgate/internal/domain"
	"golang.org/x/time/rate"
)

const (
	botUsername = "Verification Bot"
	embedColor  = 0x00ff00
	footerText  = "Verification System"
)

// Payload is the JSON body accepted by the webhook sink.
type Payload struct {
	Username string  `json:"username"`
	Embeds   []Embed `json:"embeds"`
}

type Embed struct {
	Title     string     `json:"title"`
	Color     int        `json:"color"`
	Fields    []Field    `json:"fields"`
	Thumbnail *Thumbnail `json:"thumbnail,omitempty"`
	Footer    *Footer    `json:"footer,omitempty"`
	Timestamp string     `json:"timestamp"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Thumbnail struct {
	URL string `json:"url"`
}

type Footer struct {
	Text string `json:"text"`
}

// BuildPayload renders a verification event into the sink's embed schema.
func BuildPayload(event domain.NotificationEvent) Payload {
	id := event.Identity
	email := id.Email
	if email == "" {
		email = "Not provided"
	}
	verifiedAt := event.VerifiedAt.UTC()
	return Payload{
		Username: botUsername,
		Embeds: []Embed{{
			Title: "✅ New User Verified",
			Color: embedColor,
			Fields: []Field{
				{Name: "👤 Username", Value: id.Tag(), Inline: true},
				{Name: "🆔 User ID", Value: "`" + id.ID + "`", Inline: true},
				{Name: "📧 Email", Value: email, Inline: false},
				{Name: "🏰 Server", Value: event.CommunityName, Inline: true},
				{Name: "📅 Verified At", Value: fmt.Sprintf("<t:%d:F>", verifiedAt.Unix()), Inline: true},
				{Name: "🔗 Profile", Value: event.MemberMention, Inline: true},
			},
			Thumbnail: &Thumbnail{URL: id.AvatarURL()},
			Footer:    &Footer{Text: footerText},
			Timestamp: verifiedAt.Format(time.RFC3339),
		}},
	}
}

// Sender posts verification events to a webhook URL.
type Sender struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewSender creates a Sender for url. client may be nil. Posts are paced to
// 5 per 2 seconds, the sink's documented per-webhook budget.
func NewSender(url string, client *http.Client) *Sender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Sender{
		url:     url,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 5),
	}
}

// Send issues exactly one POST. Any status other than 200/204 is an error.
func (s *Sender) Send(ctx context.Context, event domain.NotificationEvent) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook pacing: %w", err)
	}
	body, err := json.Marshal(BuildPayload(event))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %v: %w", err, domain.ErrNotification)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s: %w", resp.StatusCode, bytes.TrimSpace(snippet), domain.ErrNotification)
	}
	return nil
}
