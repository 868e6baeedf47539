package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guildgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() domain.NotificationEvent {
	return domain.NotificationEvent{
		AttemptID: "01J0000000000000000000000",
		Identity: domain.VerifiedIdentity{
			ID:            "42",
			Username:      "alice",
			Discriminator: "1234",
			Email:         "alice@example.com",
			Avatar:        "abc",
		},
		CommunityName: "Test Server",
		MemberMention: "<@42>",
		VerifiedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestBuildPayload(t *testing.T) {
	p := BuildPayload(sampleEvent())

	assert.Equal(t, "Verification Bot", p.Username)
	require.Len(t, p.Embeds, 1)
	e := p.Embeds[0]
	assert.Equal(t, 0x00ff00, e.Color)
	require.Len(t, e.Fields, 6)
	assert.Equal(t, "alice#1234", e.Fields[0].Value)
	assert.Equal(t, "`42`", e.Fields[1].Value)
	assert.Equal(t, "alice@example.com", e.Fields[2].Value)
	assert.False(t, e.Fields[2].Inline)
	assert.Equal(t, "Test Server", e.Fields[3].Value)
	assert.Equal(t, "<t:1767323045:F>", e.Fields[4].Value)
	assert.Equal(t, "<@42>", e.Fields[5].Value)
	assert.Equal(t, "https://cdn.discordapp.com/avatars/42/abc.png", e.Thumbnail.URL)
	assert.Equal(t, "Verification System", e.Footer.Text)
	assert.Equal(t, "2026-01-02T03:04:05Z", e.Timestamp)
}

func TestBuildPayload_MissingOptionalFields(t *testing.T) {
	ev := sampleEvent()
	ev.Identity.Email = ""
	ev.Identity.Avatar = ""
	ev.Identity.Discriminator = ""

	e := BuildPayload(ev).Embeds[0]
	assert.Equal(t, "alice#0", e.Fields[0].Value)
	assert.Equal(t, "Not provided", e.Fields[2].Value)
	assert.Equal(t, "https://cdn.discordapp.com/embed/avatars/0.png", e.Thumbnail.URL)
}

func TestSend_PostsJSON(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewSender(srv.URL, srv.Client()).Send(context.Background(), sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, "Verification Bot", got.Username)
	require.Len(t, got.Embeds, 1)
}

func TestSend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewSender(srv.URL, srv.Client()).Send(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, domain.ErrNotification)
	assert.Contains(t, err.Error(), "404")
}

func TestSend_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewSender(url, nil).Send(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, domain.ErrNotification)
}
