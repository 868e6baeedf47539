package discord

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	"github.com/guildgate/internal/domain"
)

// closeAuthenticationFailed is the gateway close code for an invalid token.
const closeAuthenticationFailed = 4004

// classifyGateway maps a failed Open into the errors the supervisor
// retry policy understands.
func classifyGateway(err error) error {
	if err == nil {
		return nil
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == closeAuthenticationFailed {
		return fmt.Errorf("gateway closed %d: %w", closeErr.Code, domain.ErrAuthentication)
	}
	// Open may flatten the close frame into its own message.
	if strings.Contains(err.Error(), "close 4004") {
		return fmt.Errorf("%v: %w", err, domain.ErrAuthentication)
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return rateLimited(rl, err)
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%v: %w", err, domain.ErrAuthentication)
		case http.StatusTooManyRequests:
			return &domain.RateLimitError{Err: err}
		}
	}
	return fmt.Errorf("%v: %w", err, domain.ErrNetworkTransient)
}

// classifyREST maps a failed guild REST call. notFound is the domain error
// for an unknown resource on this endpoint.
func classifyREST(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return rateLimited(rl, err)
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return fmt.Errorf("%v: %w", err, domain.ErrNetworkTransient)
	}
	code := 0
	if rest.Message != nil {
		code = rest.Message.Code
	}
	status := 0
	if rest.Response != nil {
		status = rest.Response.StatusCode
	}
	switch {
	case code == discordgo.ErrCodeUnknownGuild:
		return fmt.Errorf("%v: %w", err, domain.ErrCommunityNotFound)
	case code == discordgo.ErrCodeUnknownMember:
		return fmt.Errorf("%v: %w", err, domain.ErrMemberNotFound)
	case code == discordgo.ErrCodeMissingPermissions, status == http.StatusForbidden:
		return fmt.Errorf("%v: %w", err, domain.ErrPermission)
	case status == http.StatusNotFound && notFound != nil:
		return fmt.Errorf("%v: %w", err, notFound)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%v: %w", err, domain.ErrAuthentication)
	case status == http.StatusTooManyRequests:
		return &domain.RateLimitError{Err: err}
	case status >= 500:
		return fmt.Errorf("%v: %w", err, domain.ErrNetworkTransient)
	}
	return err
}

func rateLimited(rl *discordgo.RateLimitError, err error) error {
	out := &domain.RateLimitError{Err: err}
	if rl.RateLimit != nil && rl.TooManyRequests != nil {
		out.RetryAfter = rl.RetryAfter
	}
	return out
}
