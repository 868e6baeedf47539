package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/guildgate/internal/application/verification"
	"github.com/guildgate/internal/domain"
)

const (
	msgSuccess          = "✅ Verification successful! You may close this tab."
	msgNoCode           = "No code provided."
	msgInvalidState     = "Invalid verification link. Please try again."
	msgOAuthFailed      = "OAuth failed. Please try again."
	msgNetwork          = "Network error occurred. Please try again."
	msgIdentity         = "Failed to fetch user info."
	msgExpired          = "Verification expired or not initiated. Please try again."
	msgCommunityMissing = "Server not found."
	msgMemberMissing    = "You are not a member of this server."
	msgPermission       = "Bot lacks permissions to assign roles."
	msgUnexpected       = "An error occurred during verification. Please contact an administrator."
)

// CallbackHandler handles the OAuth redirect.
type CallbackHandler struct {
	svc verification.Service
}

func NewCallbackHandler(svc verification.Service) *CallbackHandler {
	return &CallbackHandler{svc: svc}
}

func (h *CallbackHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("code") == "" {
		if oauthErr := q.Get("error"); oauthErr != "" {
			slog.WarnContext(r.Context(), "authorization denied",
				"oauth_error", oauthErr, "description", q.Get("error_description"))
		} else {
			slog.WarnContext(r.Context(), "callback received without code")
		}
		writeText(w, http.StatusBadRequest, msgNoCode)
		return
	}

	res, err := h.svc.Complete(r.Context(), verification.CallbackRequest{
		Code:  q.Get("code"),
		State: q.Get("state"),
	})
	if err != nil {
		status, msg := callbackFailure(err)
		step := verification.StepStart
		var se *verification.StepError
		if errors.As(err, &se) {
			step = se.Step
		}
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "verification failed", "step", step, "status", status, "err", err)
		writeText(w, status, msg)
		return
	}
	slog.InfoContext(r.Context(), "verification complete",
		"attempt_id", res.AttemptID, "user_id", res.UserID, "community_id", res.CommunityID)
	writeText(w, http.StatusOK, msgSuccess)
}

// callbackFailure maps a verification error to a status and a user-safe message.
func callbackFailure(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNetworkTransient):
		return http.StatusInternalServerError, msgNetwork
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, msgNoCode
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest, msgInvalidState
	case errors.Is(err, domain.ErrOAuthExchange):
		return http.StatusBadRequest, msgOAuthFailed
	case errors.Is(err, domain.ErrIdentityFetch):
		return http.StatusBadRequest, msgIdentity
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusBadRequest, msgExpired
	case errors.Is(err, domain.ErrCommunityNotFound):
		return http.StatusBadRequest, msgCommunityMissing
	case errors.Is(err, domain.ErrMemberNotFound):
		return http.StatusBadRequest, msgMemberMissing
	case errors.Is(err, domain.ErrPermission):
		return http.StatusInternalServerError, msgPermission
	}
	return http.StatusInternalServerError, msgUnexpected
}
