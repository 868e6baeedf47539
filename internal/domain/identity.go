package domain

import "fmt"

const defaultAvatarURL = "https://cdn.discordapp.com/embed/avatars/0.png"

// VerifiedIdentity is the caller's profile as returned by the identity
// endpoint. It only lives for the duration of one callback.
type VerifiedIdentity struct {
	ID            string `json:"id" validate:"required,numeric"`
	Username      string `json:"username" validate:"required"`
	Discriminator string `json:"discriminator"`
	Email         string `json:"email,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
}

// Tag renders "username#discriminator", defaulting the discriminator to "0".
func (v VerifiedIdentity) Tag() string {
	d := v.Discriminator
	if d == "" {
		d = "0"
	}
	return fmt.Sprintf("%s#%s", v.Username, d)
}

// AvatarURL returns the CDN address of the avatar, or the default avatar.
func (v VerifiedIdentity) AvatarURL() string {
	if v.Avatar == "" {
		return defaultAvatarURL
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", v.ID, v.Avatar)
}
