package domain

// Community is a guild as seen by the grantor.
type Community struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is a user's membership record inside a community.
type Member struct {
	CommunityID string   `json:"community_id"`
	UserID      string   `json:"user_id"`
	RoleIDs     []string `json:"role_ids,omitempty"`
}

// Mention is the chat reference to the member.
func (m Member) Mention() string { return "<@" + m.UserID + ">" }

// HasRole reports whether the member already carries roleID.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Role is a grantable access marker in a community.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
