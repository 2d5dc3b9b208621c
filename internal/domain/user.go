package domain

import "time"

// Role constants.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User holds the capability-relevant fields of a marketplace account. Accounts
// are managed elsewhere; this service only reads them.
type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	DisplayName          string    `json:"display_name"`
	Role                 string    `json:"role"`
	CanModerateProducts  bool      `json:"can_moderate_products"`
	CanModerateComments  bool      `json:"can_moderate_comments"`
	CanManageThemes      bool      `json:"can_manage_themes"`
	ModerationCategories []int64   `json:"moderation_categories,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Capabilities is the explicit set of fine-grained permissions a user holds.
type Capabilities struct {
	ModerateProducts bool `json:"moderate_products"`
	ModerateComments bool `json:"moderate_comments"`
	ManageThemes     bool `json:"manage_themes"`
}

// AllCapabilities is the set implicitly held by admins.
func AllCapabilities() Capabilities {
	return Capabilities{ModerateProducts: true, ModerateComments: true, ManageThemes: true}
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID       string
	Role         string
	Capabilities Capabilities
	Scope        CategoryScope
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Actor converts the stored flags into an Actor. Admins get every capability
// and the unrestricted scope regardless of their stored flags.
func (u *User) Actor() Actor {
	if u.IsAdmin() {
		return Actor{UserID: u.ID, Role: RoleAdmin, Capabilities: AllCapabilities(), Scope: AllCategories()}
	}
	return Actor{
		UserID: u.ID,
		Role:   RoleUser,
		Capabilities: Capabilities{
			ModerateProducts: u.CanModerateProducts,
			ModerateComments: u.CanModerateComments,
			ManageThemes:     u.CanManageThemes,
		},
		Scope: ScopeFromList(u.ModerationCategories),
	}
}
