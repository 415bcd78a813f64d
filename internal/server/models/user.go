package models

import "time"

// Role tags attached to a user. Every user carries at least RoleUser.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Federated identity providers. An empty Provider means a local account.
const (
	ProviderGoogle = "GOOGLE"
	ProviderYandex = "YANDEX"
)

// User is the identity record. PasswordHash is empty for provider-only
// accounts; such accounts can never be password-authenticated locally.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	Provider     string
	Blocked      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user carries the given role tag.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
