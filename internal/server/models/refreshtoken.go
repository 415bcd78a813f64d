package models

import "time"

// RefreshToken is a persisted long-lived credential. At most one live row
// exists per (UserID, UserAgent) pair; a new login or refresh from the same
// agent replaces the row instead of appending.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token expiry is at or before now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TokenPair bundles a short-lived access token and the refresh token record
// just written. It is the return value of issuance and is never persisted.
type TokenPair struct {
	AccessToken  string
	RefreshToken *RefreshToken
}
