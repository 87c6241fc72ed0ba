package models

import "time"

// Credential is a signed-in identity provider account with its tokens.
type Credential struct {
	UID          string
	Email        string
	DisplayName  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the id token is past (or within skew of) its expiry.
func (c *Credential) Expired(skew time.Duration) bool {
	return c == nil || time.Now().Add(skew).After(c.ExpiresAt)
}
