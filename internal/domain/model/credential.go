package model

import "time"

// Credential is the single stored account credential. It is owned by the
// credential service and replaced wholesale on every refresh or login --
// never partially updated.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Channel      string
}

// Expired reports whether the access token must not be used without a
// refresh at the given instant.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
