package model

import "time"

// DeviceAuthorization is the response to a device-authorization request
// (RFC 8628 section 3.2). ExpiresIn and Interval are in seconds.
type DeviceAuthorization struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int
	Interval                int
}

// DevicePrompt is the user-facing portion of an active device-authorization
// session, published for display while polling proceeds in the background.
type DevicePrompt struct {
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time
}

// TokenGrant is a successful token-endpoint response for either the
// device-code or the refresh-token grant. ExpiresIn is in seconds.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// TokenErrorCode is the OAuth error vocabulary returned by the token
// endpoint while a device authorization is pending or has failed.
type TokenErrorCode string

const (
	TokenErrorAuthorizationPending TokenErrorCode = "authorization_pending"
	TokenErrorSlowDown             TokenErrorCode = "slow_down"
	TokenErrorAccessDenied         TokenErrorCode = "access_denied"
	TokenErrorExpiredToken         TokenErrorCode = "expired_token"
)
