package driven

import (
	"context"
	"fmt"

	"github.com/hytools/jarsync/internal/domain/model"
)

// TokenError is a structured OAuth error body returned by the token
// endpoint. The device-authorization poll loop branches on Code; every
// other caller treats it as an ordinary failure.
type TokenError struct {
	Code        model.TokenErrorCode
	Description string
}

func (e *TokenError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("token endpoint: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("token endpoint: %s", e.Code)
}

// AuthClient defines the driven port for the OAuth device-authorization and
// token endpoints.
type AuthClient interface {
	// RequestDeviceCode starts a device-authorization session for the given
	// scope and returns the codes the user needs to complete it.
	RequestDeviceCode(ctx context.Context, scope string) (*model.DeviceAuthorization, error)

	// PollDeviceToken exchanges a device code for tokens. While the user has
	// not finished authorizing, it returns a *TokenError with code
	// authorization_pending or slow_down; terminal denials return
	// access_denied or expired_token.
	PollDeviceToken(ctx context.Context, deviceCode string) (*model.TokenGrant, error)

	// RefreshToken exchanges a refresh token for a new token pair.
	RefreshToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error)
}
