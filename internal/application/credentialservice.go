package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hytools/jarsync/internal/domain/model"
	"github.com/hytools/jarsync/internal/domain/port/driven"
)

// CredentialService owns the single stored credential: it validates it,
// refreshes it transparently, and raises the auth-needed signal when only a
// new login can help.
type CredentialService struct {
	store driven.CredentialStore
	auth  driven.AuthClient
	bus   *Bus
	clock clockwork.Clock
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(store driven.CredentialStore, auth driven.AuthClient, bus *Bus, clock clockwork.Clock) *CredentialService {
	return &CredentialService{store: store, auth: auth, bus: bus, clock: clock}
}

// GetUsable returns a credential whose access token is valid for the given
// channel, refreshing an expired one in place. It returns (nil, nil) when
// authentication is required -- that is a state, not an error -- and raises
// the auth-needed cell before doing so. A failed refresh is never retried
// here; the user must re-enter the device flow.
func (s *CredentialService) GetUsable(ctx context.Context, channel string) (*model.Credential, error) {
	cred, err := s.store.Load(ctx)
	if err != nil {
		// Degrade a broken store to "not logged in" rather than failing the
		// pipeline; the device flow will rewrite the slot.
		slog.Warn("credential load failed, login required", "error", err)
		s.bus.AuthNeeded.Set(true)
		return nil, nil
	}

	if cred == nil || cred.Channel != channel {
		s.bus.AuthNeeded.Set(true)
		return nil, nil
	}

	if !cred.Expired(s.clock.Now()) {
		return cred, nil
	}

	grant, err := s.auth.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		slog.Warn("token refresh failed, login required", "channel", channel, "error", err)

		// When the server rejected the refresh token it is permanently dead;
		// drop the record instead of leaving a stale, unusable credential.
		// Transport failures keep the record: the token may still be good.
		var tokenErr *driven.TokenError
		if errors.As(err, &tokenErr) {
			if delErr := s.store.Delete(ctx); delErr != nil {
				slog.Error("failed to delete rejected credential", "error", delErr)
			}
		}

		s.bus.AuthNeeded.Set(true)
		return nil, nil
	}

	fresh := credentialFromGrant(s.clock, grant, channel)
	if err := s.store.Save(ctx, fresh); err != nil {
		// The refreshed token is valid in memory even if persisting it
		// failed; the next restart will simply need a refresh or login.
		slog.Error("failed to persist refreshed credential", "error", err)
	}

	slog.Info("access token refreshed", "channel", channel)
	return &fresh, nil
}

// credentialFromGrant builds the stored credential shape from a token grant.
func credentialFromGrant(clock clockwork.Clock, grant *model.TokenGrant, channel string) model.Credential {
	return model.Credential{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    clock.Now().Add(time.Duration(grant.ExpiresIn) * time.Second),
		Channel:      channel,
	}
}
