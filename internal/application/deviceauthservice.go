package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hytools/jarsync/internal/domain/model"
	"github.com/hytools/jarsync/internal/domain/port/driven"
)

// DeviceAuthState is the observable state of the device-authorization flow.
type DeviceAuthState string

const (
	DeviceAuthIdle       DeviceAuthState = "idle"
	DeviceAuthRequesting DeviceAuthState = "requesting"
	DeviceAuthPolling    DeviceAuthState = "polling"
	DeviceAuthSucceeded  DeviceAuthState = "succeeded"
	DeviceAuthFailed     DeviceAuthState = "failed"
	DeviceAuthExpired    DeviceAuthState = "expired"
)

const (
	// minPollInterval floors the server-supplied poll interval.
	minPollInterval = 5 * time.Second

	// slowDownPenalty is the extra delay inserted after a slow_down reply,
	// on top of the normal interval, for the next poll only.
	slowDownPenalty = 5 * time.Second
)

// User-facing messages published to the auth-error cell.
const (
	msgLoginExpired = "The login request expired. Start a new login to continue."
	msgLoginDenied  = "The login was denied. Start a new login to try again."
	msgLoginFailed  = "Login failed. Please try again later."
	msgLoginNoSave  = "Login succeeded but the credential could not be saved. Try again."
)

// DeviceAuthService drives the OAuth device-authorization flow: request a
// device code, publish it for display, poll the token endpoint in the
// background, and persist the credential on success. At most one session is
// live; starting a new login supersedes any prior polling loop, and each
// session emits exactly one terminal outcome (or none, when cancelled).
type DeviceAuthService struct {
	auth  driven.AuthClient
	store driven.CredentialStore
	bus   *Bus
	clock clockwork.Clock
	scope string

	mu     sync.Mutex
	state  DeviceAuthState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDeviceAuthService creates a DeviceAuthService requesting the given
// OAuth scope.
func NewDeviceAuthService(auth driven.AuthClient, store driven.CredentialStore, bus *Bus, clock clockwork.Clock, scope string) *DeviceAuthService {
	return &DeviceAuthService{
		auth:  auth,
		store: store,
		bus:   bus,
		clock: clock,
		scope: scope,
		state: DeviceAuthIdle,
	}
}

// State returns the current flow state.
func (s *DeviceAuthService) State() DeviceAuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartLogin begins a device-authorization session for the given channel.
// Any live session is cancelled first, and the previous error message is
// cleared. On success the prompt cell carries the user code while a
// background goroutine polls for the token.
func (s *DeviceAuthService) StartLogin(ctx context.Context, channel string) error {
	s.CancelLogin()
	s.bus.AuthError.Set("")
	s.setState(DeviceAuthRequesting)

	authz, err := s.auth.RequestDeviceCode(ctx, s.scope)
	if err != nil {
		s.bus.AuthError.Set(msgLoginFailed)
		s.setState(DeviceAuthFailed)
		return fmt.Errorf("request device code: %w", err)
	}

	interval := time.Duration(authz.Interval) * time.Second
	if interval < minPollInterval {
		interval = minPollInterval
	}
	expiresAt := s.clock.Now().Add(time.Duration(authz.ExpiresIn) * time.Second)

	s.bus.Prompt.Set(&model.DevicePrompt{
		UserCode:                authz.UserCode,
		VerificationURI:         authz.VerificationURI,
		VerificationURIComplete: authz.VerificationURIComplete,
		ExpiresAt:               expiresAt,
	})

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.state = DeviceAuthPolling
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	slog.Info("device authorization started",
		"channel", channel,
		"user_code", authz.UserCode,
		"verification_uri", authz.VerificationURI,
		"poll_interval", interval,
	)

	go s.poll(pollCtx, authz.DeviceCode, channel, interval, expiresAt, done)
	return nil
}

// CancelLogin aborts the live session, if any: the in-flight HTTP request
// and the sleep timer are interrupted, the prompt and any pending error are
// cleared, and no terminal outcome is emitted. Cancelling twice, or with
// nothing active, is a no-op that leaves the flow idle.
func (s *DeviceAuthService) CancelLogin() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		s.setState(DeviceAuthIdle)
		return
	}

	cancel()
	<-done

	s.bus.Prompt.Set(nil)
	s.bus.AuthError.Set("")
	s.setState(DeviceAuthIdle)
}

// poll is the background loop of one session: sleep, ask the token endpoint,
// branch on the OAuth error code. It exits after emitting one terminal
// outcome, or silently when the session context is cancelled.
func (s *DeviceAuthService) poll(ctx context.Context, deviceCode, channel string, interval time.Duration, expiresAt time.Time, done chan struct{}) {
	defer close(done)

	delay := interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(delay):
		}
		delay = interval

		// The server-supplied session expiry bounds the loop: past it we
		// report expiry instead of polling forever.
		if !s.clock.Now().Before(expiresAt) {
			s.finish(ctx, DeviceAuthExpired, msgLoginExpired)
			return
		}

		grant, err := s.auth.PollDeviceToken(ctx, deviceCode)
		if err == nil {
			s.succeed(ctx, grant, channel)
			return
		}

		var tokenErr *driven.TokenError
		if errors.As(err, &tokenErr) {
			switch tokenErr.Code {
			case model.TokenErrorAuthorizationPending:
				continue
			case model.TokenErrorSlowDown:
				delay = interval + slowDownPenalty
				continue
			case model.TokenErrorExpiredToken:
				s.finish(ctx, DeviceAuthExpired, msgLoginExpired)
				return
			case model.TokenErrorAccessDenied:
				s.finish(ctx, DeviceAuthFailed, msgLoginDenied)
				return
			}
		}

		if ctx.Err() != nil {
			// The request was aborted by cancellation, not a real failure.
			return
		}

		slog.Warn("device token poll failed", "channel", channel, "error", err)
		s.finish(ctx, DeviceAuthFailed, msgLoginFailed)
		return
	}
}

// succeed persists the credential and publishes the success outcome:
// prompt and auth-needed cleared, authenticated trigger fired.
func (s *DeviceAuthService) succeed(ctx context.Context, grant *model.TokenGrant, channel string) {
	cred := credentialFromGrant(s.clock, grant, channel)
	if err := s.store.Save(ctx, cred); err != nil {
		slog.Error("failed to persist credential after login", "channel", channel, "error", err)
		s.finish(ctx, DeviceAuthFailed, msgLoginNoSave)
		return
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.state = DeviceAuthSucceeded
	s.mu.Unlock()

	s.bus.Prompt.Set(nil)
	s.bus.AuthError.Set("")
	s.bus.AuthNeeded.Set(false)
	s.bus.Authenticated.Emit()

	slog.Info("device authorization succeeded", "channel", channel)
}

// finish publishes a terminal failure outcome unless the session was
// cancelled in the meantime (cancellation must never surface as an error).
func (s *DeviceAuthService) finish(ctx context.Context, state DeviceAuthState, message string) {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	s.bus.Prompt.Set(nil)
	s.bus.AuthError.Set(message)
}

func (s *DeviceAuthService) setState(state DeviceAuthState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
