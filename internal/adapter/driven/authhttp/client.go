// Package authhttp implements the AuthClient port against the account
// service's OAuth token and device-authorization endpoints (RFC 8628).
package authhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hytools/jarsync/internal/domain/model"
	"github.com/hytools/jarsync/internal/domain/port/driven"
)

const deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// Compile-time interface satisfaction check.
var _ driven.AuthClient = (*Client)(nil)

// Client implements the driven.AuthClient port over plain form-encoded HTTP.
type Client struct {
	http      *http.Client
	tokenURL  string
	deviceURL string
	clientID  string
}

// NewClient creates an auth client for the given endpoints. Individual
// requests are bounded by a 30s client timeout; the device-flow poll loop
// provides its own pacing on top.
func NewClient(tokenURL, deviceURL, clientID string) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: 30 * time.Second}, tokenURL, deviceURL, clientID)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, tokenURL, deviceURL, clientID string) *Client {
	return &Client{
		http:      httpClient,
		tokenURL:  tokenURL,
		deviceURL: deviceURL,
		clientID:  clientID,
	}
}

type deviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RequestDeviceCode starts a device-authorization session.
func (c *Client) RequestDeviceCode(ctx context.Context, scope string) (*model.DeviceAuthorization, error) {
	form := url.Values{
		"client_id": {c.clientID},
		"scope":     {scope},
	}

	body, err := c.postForm(ctx, c.deviceURL, form)
	if err != nil {
		return nil, err
	}

	var resp deviceAuthorizationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode device authorization response: %w", err)
	}
	if resp.DeviceCode == "" || resp.UserCode == "" {
		return nil, fmt.Errorf("device authorization response missing codes")
	}

	return &model.DeviceAuthorization{
		DeviceCode:              resp.DeviceCode,
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		ExpiresIn:               resp.ExpiresIn,
		Interval:                resp.Interval,
	}, nil
}

// PollDeviceToken exchanges a device code for tokens. OAuth error bodies are
// returned as *driven.TokenError so the poll loop can branch on the code.
func (c *Client) PollDeviceToken(ctx context.Context, deviceCode string) (*model.TokenGrant, error) {
	form := url.Values{
		"client_id":   {c.clientID},
		"grant_type":  {deviceGrantType},
		"device_code": {deviceCode},
	}
	return c.requestToken(ctx, form)
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.requestToken(ctx, form)
}

// requestToken posts a token-endpoint grant and maps the response: a 2xx
// body is a token payload, anything else is expected to carry an OAuth
// error object.
func (c *Client) requestToken(ctx context.Context, form url.Values) (*model.TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		var tok tokenResponse
		if err := json.Unmarshal(body, &tok); err != nil {
			return nil, fmt.Errorf("decode token response: %w", err)
		}
		if tok.AccessToken == "" {
			return nil, fmt.Errorf("token response missing access_token")
		}
		return &model.TokenGrant{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresIn:    tok.ExpiresIn,
		}, nil
	}

	var oauthErr errorResponse
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		return nil, &driven.TokenError{
			Code:        model.TokenErrorCode(oauthErr.Error),
			Description: oauthErr.ErrorDescription,
		}
	}

	return nil, fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)
}

// postForm posts a form-encoded body and returns the response bytes,
// failing on any non-2xx status.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned HTTP %d", endpoint, resp.StatusCode)
	}

	return body, nil
}
