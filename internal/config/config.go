// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Channel is the release channel whose archive is acquired.
	Channel string

	// ClientID is the OAuth client identifier used by the device flow.
	ClientID string

	// Scope is the OAuth scope requested during the device flow.
	Scope string

	// DeviceAuthURL is the OAuth device-authorization endpoint.
	DeviceAuthURL string

	// TokenURL is the OAuth token endpoint, used for device-code polling and
	// refresh grants.
	TokenURL string

	// APIBaseURL is the base URL of the release API.
	APIBaseURL string

	// PayloadEntry is the path of the payload archive inside the downloaded
	// wrapper container.
	PayloadEntry string

	// DBPath is the SQLite database file holding the credential slot and the
	// archive cache.
	DBPath string

	// EncryptionKey is the 32-byte AES key protecting the stored credential,
	// or nil when no key is configured. Without a key the credential is held
	// in memory only and every restart requires a fresh login.
	EncryptionKey []byte

	// EULAAccepted records prior acceptance of the distribution terms; when
	// false the CLI asks for confirmation before the first download.
	EULAAccepted bool
}

// HasEncryptionKey reports whether credential persistence is enabled.
func (c *Config) HasEncryptionKey() bool {
	return len(c.EncryptionKey) > 0
}

// Load reads configuration from environment variables and returns a validated Config.
// JARSYNC_CLIENT_ID, JARSYNC_DEVICE_AUTH_URL, JARSYNC_TOKEN_URL and
// JARSYNC_API_URL are required. Optional variables with defaults:
// JARSYNC_CHANNEL (release), JARSYNC_SCOPE (offline_access archive:read),
// JARSYNC_PAYLOAD_ENTRY (archive/server.jar), JARSYNC_DB_PATH (jarsync.db).
// JARSYNC_SECRET_KEY is an optional 64-char hex string (32 bytes) enabling
// encrypted credential persistence. JARSYNC_EULA_ACCEPTED=true skips the
// interactive consent prompt.
func Load() (*Config, error) {
	clientID := os.Getenv("JARSYNC_CLIENT_ID")
	if clientID == "" {
		return nil, fmt.Errorf("JARSYNC_CLIENT_ID is required")
	}

	deviceAuthURL := os.Getenv("JARSYNC_DEVICE_AUTH_URL")
	if deviceAuthURL == "" {
		return nil, fmt.Errorf("JARSYNC_DEVICE_AUTH_URL is required")
	}

	tokenURL := os.Getenv("JARSYNC_TOKEN_URL")
	if tokenURL == "" {
		return nil, fmt.Errorf("JARSYNC_TOKEN_URL is required")
	}

	apiBaseURL := os.Getenv("JARSYNC_API_URL")
	if apiBaseURL == "" {
		return nil, fmt.Errorf("JARSYNC_API_URL is required")
	}

	channel := "release"
	if v, ok := os.LookupEnv("JARSYNC_CHANNEL"); ok && v != "" {
		channel = v
	}

	scope := "offline_access archive:read"
	if v, ok := os.LookupEnv("JARSYNC_SCOPE"); ok && v != "" {
		scope = v
	}

	payloadEntry := "archive/server.jar"
	if v, ok := os.LookupEnv("JARSYNC_PAYLOAD_ENTRY"); ok && v != "" {
		payloadEntry = v
	}

	dbPath := "jarsync.db"
	if v, ok := os.LookupEnv("JARSYNC_DB_PATH"); ok && v != "" {
		dbPath = v
	}

	eulaAccepted := false
	if v, ok := os.LookupEnv("JARSYNC_EULA_ACCEPTED"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("JARSYNC_EULA_ACCEPTED is not a boolean: %w", err)
		}
		eulaAccepted = parsed
	}

	var key []byte
	if v, ok := os.LookupEnv("JARSYNC_SECRET_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("JARSYNC_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("JARSYNC_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		key = decoded
	}

	return &Config{
		Channel:       channel,
		ClientID:      clientID,
		Scope:         scope,
		DeviceAuthURL: deviceAuthURL,
		TokenURL:      tokenURL,
		APIBaseURL:    apiBaseURL,
		PayloadEntry:  payloadEntry,
		DBPath:        dbPath,
		EncryptionKey: key,
		EULAAccepted:  eulaAccepted,
	}, nil
}
