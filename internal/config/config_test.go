package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every JARSYNC_ env var that Load() reads.
var allConfigKeys = []string{
	"JARSYNC_CHANNEL",
	"JARSYNC_CLIENT_ID",
	"JARSYNC_SCOPE",
	"JARSYNC_DEVICE_AUTH_URL",
	"JARSYNC_TOKEN_URL",
	"JARSYNC_API_URL",
	"JARSYNC_PAYLOAD_ENTRY",
	"JARSYNC_DB_PATH",
	"JARSYNC_SECRET_KEY",
	"JARSYNC_EULA_ACCEPTED",
}

// isolateConfigEnv saves and unsets all JARSYNC_ env vars so tests don't
// inherit values from the host environment. t.Cleanup restores original
// values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

// setRequired sets the four required endpoint/identity variables.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JARSYNC_CLIENT_ID", "client-123")
	t.Setenv("JARSYNC_DEVICE_AUTH_URL", "https://auth.example.com/oauth/device")
	t.Setenv("JARSYNC_TOKEN_URL", "https://auth.example.com/oauth/token")
	t.Setenv("JARSYNC_API_URL", "https://api.example.com")
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("JARSYNC_CHANNEL", "beta")
	t.Setenv("JARSYNC_SCOPE", "archive:read")
	t.Setenv("JARSYNC_PAYLOAD_ENTRY", "payload/inner.jar")
	t.Setenv("JARSYNC_DB_PATH", "/tmp/test.db")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "beta", cfg.Channel)
	assert.Equal(t, "client-123", cfg.ClientID)
	assert.Equal(t, "archive:read", cfg.Scope)
	assert.Equal(t, "https://auth.example.com/oauth/device", cfg.DeviceAuthURL)
	assert.Equal(t, "https://auth.example.com/oauth/token", cfg.TokenURL)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, "payload/inner.jar", cfg.PayloadEntry)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Channel)
	assert.Equal(t, "offline_access archive:read", cfg.Scope)
	assert.Equal(t, "archive/server.jar", cfg.PayloadEntry)
	assert.Equal(t, "jarsync.db", cfg.DBPath)
}

func TestLoad_MissingClientID(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	os.Unsetenv("JARSYNC_CLIENT_ID")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JARSYNC_CLIENT_ID")
}

func TestLoad_MissingEndpoints(t *testing.T) {
	for _, key := range []string{"JARSYNC_DEVICE_AUTH_URL", "JARSYNC_TOKEN_URL", "JARSYNC_API_URL"} {
		t.Run(key, func(t *testing.T) {
			isolateConfigEnv(t)
			setRequired(t)
			os.Unsetenv(key)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_EULAAccepted(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("JARSYNC_EULA_ACCEPTED", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.EULAAccepted)
}

func TestLoad_EULAAccepted_DefaultFalse(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.EULAAccepted)
}

func TestLoad_EULAAccepted_Invalid(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("JARSYNC_EULA_ACCEPTED", "maybe")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JARSYNC_EULA_ACCEPTED")
}

func TestLoad_SecretKey_Absent(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Nil(t, cfg.EncryptionKey)
	assert.False(t, cfg.HasEncryptionKey())
}

func TestLoad_SecretKey_Valid(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	// 64 hex chars = 32 bytes
	t.Setenv("JARSYNC_SECRET_KEY", "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Len(t, cfg.EncryptionKey, 32)
	assert.True(t, cfg.HasEncryptionKey())
}

func TestLoad_SecretKey_TooShort(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("JARSYNC_SECRET_KEY", "deadbeef")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JARSYNC_SECRET_KEY")
}

func TestLoad_SecretKey_NotHex(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	// 64 chars but not valid hex
	t.Setenv("JARSYNC_SECRET_KEY", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JARSYNC_SECRET_KEY")
}
