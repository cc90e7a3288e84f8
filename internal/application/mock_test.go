package application_test

import (
	"archive/zip"
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hytools/jarsync/internal/domain/model"
	"github.com/hytools/jarsync/internal/domain/port/driven"
)

// --- Mock implementations ---

// memCredentialStore is an in-memory single-slot credential store.
type memCredentialStore struct {
	mu        sync.Mutex
	cred      *model.Credential
	loadErr   error
	saveErr   error
	deleteErr error
	saves     int
	deletes   int
}

func (m *memCredentialStore) Save(_ context.Context, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.cred = &cred
	return nil
}

func (m *memCredentialStore) Load(_ context.Context) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.cred == nil {
		return nil, nil
	}
	cred := *m.cred
	return &cred, nil
}

func (m *memCredentialStore) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes++
	m.cred = nil
	return nil
}

func (m *memCredentialStore) stored() *model.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

func (m *memCredentialStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// mockAuthClient answers token-endpoint calls from configurable funcs.
type mockAuthClient struct {
	mu               sync.Mutex
	requestFn        func(ctx context.Context, scope string) (*model.DeviceAuthorization, error)
	pollFn           func(ctx context.Context, deviceCode string) (*model.TokenGrant, error)
	refreshFn        func(ctx context.Context, refreshToken string) (*model.TokenGrant, error)
	pollCount        int
	refreshCount     int
	deviceCodeCalls  int
	lastPolledDevice string
}

func (m *mockAuthClient) RequestDeviceCode(ctx context.Context, scope string) (*model.DeviceAuthorization, error) {
	m.mu.Lock()
	m.deviceCodeCalls++
	fn := m.requestFn
	m.mu.Unlock()
	if fn == nil {
		return &model.DeviceAuthorization{
			DeviceCode:      "dev-1",
			UserCode:        "ABCD-EFGH",
			VerificationURI: "https://example.com/activate",
			ExpiresIn:       600,
			Interval:        5,
		}, nil
	}
	return fn(ctx, scope)
}

func (m *mockAuthClient) PollDeviceToken(ctx context.Context, deviceCode string) (*model.TokenGrant, error) {
	m.mu.Lock()
	m.pollCount++
	m.lastPolledDevice = deviceCode
	fn := m.pollFn
	m.mu.Unlock()
	return fn(ctx, deviceCode)
}

func (m *mockAuthClient) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	m.mu.Lock()
	m.refreshCount++
	fn := m.refreshFn
	m.mu.Unlock()
	return fn(ctx, refreshToken)
}

func (m *mockAuthClient) polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollCount
}

func (m *mockAuthClient) refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCount
}

// pollSequence returns a pollFn that replays the given results in order,
// repeating the last one.
func pollSequence(results ...func() (*model.TokenGrant, error)) func(context.Context, string) (*model.TokenGrant, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, string) (*model.TokenGrant, error) {
		mu.Lock()
		defer mu.Unlock()
		r := results[i]
		if i < len(results)-1 {
			i++
		}
		return r()
	}
}

// memArchiveCache is an in-memory archive cache keyed by channel.
type memArchiveCache struct {
	mu      sync.Mutex
	records map[string]model.CachedArchive
	getErr  error
	putErr  error
	puts    int
}

func newMemArchiveCache() *memArchiveCache {
	return &memArchiveCache{records: make(map[string]model.CachedArchive)}
}

func (m *memArchiveCache) Get(_ context.Context, channel string) (*model.CachedArchive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[channel]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memArchiveCache) Put(_ context.Context, archive model.CachedArchive) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.records[archive.Channel] = archive
	return nil
}

func (m *memArchiveCache) record(channel string) (model.CachedArchive, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[channel]
	return rec, ok
}

// mockReleaseClient serves a fixed descriptor and download payload.
type mockReleaseClient struct {
	mu            sync.Mutex
	descriptor    *model.VersionDescriptor
	descErr       error
	payload       []byte
	payloadTotal  int64 // Content-Length passed to progress; -1 for unknown
	downloadErr   error
	resolveCalls  int
	downloadCalls int
}

func (m *mockReleaseClient) FetchDescriptor(_ context.Context, _, _ string) (*model.VersionDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.descErr != nil {
		return nil, m.descErr
	}
	desc := *m.descriptor
	return &desc, nil
}

func (m *mockReleaseClient) ResolveDownloadURL(_ context.Context, desc *model.VersionDescriptor, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveCalls++
	return "https://cdn.example.com/" + desc.Version, nil
}

func (m *mockReleaseClient) Download(_ context.Context, _, _ string, progress driven.ProgressFunc) ([]byte, error) {
	m.mu.Lock()
	payload, total, err := m.payload, m.payloadTotal, m.downloadErr
	m.downloadCalls++
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if progress != nil {
		// Report in two chunks so proportional progress is observable.
		half := int64(len(payload) / 2)
		progress(half, total)
		progress(int64(len(payload)), total)
	}
	return payload, nil
}

func (m *mockReleaseClient) downloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloadCalls
}

// --- Archive fixtures ---

// buildZip creates an in-memory zip with the given entries.
func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}
