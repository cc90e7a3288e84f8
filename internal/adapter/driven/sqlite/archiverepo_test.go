package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hytools/jarsync/internal/domain/model"
)

func newTestArchiveRepo(t *testing.T) *ArchiveRepo {
	t.Helper()
	repo, err := NewArchiveRepo(context.Background(), setupTestDB(t))
	require.NoError(t, err)
	return repo
}

func TestArchiveRepo_PutAndGet(t *testing.T) {
	repo := newTestArchiveRepo(t)
	ctx := context.Background()

	want := model.CachedArchive{
		Channel:  "release",
		Version:  "2.3.0",
		Payload:  []byte{0x50, 0x4b, 0x03, 0x04},
		CachedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Put(ctx, want))

	got, err := repo.Get(ctx, "release")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "release", got.Channel)
	assert.Equal(t, "2.3.0", got.Version)
	assert.Equal(t, want.Payload, got.Payload)
	assert.True(t, want.CachedAt.Equal(got.CachedAt))
}

func TestArchiveRepo_GetMiss(t *testing.T) {
	repo := newTestArchiveRepo(t)

	got, err := repo.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestArchiveRepo_PutReplacesRecord(t *testing.T) {
	repo := newTestArchiveRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, model.CachedArchive{
		Channel: "release", Version: "2.3.0", Payload: []byte("old"),
	}))
	// Downgrades replace too: the policy is string inequality, not ordering.
	require.NoError(t, repo.Put(ctx, model.CachedArchive{
		Channel: "release", Version: "2.2.9", Payload: []byte("new"),
	}))

	got, err := repo.Get(ctx, "release")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2.2.9", got.Version)
	assert.Equal(t, []byte("new"), got.Payload)
}

func TestArchiveRepo_ChannelsAreIndependent(t *testing.T) {
	repo := newTestArchiveRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, model.CachedArchive{
		Channel: "release", Version: "2.3.0", Payload: []byte("stable"),
	}))
	require.NoError(t, repo.Put(ctx, model.CachedArchive{
		Channel: "test", Version: "2.4.0-rc1", Payload: []byte("candidate"),
	}))

	got, err := repo.Get(ctx, "release")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2.3.0", got.Version)
}

func TestArchiveRepo_SchemaVersionMismatchDiscardsCache(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repo, err := NewArchiveRepo(ctx, db)
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, model.CachedArchive{
		Channel: "release", Version: "2.3.0", Payload: []byte("payload"),
	}))

	// Simulate a store written by an older build.
	_, err = db.Writer.ExecContext(ctx, `UPDATE cache_meta SET schema_version = ? WHERE id = 1`, CacheSchemaVersion-1)
	require.NoError(t, err)

	reopened, err := NewArchiveRepo(ctx, db)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "release")
	require.NoError(t, err)
	assert.Nil(t, got, "stale-schema cache must be discarded, not migrated")

	var stored int
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT schema_version FROM cache_meta WHERE id = 1`).Scan(&stored))
	assert.Equal(t, CacheSchemaVersion, stored)
}
