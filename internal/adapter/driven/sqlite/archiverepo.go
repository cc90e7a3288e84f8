package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hytools/jarsync/internal/domain/model"
	"github.com/hytools/jarsync/internal/domain/port/driven"
)

// CacheSchemaVersion identifies the payload format of cached archives.
// Bump it whenever the stored payload shape changes; an existing store with
// a different version is discarded entirely on open, never migrated.
const CacheSchemaVersion = 2

// Compile-time interface satisfaction check.
var _ driven.ArchiveCache = (*ArchiveRepo)(nil)

// ArchiveRepo is the SQLite implementation of the ArchiveCache port.
// One row per channel; Put replaces the prior record wholesale.
type ArchiveRepo struct {
	db *DB
}

// NewArchiveRepo creates an ArchiveRepo and reconciles the cache schema
// version: on mismatch, every cached archive is dropped and the stored
// version is rewritten to the current one.
func NewArchiveRepo(ctx context.Context, db *DB) (*ArchiveRepo, error) {
	r := &ArchiveRepo{db: db}
	if err := r.ensureSchemaVersion(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// ensureSchemaVersion discards the whole cache when the persisted schema
// version differs from CacheSchemaVersion.
func (r *ArchiveRepo) ensureSchemaVersion(ctx context.Context) error {
	var stored int
	err := r.db.Reader.QueryRowContext(ctx, `SELECT schema_version FROM cache_meta WHERE id = 1`).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = r.db.Writer.ExecContext(ctx,
			`INSERT INTO cache_meta (id, schema_version) VALUES (1, ?)`, CacheSchemaVersion)
		if err != nil {
			return fmt.Errorf("init cache schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cache schema version: %w", err)
	}

	if stored == CacheSchemaVersion {
		return nil
	}

	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM archives`); err != nil {
		return fmt.Errorf("discard stale archive cache: %w", err)
	}
	if _, err := r.db.Writer.ExecContext(ctx,
		`UPDATE cache_meta SET schema_version = ? WHERE id = 1`, CacheSchemaVersion); err != nil {
		return fmt.Errorf("update cache schema version: %w", err)
	}
	return nil
}

// Get retrieves the cached archive for a channel. Returns (nil, nil) on a miss.
func (r *ArchiveRepo) Get(ctx context.Context, channel string) (*model.CachedArchive, error) {
	const query = `SELECT version, payload, cached_at FROM archives WHERE channel = ?`

	var archive model.CachedArchive
	var cachedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, channel).Scan(&archive.Version, &archive.Payload, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached archive %q: %w", channel, err)
	}

	archive.Channel = channel
	archive.CachedAt, err = parseTime(cachedAt)
	if err != nil {
		return nil, fmt.Errorf("parse cached_at for %q: %w", channel, err)
	}

	return &archive, nil
}

// Put stores or replaces the archive for the record's channel.
func (r *ArchiveRepo) Put(ctx context.Context, archive model.CachedArchive) error {
	const query = `INSERT OR REPLACE INTO archives (channel, version, payload, cached_at) VALUES (?, ?, ?, ?)`
	cachedAt := archive.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now().UTC()
	}
	_, err := r.db.Writer.ExecContext(ctx, query,
		archive.Channel, archive.Version, archive.Payload, cachedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put cached archive %q: %w", archive.Channel, err)
	}
	return nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
