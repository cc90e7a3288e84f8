package driven

import (
	"context"

	"github.com/hytools/jarsync/internal/domain/model"
)

// ArchiveCache defines the driven port for durable archive storage keyed by
// channel. A record is replaced wholesale whenever the remote version string
// differs; the store never keeps historical versions.
type ArchiveCache interface {
	// Get retrieves the cached archive for the given channel.
	// Returns (nil, nil) on a cache miss.
	Get(ctx context.Context, channel string) (*model.CachedArchive, error)

	// Put stores or replaces the archive for the record's channel.
	Put(ctx context.Context, archive model.CachedArchive) error
}
