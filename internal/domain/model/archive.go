package model

import "time"

// VersionDescriptor is the remote description of the latest archive for a
// channel. It is fetched fresh on every pipeline run and never cached; only
// the version string decides whether a cached archive is stale.
type VersionDescriptor struct {
	Version     string
	DownloadURL string
	// Checksum is an optional hex-encoded SHA-256 of the downloaded wrapper.
	// Empty means the manifest did not advertise one.
	Checksum string
}

// CachedArchive is one persisted archive payload. There is at most one
// record per channel; a newer version replaces the prior record wholesale,
// including downgrades (version comparison is string equality only).
type CachedArchive struct {
	Channel  string
	Version  string
	Payload  []byte
	CachedAt time.Time
}
