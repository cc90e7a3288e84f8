package driven

import "errors"

// ErrEntryNotFound is returned when a requested entry path does not exist
// in an archive. A missing payload entry in the downloaded wrapper is a
// hard failure for the pipeline run, never treated as "no update".
var ErrEntryNotFound = errors.New("archive entry not found")

// ArchiveHandle exposes a materialized archive: entry paths, plus on-demand
// access to a single entry's raw bytes.
type ArchiveHandle interface {
	// Entries lists all entry paths in the archive.
	Entries() []string

	// ReadEntry materializes the named entry's bytes.
	// Returns ErrEntryNotFound when the path does not exist.
	ReadEntry(path string) ([]byte, error)
}

// ArchiveOpener defines the driven port for the archive-reader capability:
// open raw bytes as an archive and extract nested entries.
type ArchiveOpener interface {
	// Open produces a handle over the given archive bytes.
	Open(payload []byte) (ArchiveHandle, error)

	// ExtractEntry opens wrapper as an archive and materializes the entry at
	// the exact given path. Returns ErrEntryNotFound if the path is absent.
	ExtractEntry(wrapper []byte, path string) ([]byte, error)
}
