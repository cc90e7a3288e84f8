// Package ziparchive adapts the standard zip reader to the ArchiveOpener
// port. Server archives are jar files, which are plain zip containers.
package ziparchive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/hytools/jarsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ArchiveOpener = (*Opener)(nil)

// Opener opens raw bytes as zip archives.
type Opener struct{}

// NewOpener creates an Opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open produces a handle over the given archive bytes.
func (o *Opener) Open(payload []byte) (driven.ArchiveHandle, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	h := &handle{files: make(map[string]*zip.File, len(reader.File))}
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		h.files[f.Name] = f
		h.paths = append(h.paths, f.Name)
	}
	sort.Strings(h.paths)
	return h, nil
}

// ExtractEntry opens wrapper as an archive and materializes the entry at
// the exact given path.
func (o *Opener) ExtractEntry(wrapper []byte, path string) ([]byte, error) {
	h, err := o.Open(wrapper)
	if err != nil {
		return nil, err
	}
	return h.ReadEntry(path)
}

type handle struct {
	files map[string]*zip.File
	paths []string
}

// Entries lists all file entry paths in the archive, sorted.
func (h *handle) Entries() []string {
	return h.paths
}

// ReadEntry materializes the named entry's bytes on demand.
func (h *handle) ReadEntry(path string) ([]byte, error) {
	f, ok := h.files[path]
	if !ok {
		return nil, fmt.Errorf("%q: %w", path, driven.ErrEntryNotFound)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %q: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %q: %w", path, err)
	}
	return data, nil
}
