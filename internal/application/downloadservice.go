package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hytools/jarsync/internal/domain/model"
	"github.com/hytools/jarsync/internal/domain/port/driven"
)

// ErrAwaitingAuth marks a pipeline run that is suspended until a login
// completes. It is a state, not a failure: the Run loop holds the pipeline
// and re-enters it from scratch when the authenticated trigger fires.
var ErrAwaitingAuth = errors.New("awaiting authentication")

// Archive is an opened, version-tagged server archive.
type Archive struct {
	Version string
	Handle  driven.ArchiveHandle
}

// Progress markers. The network fetch occupies the middle band; fixed
// markers bound it below (resolving) and above (post-processing).
const (
	pctStart       = 10
	pctDescriptor  = 20
	pctPreFetch    = 30
	pctFetchStart  = 40
	pctFetchCoarse = 50 // single mid-band jump when the size is unknown
	pctPostFetch   = 85
	pctCacheHit    = 90
	pctFetchEnd    = 90
	pctPersisted   = 95
)

// DownloadService resolves the remote version for a channel, consults the
// archive cache, downloads and unwraps the wrapper container on a miss, and
// returns an opened archive. Runs for a channel never overlap: the Run loop
// is the single executor, and a new run supersedes whatever the previous
// one produced.
type DownloadService struct {
	creds        *CredentialService
	release      driven.ReleaseClient
	cache        driven.ArchiveCache
	opener       driven.ArchiveOpener
	bus          *Bus
	payloadEntry string // exact path of the payload inside the wrapper
}

// NewDownloadService creates a DownloadService. payloadEntry is the exact
// entry path extracted from the downloaded wrapper container.
func NewDownloadService(creds *CredentialService, release driven.ReleaseClient, cache driven.ArchiveCache, opener driven.ArchiveOpener, bus *Bus, payloadEntry string) *DownloadService {
	return &DownloadService{
		creds:        creds,
		release:      release,
		cache:        cache,
		opener:       opener,
		bus:          bus,
		payloadEntry: payloadEntry,
	}
}

// Run drives the pipeline for a channel. It waits for the readiness signal
// (consent granted), performs an acquisition, and re-enters the whole
// operation from scratch whenever a login completes. Run blocks until the
// context is cancelled.
func (s *DownloadService) Run(ctx context.Context, channel string, ready <-chan struct{}) {
	authenticated, unsubscribe := s.bus.Authenticated.Subscribe()
	defer unsubscribe()

	select {
	case <-ctx.Done():
		return
	case <-ready:
	}

	for {
		archive, err := s.Acquire(ctx, channel)
		switch {
		case errors.Is(err, ErrAwaitingAuth):
			slog.Info("download suspended until login completes", "channel", channel)
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			slog.Error("archive acquisition failed", "channel", channel, "error", err)
		default:
			s.bus.Archive.Set(archive)
		}

		select {
		case <-ctx.Done():
			return
		case <-authenticated:
			// A fresh login supersedes the previous run's outcome.
		}
	}
}

// Acquire performs one pipeline run: credential, descriptor, cache check,
// fetch-and-unwrap on a miss, persist, open. Progress is published while it
// works and reset to idle on the way out, success or not.
func (s *DownloadService) Acquire(ctx context.Context, channel string) (*Archive, error) {
	prog := newProgressTracker(s.bus)
	defer prog.reset()

	prog.publish(pctStart)

	cred, err := s.creds.GetUsable(ctx, channel)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrAwaitingAuth
	}

	desc, err := s.release.FetchDescriptor(ctx, channel, cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch version descriptor: %w", err)
	}
	prog.publish(pctDescriptor)

	// The cache check comes before any download traffic; a read failure is
	// just a miss.
	cached, err := s.cache.Get(ctx, channel)
	if err != nil {
		slog.Warn("archive cache read failed, treating as miss", "channel", channel, "error", err)
		cached = nil
	}
	if cached != nil && cached.Version == desc.Version {
		slog.Info("using cached archive", "channel", channel, "version", cached.Version)
		prog.publish(pctCacheHit)

		handle, err := s.opener.Open(cached.Payload)
		if err != nil {
			return nil, fmt.Errorf("open cached archive: %w", err)
		}
		return &Archive{Version: cached.Version, Handle: handle}, nil
	}

	downloadURL, err := s.release.ResolveDownloadURL(ctx, desc, cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("resolve download url: %w", err)
	}
	prog.publish(pctPreFetch)

	slog.Info("downloading archive", "channel", channel, "version", desc.Version)
	wrapper, err := s.release.Download(ctx, downloadURL, cred.AccessToken, func(received, total int64) {
		if total <= 0 {
			prog.publish(pctFetchCoarse)
			return
		}
		pct := pctFetchStart + int(float64(received)/float64(total)*float64(pctFetchEnd-pctFetchStart))
		if pct > pctFetchEnd {
			pct = pctFetchEnd
		}
		prog.publish(pct)
	})
	if err != nil {
		return nil, fmt.Errorf("download archive: %w", err)
	}

	if desc.Checksum != "" {
		sum := sha256.Sum256(wrapper)
		if !strings.EqualFold(hex.EncodeToString(sum[:]), desc.Checksum) {
			return nil, fmt.Errorf("wrapper checksum mismatch for version %s", desc.Version)
		}
	}
	prog.publish(pctPostFetch)

	payload, err := s.opener.ExtractEntry(wrapper, s.payloadEntry)
	if err != nil {
		return nil, fmt.Errorf("extract %q from wrapper: %w", s.payloadEntry, err)
	}

	// The extracted payload is cached, not the wrapper. A write failure is
	// logged and the in-memory archive is still returned.
	if err := s.cache.Put(ctx, model.CachedArchive{
		Channel:  channel,
		Version:  desc.Version,
		Payload:  payload,
		CachedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("archive cache write failed", "channel", channel, "error", err)
	}
	prog.publish(pctPersisted)

	handle, err := s.opener.Open(payload)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	slog.Info("archive ready", "channel", channel, "version", desc.Version, "entries", len(handle.Entries()))
	return &Archive{Version: desc.Version, Handle: handle}, nil
}

// progressTracker publishes non-decreasing progress within one run.
type progressTracker struct {
	bus  *Bus
	last int
}

func newProgressTracker(bus *Bus) *progressTracker {
	return &progressTracker{bus: bus}
}

func (p *progressTracker) publish(pct int) {
	if pct < p.last {
		return
	}
	p.last = pct
	p.bus.Progress.Set(Progress{Percent: pct, Running: true})
}

func (p *progressTracker) reset() {
	p.bus.Progress.Set(Progress{})
}
