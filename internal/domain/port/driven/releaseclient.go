package driven

import (
	"context"
	"errors"

	"github.com/hytools/jarsync/internal/domain/model"
)

// ErrUnauthorized is returned when a release endpoint rejects the supplied
// access token mid-flight. The pipeline fails the run rather than falling
// back silently.
var ErrUnauthorized = errors.New("release endpoint rejected credential")

// ProgressFunc reports bytes received during a streamed download. total is
// -1 when the response does not expose a Content-Length.
type ProgressFunc func(received, total int64)

// ReleaseClient defines the driven port for resolving and fetching the
// archive advertised for a channel.
type ReleaseClient interface {
	// FetchDescriptor resolves the current version descriptor for a channel
	// using an authenticated lookup.
	FetchDescriptor(ctx context.Context, channel, accessToken string) (*model.VersionDescriptor, error)

	// ResolveDownloadURL turns the descriptor's download reference into a
	// direct, time-limited URL via a second authenticated lookup. Absolute
	// references are returned unchanged without a network round trip.
	ResolveDownloadURL(ctx context.Context, desc *model.VersionDescriptor, accessToken string) (string, error)

	// Download stream-fetches the binary payload, invoking progress as bytes
	// arrive, and returns the complete wrapper bytes.
	Download(ctx context.Context, url, accessToken string, progress ProgressFunc) ([]byte, error)
}
