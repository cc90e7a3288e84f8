// Package releasehttp implements the ReleaseClient port: version-descriptor
// resolution and streamed archive downloads against the release service.
//
// Descriptor and manifest lookups go through an ETag-aware caching transport
// (httpcache), so a fresh check still hits the network on every run but an
// unchanged manifest costs a 304 instead of a full body.
package releasehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gregjones/httpcache"

	"github.com/hytools/jarsync/internal/domain/model"
	"github.com/hytools/jarsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReleaseClient = (*Client)(nil)

// Client implements the driven.ReleaseClient port.
// No overall timeout is set on the underlying http.Client: archive downloads
// can legitimately run for minutes and are bounded by the request context.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a release client rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Transport: httpcache.NewMemoryCacheTransport()},
		baseURL: baseURL,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: baseURL}
}

type latestResponse struct {
	ManifestURL string `json:"manifest_url"`
}

type manifestResponse struct {
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
	Checksum    string `json:"checksum"`
}

type linkResponse struct {
	URL string `json:"url"`
}

// FetchDescriptor resolves the current version descriptor for a channel:
// first the channel's latest pointer, then the manifest it points at.
func (c *Client) FetchDescriptor(ctx context.Context, channel, accessToken string) (*model.VersionDescriptor, error) {
	pointerURL := fmt.Sprintf("%s/v1/channels/%s/latest", c.baseURL, url.PathEscape(channel))

	var latest latestResponse
	if err := c.getJSON(ctx, pointerURL, accessToken, &latest); err != nil {
		return nil, fmt.Errorf("fetch latest pointer for %q: %w", channel, err)
	}
	if latest.ManifestURL == "" {
		return nil, fmt.Errorf("latest pointer for %q has no manifest_url", channel)
	}

	manifestURL, err := c.absoluteURL(latest.ManifestURL)
	if err != nil {
		return nil, err
	}

	var manifest manifestResponse
	if err := c.getJSON(ctx, manifestURL, accessToken, &manifest); err != nil {
		return nil, fmt.Errorf("fetch manifest for %q: %w", channel, err)
	}
	if manifest.Version == "" || manifest.DownloadURL == "" {
		return nil, fmt.Errorf("manifest for %q is missing version or download_url", channel)
	}

	return &model.VersionDescriptor{
		Version:     manifest.Version,
		DownloadURL: manifest.DownloadURL,
		Checksum:    manifest.Checksum,
	}, nil
}

// ResolveDownloadURL turns the descriptor's download reference into a direct
// URL. Absolute references are used as-is; relative ones are exchanged for a
// time-limited signed URL via an authenticated link lookup.
func (c *Client) ResolveDownloadURL(ctx context.Context, desc *model.VersionDescriptor, accessToken string) (string, error) {
	ref, err := url.Parse(desc.DownloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download reference %q: %w", desc.DownloadURL, err)
	}
	if ref.IsAbs() {
		return desc.DownloadURL, nil
	}

	linkURL := fmt.Sprintf("%s/v1/links?ref=%s", c.baseURL, url.QueryEscape(desc.DownloadURL))
	var link linkResponse
	if err := c.getJSON(ctx, linkURL, accessToken, &link); err != nil {
		return "", fmt.Errorf("resolve download reference %q: %w", desc.DownloadURL, err)
	}
	if link.URL == "" {
		return "", fmt.Errorf("link lookup for %q returned no url", desc.DownloadURL)
	}
	return link.URL, nil
}

// Download stream-fetches the wrapper bytes, reporting progress as chunks
// arrive. total is the Content-Length, or -1 when the server does not
// advertise one.
func (c *Client) Download(ctx context.Context, downloadURL, accessToken string, progress driven.ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("download %s: %w", downloadURL, driven.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned HTTP %d", resp.StatusCode)
	}

	total := resp.ContentLength // -1 when unknown
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	chunk := make([]byte, 64*1024)
	var received int64
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			received += int64(n)
			if progress != nil {
				progress(received, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read download body: %w", readErr)
		}
	}

	return buf.Bytes(), nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
// 401/403 map to driven.ErrUnauthorized so the pipeline can distinguish a
// revoked credential from a transport failure.
func (c *Client) getJSON(ctx context.Context, requestURL, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return driven.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// absoluteURL resolves a possibly-relative reference against the base URL.
func (c *Client) absoluteURL(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	if parsed.IsAbs() {
		return ref, nil
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", c.baseURL, err)
	}
	return base.ResolveReference(parsed).String(), nil
}
