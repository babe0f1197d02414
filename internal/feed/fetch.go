package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "bookcal/internal/log"
)

// ErrNotModifiedNoCache is returned when the server answers 304 but nothing
// is cached locally.
var ErrNotModifiedNoCache = errors.New("feed: 304 Not Modified without cached body")

// cacheMeta is stored next to each cached body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Client downloads ICS bodies with conditional requests and keeps the last
// good body on disk, which is also served when the network fails.
type Client struct {
	http     *http.Client
	cacheDir string
}

// NewClient returns a Client caching under cacheDir. An empty cacheDir
// falls back to ./var/ics-cache for unprivileged development runs.
func NewClient(cacheDir string, httpClient *http.Client) *Client {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{http: httpClient, cacheDir: cacheDir}
}

// Download returns the ICS body of rawURL and whether it came from cache.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, bool, error) {
	if rawURL == "" {
		return nil, false, errors.New("feed: empty URL")
	}

	dir := c.dirFor(rawURL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, false, err
	}
	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Warn("feed download failed, serving cache", "url", redactURL(rawURL), "err", err)
			return cached, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		meta = cacheMeta{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(dir, meta, body); err != nil {
			appLog.Error("feed cache save failed", err, "url", redactURL(rawURL))
		}
		return body, false, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, false, ErrNotModifiedNoCache
		}
		return cached, true, nil

	default:
		if len(cached) > 0 {
			appLog.Warn("feed returned non-OK, serving cache", "url", redactURL(rawURL), "status", resp.StatusCode)
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("feed: %s", resp.Status)
	}
}

// dirFor keys the cache by the first 8 bytes of the URL's SHA-256.
func (c *Client) dirFor(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// saveCache writes the body before the metadata so meta never points at a
// missing body.
func saveCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; private feed URLs carry tokens in
// the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
