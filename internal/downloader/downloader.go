package downloader

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// Downloader retrieves release archives over HTTP(S) or from file:// mirrors.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a new downloader.
func NewDownloader() *Downloader {
	return &Downloader{client: &http.Client{}}
}

// NewDownloaderWithClient creates a downloader using client for HTTP requests.
func NewDownloaderWithClient(client *http.Client) *Downloader {
	return &Downloader{client: client}
}

// Fetch downloads rawURL to destPath. The file only appears at destPath once
// it is complete.
func (d *Downloader) Fetch(rawURL, destPath string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing URL %s: %w", rawURL, err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "file":
		f, err := os.Open(filepath.FromSlash(u.Path))
		if err != nil {
			return fmt.Errorf("downloading %s: %w", rawURL, err)
		}
		body = f
	case "http", "https":
		resp, err := d.client.Get(rawURL)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", rawURL, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("downloading %s: HTTP %d", rawURL, resp.StatusCode)
		}
		body = resp.Body
	default:
		return fmt.Errorf("downloading %s: unsupported scheme %q", rawURL, u.Scheme)
	}
	defer body.Close()

	// Write to temp file first, then rename
	out, err := renameio.TempFile(filepath.Dir(destPath), destPath)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer out.Cleanup()

	if _, err := io.Copy(out, body); err != nil {
		return fmt.Errorf("writing %s: %w", destPath, err)
	}

	if err := out.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}

	return nil
}
