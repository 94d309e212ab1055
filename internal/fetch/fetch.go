// Package fetch downloads stream artifacts into a local cache. Downloads
// are retried on transient failures and land atomically, so a killed
// download never leaves a truncated file that a later run would replay.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/virtcam/virtcam/internal/events"
	"github.com/virtcam/virtcam/internal/metrics"
)

// progressStep is the byte interval between progress events.
const progressStep = 256 * 1024

// Downloader fetches artifacts by URL into a cache directory.
type Downloader struct {
	dir    string
	client *retryablehttp.Client
	bus    *events.Bus
	logger *slog.Logger
}

// New creates a downloader caching into dir. bus may be nil when nobody
// listens for progress.
func New(dir string, bus *events.Bus, logger *slog.Logger) *Downloader {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &Downloader{
		dir:    dir,
		client: client,
		bus:    bus,
		logger: logger,
	}
}

// Path returns where the named artifact lives in the cache, whether or not
// it has been downloaded yet.
func (d *Downloader) Path(filename string) string {
	return filepath.Join(d.dir, filename)
}

// Cached reports whether the named artifact is already present.
func (d *Downloader) Cached(filename string) bool {
	info, err := os.Stat(d.Path(filename))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Fetch ensures the named artifact is in the cache and returns its path.
// Present artifacts are returned without touching the network.
func (d *Downloader) Fetch(ctx context.Context, url, filename string) (string, error) {
	path := d.Path(filename)
	if d.Cached(filename) {
		d.logger.Debug("artifact cached", "file", filename)
		return path, nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return "", fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil {
			d.logger.Debug("cleanup pending artifact", "error", cerr)
		}
	}()

	d.logger.Info("downloading artifact", "url", url, "file", filename)
	pw := &progressWriter{w: pending, url: url, total: resp.ContentLength, bus: d.bus}
	n, err := io.Copy(pw, resp.Body)
	metrics.AddDownloadedBytes(n)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("commit artifact: %w", err)
	}

	pw.publish(true)
	d.logger.Info("artifact downloaded", "file", filename, "bytes", n)
	return path, nil
}

// ClearCache removes all cached artifacts. Missing cache dir is not an
// error.
func (d *Downloader) ClearCache() error {
	entries, err := os.ReadDir(d.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, entry.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// progressWriter publishes download progress at coarse intervals so the
// bus is not flooded per read.
type progressWriter struct {
	w     io.Writer
	url   string
	total int64
	bus   *events.Bus

	written   int64
	published int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.written-p.published >= progressStep {
		p.publish(false)
	}
	return n, err
}

func (p *progressWriter) publish(done bool) {
	p.published = p.written
	if p.bus == nil {
		return
	}
	total := p.total
	if total == 0 {
		total = -1
	}
	p.bus.Publish(events.DownloadProgressEvent{
		URL:        p.url,
		Downloaded: p.written,
		Total:      total,
		Done:       done,
	})
}
