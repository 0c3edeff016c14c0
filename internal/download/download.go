// Package download implements the bottle downloader (C7): cache-by-filename
// lookup, streaming HTTPS fetch with SHA-256 re-verification, and parallel
// batch download with first-failure short-circuit.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bru-dev/bru/internal/brerrors"
	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/httputil"
	"github.com/bru-dev/bru/internal/log"
)

// Bottle describes one bottle to fetch: enough to build its cache filename,
// locate it at the GHCR/S3 URL, and verify its digest.
type Bottle struct {
	Name     string
	Version  string
	Tag      string // platform tag, e.g. "arm64_sonoma"
	URL      string
	SHA256   string
	BearerToken string // set for GHCR blob URLs; empty for plain HTTPS hosts
}

// Downloader fetches bottles into the download cache.
type Downloader struct {
	cacheDir   string
	httpClient *http.Client
	logger     log.Logger
}

// New builds a Downloader rooted at cfg.DownloadCacheDir.
func New(cfg *config.Config, logger log.Logger) *Downloader {
	if logger == nil {
		logger = log.NewNoop()
	}
	opts := httputil.DefaultOptions()
	opts.Timeout = config.GetAPITimeout()
	return &Downloader{
		cacheDir:   cfg.DownloadCacheDir,
		httpClient: httputil.NewSecureClient(opts),
		logger:     logger,
	}
}

// filename builds the cache-by-filename scheme from spec §4.6.
func filename(b Bottle) string {
	return fmt.Sprintf("%s--%s.%s.bottle.tar.gz", b.Name, b.Version, b.Tag)
}

func (d *Downloader) path(b Bottle) string {
	return filepath.Join(d.cacheDir, filename(b))
}

// Fetch returns the local path to b's bottle file, downloading it if it's
// not already cached with a matching checksum.
func (d *Downloader) Fetch(ctx context.Context, b Bottle) (string, error) {
	dest := d.path(b)

	if sum, err := sha256File(dest); err == nil && sum == b.SHA256 {
		return dest, nil
	}
	os.Remove(dest)

	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download cache directory: %w", err)
	}

	tmp := dest + "." + uuid.NewString() + ".tmp"
	defer os.Remove(tmp)

	if err := d.stream(ctx, b, tmp); err != nil {
		return "", err
	}

	sum, err := sha256File(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to hash downloaded bottle: %w", err)
	}
	if sum != b.SHA256 {
		return "", brerrors.ChecksumMismatch(b.Name, b.SHA256, sum)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("failed to finalize downloaded bottle: %w", err)
	}
	return dest, nil
}

func (d *Downloader) stream(ctx context.Context, b Bottle, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}
	if b.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.BearerToken)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return brerrors.WrapNetworkError(err, b.Name, "bottle download failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &brerrors.Error{Kind: brerrors.KindNetwork, Subject: b.Name, Message: fmt.Sprintf("unexpected status %d downloading bottle", resp.StatusCode)}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return brerrors.WrapNetworkError(err, b.Name, "bottle download interrupted")
	}

	d.logger.Info("downloaded bottle", "formula", b.Name, "size", humanize.Bytes(uint64(written)))
	return out.Sync()
}

// FetchAll downloads every bottle in bottles concurrently, short-circuiting
// on the first failure (spec §4.6/§5: "batch spawns one task per bottle
// and joins them").
func (d *Downloader) FetchAll(ctx context.Context, bottles []Bottle) (map[string]string, error) {
	paths := make(map[string]string, len(bottles))

	g, gctx := errgroup.WithContext(ctx)
	results := make([]string, len(bottles))

	for i, b := range bottles {
		i, b := i, b
		g.Go(func() error {
			p, err := d.Fetch(gctx, b)
			if err != nil {
				return err
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, b := range bottles {
		paths[b.Name] = results[i]
	}
	return paths, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
