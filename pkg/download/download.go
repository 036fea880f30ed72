// Package download fetches a release asset to a destination path using an
// atomic temp-file-then-rename pattern, a redirect-limited HTTP client,
// and a task-driven ProgressReader. Do performs no checksum verification;
// the install engine checks the GitHub REST digest field via pkg/checksum.
package download

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/flanksource/clicky/task"

	"github.com/chaifeng/ghri-go/pkg/cache"
	"github.com/chaifeng/ghri-go/pkg/utils"
)

// Option configures a single Do call.
type Option func(*config)

type config struct {
	skipProgress bool
	cacheDir     string
}

// WithoutProgress disables progress reporting, for callers running outside
// an interactive task tree (tests, scripted invocations).
func WithoutProgress() Option {
	return func(c *config) { c.skipProgress = true }
}

// WithCacheDir enables a URL-keyed cache under dir: a hit copies straight to
// dest and skips the network fetch; a miss downloads as normal, then seeds
// the cache for next time.
func WithCacheDir(dir string) Option {
	return func(c *config) { c.cacheDir = dir }
}

// Adapter adapts Do to pkg/install's Downloader interface, carrying the
// task tree and cache directory a single command invocation shares across
// every asset it downloads.
type Adapter struct {
	Task     *task.Task
	CacheDir string
}

// Download fetches url to dest via Do, using the adapter's task and cache
// directory.
func (a Adapter) Download(url, dest string) error {
	var opts []Option
	if a.CacheDir != "" {
		opts = append(opts, WithCacheDir(a.CacheDir))
	}
	return Do(url, dest, a.Task, opts...)
}

func newHTTPClient(t *task.Task) *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects (limit: 10)")
			}
			if t != nil && len(via) > 0 {
				t.V(4).Infof("redirect: %s -> %s",
					utils.ShortenURL(via[len(via)-1].URL.String()),
					utils.ShortenURL(req.URL.String()))
			}
			return nil
		},
	}
}

// progressReader wraps an io.Reader and reports progress onto t at most
// once per 100ms.
type progressReader struct {
	io.Reader
	total      int64
	current    int64
	task       *task.Task
	lastUpdate time.Time
	startTime  time.Time
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	pr.current += int64(n)

	now := time.Now()
	if now.Sub(pr.lastUpdate) >= 100*time.Millisecond {
		if pr.total > 0 {
			pr.task.SetProgress(int(pr.current), int(pr.total))
			elapsed := now.Sub(pr.startTime).Seconds()
			if elapsed > 0 {
				speed := float64(pr.current) / elapsed
				remaining := pr.total - pr.current
				eta := time.Duration(float64(remaining) / speed * float64(time.Second))
				pr.task.SetDescription(fmt.Sprintf("%s/%s (%.1f MB/s, ETA: %s)",
					utils.FormatBytes(pr.current), utils.FormatBytes(pr.total),
					speed/1024/1024, eta.Round(time.Second)))
			}
		} else {
			pr.task.SetDescription(fmt.Sprintf("downloaded %s", utils.FormatBytes(pr.current)))
		}
		pr.lastUpdate = now
	}
	return n, err
}

// Do downloads url to dest atomically: the body streams into dest+".tmp",
// which is renamed over dest only once the transfer completes successfully.
// On any failure the temp file is removed. t may be nil.
func Do(url, dest string, t *task.Task, opts ...Option) error {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cachePath, ok := cache.IsCached(cfg.cacheDir, url, filepath.Base(dest)); ok {
		if t != nil {
			t.V(3).Infof("using cached copy of %s", utils.ShortenURL(url))
		}
		if err := cache.CopyFromCache(cachePath, dest); err == nil {
			return nil
		}
		// fall through to a real download if the cache entry can't be read
	}

	utils.LogDownloadStart(t, url, dest)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dest, err)
	}

	tempFile := dest + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("creating temp file %s: %w", tempFile, err)
	}
	defer func() {
		out.Close()
		if _, statErr := os.Stat(tempFile); statErr == nil {
			os.Remove(tempFile)
		}
	}()

	client := newHTTPClient(t)
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d %s for %s", resp.StatusCode, resp.Status, url)
	}

	if t != nil && resp.ContentLength > 0 {
		t.SetDescription(fmt.Sprintf("downloading (%s)", utils.FormatBytes(resp.ContentLength)))
	}

	var reader io.Reader = resp.Body
	if t != nil && !cfg.skipProgress {
		reader = &progressReader{
			Reader:     resp.Body,
			total:      resp.ContentLength,
			task:       t,
			startTime:  time.Now(),
			lastUpdate: time.Now(),
		}
	}

	if _, err := io.Copy(out, reader); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tempFile, err)
	}

	if err := os.Rename(tempFile, dest); err != nil {
		return fmt.Errorf("publishing %s: %w", dest, err)
	}

	if cfg.cacheDir != "" {
		if err := cache.SaveToCache(cfg.cacheDir, url, dest); err != nil && t != nil {
			t.V(3).Infof("failed to seed cache for %s: %v", utils.ShortenURL(url), err)
		}
	}
	return nil
}
