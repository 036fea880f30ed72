// Package install implements the install engine: asset filtering, the
// tarball/single-archive/multi-copy strategy split, and crash-safe cleanup
// across download and extraction, using a register-then-unregister
// cleanup discipline and a copy-then-chmod path for multi-asset,
// non-archive installs.
package install

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/flanksource/commons/logger"

	"github.com/chaifeng/ghri-go/pkg/checksum"
	"github.com/chaifeng/ghri-go/pkg/cleanup"
	"github.com/chaifeng/ghri-go/pkg/extract"
	"github.com/chaifeng/ghri-go/pkg/ghrierr"
	"github.com/chaifeng/ghri-go/pkg/host"
	"github.com/chaifeng/ghri-go/pkg/provider"
)

// Downloader fetches url to dest, streaming incrementally; all-or-nothing
// from the engine's perspective. Implemented over pkg/download in
// production, faked in tests.
type Downloader interface {
	Download(url, dest string) error
}

// Extractor unpacks archivePath into targetDir using the sibling-temp-dir
// relocation contract. Implemented over pkg/extract in production.
type Extractor interface {
	Extract(archivePath, targetDir string) error
}

// Plan classifies a release's filtered assets before any I/O happens.
type Plan int

const (
	// PlanTarball downloads the release's source tarball.
	PlanTarball Plan = iota
	// PlanSingleArchive downloads and extracts the one filtered asset.
	PlanSingleArchive
	// PlanMultiCopy downloads every filtered asset and copies it verbatim.
	PlanMultiCopy
)

// ClassifyAssets picks the strategy for a filtered asset list.
func ClassifyAssets(assets []provider.Asset) Plan {
	switch {
	case len(assets) == 0:
		return PlanTarball
	case len(assets) == 1 && extract.IsArchive(assets[0].Name):
		return PlanSingleArchive
	default:
		return PlanMultiCopy
	}
}

// FilterAssets keeps every asset matching any of the glob patterns in
// filters (OR logic). An empty filters list keeps everything. It is an
// error for a non-empty asset list to filter down to nothing.
func FilterAssets(assets []provider.Asset, filters, originalArgs []string) ([]provider.Asset, error) {
	if len(filters) == 0 {
		return assets, nil
	}

	var kept []provider.Asset
	for _, a := range assets {
		for _, f := range filters {
			if ok, _ := doublestar.Match(f, a.Name); ok {
				kept = append(kept, a)
				break
			}
		}
	}

	if len(assets) > 0 && len(kept) == 0 {
		return nil, noAssetsMatchedError(assets, filters, originalArgs)
	}
	return kept, nil
}

func noAssetsMatchedError(assets []provider.Asset, filters, originalArgs []string) error {
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Name
	}
	sort.Strings(names)

	msg := fmt.Sprintf("no assets matched filter %s; available: %s", strings.Join(filters, ", "), strings.Join(names, ", "))
	if hint, ok := buildFilterHint(originalArgs, filters); ok {
		msg += "\n" + hint
	}
	return ghrierr.New(ghrierr.InvalidInput, "filter assets", errors.New(msg))
}

// buildFilterHint reconstructs originalArgs with every wildcard-less filter
// value wrapped in "*…*", for display as a suggested retry command. Returns
// false if every filter already contains a wildcard.
func buildFilterHint(originalArgs, filters []string) (string, bool) {
	needsHint := false
	for _, f := range filters {
		if !strings.ContainsAny(f, "*?") {
			needsHint = true
			break
		}
	}
	if !needsHint || len(originalArgs) == 0 {
		return "", false
	}

	out := make([]string, len(originalArgs))
	copy(out, originalArgs)
	for i := 0; i < len(out); i++ {
		switch {
		case out[i] == "--filter" || out[i] == "-f":
			if i+1 < len(out) {
				out[i+1] = wrapWildcardless(out[i+1])
			}
		case strings.HasPrefix(out[i], "--filter="):
			out[i] = "--filter=" + wrapWildcardless(strings.TrimPrefix(out[i], "--filter="))
		case strings.HasPrefix(out[i], "-f="):
			out[i] = "-f=" + wrapWildcardless(strings.TrimPrefix(out[i], "-f="))
		}
	}
	return "Hint: " + strings.Join(out, " "), true
}

func wrapWildcardless(v string) string {
	if strings.ContainsAny(v, "*?") {
		return v
	}
	return `"*` + v + `*"`
}

// Engine runs the install procedure against a Host, Downloader, and
// Extractor.
type Engine struct {
	Host       host.Host
	Downloader Downloader
	Extractor  Extractor
}

// New returns an Engine wired to the given collaborators.
func New(h host.Host, d Downloader, x Extractor) *Engine {
	return &Engine{Host: h, Downloader: d, Extractor: x}
}

// Install materializes repo's release into targetDir: idempotent if
// targetDir already exists, otherwise filters assets, picks a strategy, and
// downloads/extracts/copies accordingly. originalArgs is used only to build
// the "wrap in wildcards" hint on a filter match failure. cc receives
// targetDir (and every temp download file)
// registered for removal if the process is interrupted mid-install.
func (e *Engine) Install(targetDir string, repo provider.RepoId, release provider.Release, filters, originalArgs []string, cc *cleanup.Context) error {
	if _, err := e.Host.Stat(targetDir); err == nil {
		return nil
	}

	assets, err := FilterAssets(release.Assets, filters, originalArgs)
	if err != nil {
		return err
	}

	if err := e.Host.MkdirAll(targetDir, 0o755); err != nil {
		return ghrierr.New(ghrierr.Fatal, "create target directory", err)
	}
	cc.Register(targetDir)

	var stepErr error
	switch ClassifyAssets(assets) {
	case PlanTarball:
		tempName := fmt.Sprintf("%s-%s.tar.gz", repo.Repo, release.Tag)
		stepErr = e.installArchive(release.TarballURL, "", tempName, targetDir, cc)
	case PlanSingleArchive:
		a := assets[0]
		tempName := fmt.Sprintf("%s-%s-%s", repo.Repo, release.Tag, a.Name)
		stepErr = e.installArchive(a.DownloadURL, a.Digest, tempName, targetDir, cc)
	case PlanMultiCopy:
		stepErr = e.installMultiCopy(repo, release, assets, targetDir, cc)
	}

	if stepErr != nil {
		_ = e.Host.RemoveAll(targetDir)
		cc.Unregister(targetDir)
		return stepErr
	}

	cc.Unregister(targetDir)
	return nil
}

// installArchive downloads a single archive (or the source tarball) to a
// temp file, extracts it into targetDir, and deletes the temp file. An
// empty digest skips checksum verification.
func (e *Engine) installArchive(url, digest, tempName, targetDir string, cc *cleanup.Context) error {
	tempPath := filepath.Join(e.Host.TempDir(), tempName)
	cc.Register(tempPath)
	defer func() {
		_ = e.Host.RemoveAll(tempPath)
		cc.Unregister(tempPath)
	}()

	if err := e.Downloader.Download(url, tempPath); err != nil {
		return ghrierr.New(ghrierr.Network, "download "+tempName, err)
	}
	if digest != "" {
		if err := checksum.Verify(e.Host, tempPath, digest); err != nil {
			return ghrierr.New(ghrierr.Network, "verify "+tempName, err)
		}
	}
	if err := e.Extractor.Extract(tempPath, targetDir); err != nil {
		return ghrierr.New(ghrierr.Fatal, "extract "+tempName, err)
	}
	return nil
}

// installMultiCopy downloads every filtered asset to its own temp file and
// copies each verbatim into targetDir, setting the executable bit on any
// copy whose magic bytes identify a native executable.
func (e *Engine) installMultiCopy(repo provider.RepoId, release provider.Release, assets []provider.Asset, targetDir string, cc *cleanup.Context) error {
	for _, a := range assets {
		tempName := fmt.Sprintf("%s-%s-%s", repo.Repo, release.Tag, a.Name)
		tempPath := filepath.Join(e.Host.TempDir(), tempName)
		cc.Register(tempPath)

		if err := e.Downloader.Download(a.DownloadURL, tempPath); err != nil {
			_ = e.Host.RemoveAll(tempPath)
			cc.Unregister(tempPath)
			return ghrierr.New(ghrierr.Network, "download "+a.Name, err)
		}
		if a.Digest != "" {
			if err := checksum.Verify(e.Host, tempPath, a.Digest); err != nil {
				_ = e.Host.RemoveAll(tempPath)
				cc.Unregister(tempPath)
				return ghrierr.New(ghrierr.Network, "verify "+a.Name, err)
			}
		}

		dest := filepath.Join(targetDir, a.Name)
		if err := moveFile(e.Host, tempPath, dest); err != nil {
			cc.Unregister(tempPath)
			return ghrierr.New(ghrierr.Fatal, "copy "+a.Name, err)
		}
		cc.Unregister(tempPath)

		if err := chmodIfNativeExecutable(e.Host, dest); err != nil {
			logger.Warnf("install: failed to set executable bit on %s: %v", dest, err)
		}
	}
	return nil
}

// moveFile relocates src to dest, falling back to copy-then-remove when a
// rename fails (e.g. across filesystems).
func moveFile(h host.Host, src, dest string) error {
	if err := h.Rename(src, dest); err == nil {
		return nil
	}

	in, err := h.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := h.OpenForWrite(dest, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %w", src, dest, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return h.Remove(src)
}

func chmodIfNativeExecutable(h host.Host, path string) error {
	f, err := h.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 4)
	n, _ := f.Read(header)
	if !host.IsNativeExecutable(header[:n]) {
		return nil
	}
	return h.Chmod(path, 0o755)
}
