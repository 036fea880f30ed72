// Package repository maps the on-disk layout under an install root to
// operations: path builders, version enumeration, current-version
// resolution, and atomic metadata persistence.
package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/chaifeng/ghri-go/pkg/host"
	"github.com/chaifeng/ghri-go/pkg/meta"
	"github.com/chaifeng/ghri-go/pkg/provider"
)

const metaFileName = "meta.json"
const currentLinkName = "current"

// Repository maps RepoId coordinates onto the on-disk layout rooted at Root.
type Repository struct {
	Host host.Host
	Root string
}

// New returns a Repository rooted at root.
func New(h host.Host, root string) *Repository {
	return &Repository{Host: h, Root: root}
}

// PackageDir returns <root>/<owner>/<repo>.
func (r *Repository) PackageDir(repo provider.RepoId) string {
	return filepath.Join(r.Root, repo.Owner, repo.Repo)
}

// VersionDir returns <root>/<owner>/<repo>/<version>.
func (r *Repository) VersionDir(repo provider.RepoId, version string) string {
	return filepath.Join(r.PackageDir(repo), version)
}

// MetaPath returns <root>/<owner>/<repo>/meta.json.
func (r *Repository) MetaPath(repo provider.RepoId) string {
	return filepath.Join(r.PackageDir(repo), metaFileName)
}

// CurrentLink returns <root>/<owner>/<repo>/current.
func (r *Repository) CurrentLink(repo provider.RepoId) string {
	return filepath.Join(r.PackageDir(repo), currentLinkName)
}

// IsInstalled reports whether meta.json exists for repo.
func (r *Repository) IsInstalled(repo provider.RepoId) bool {
	_, err := r.Host.Stat(r.MetaPath(repo))
	return err == nil
}

// IsVersionInstalled reports whether the version directory exists.
func (r *Repository) IsVersionInstalled(repo provider.RepoId, version string) bool {
	info, err := r.Host.Stat(r.VersionDir(repo, version))
	return err == nil && info.IsDir()
}

// CurrentVersion reads the current symlink and returns the file-name
// component of its target, or ("", false) on any error (absent, broken,
// not a symlink).
func (r *Repository) CurrentVersion(repo provider.RepoId) (string, bool) {
	target, err := r.Host.Readlink(r.CurrentLink(repo))
	if err != nil {
		return "", false
	}
	return filepath.Base(target), true
}

// IsCurrentVersion reports whether version is the resolved current version.
func (r *Repository) IsCurrentVersion(repo provider.RepoId, version string) bool {
	cur, ok := r.CurrentVersion(repo)
	return ok && cur == version
}

// InstalledVersions lists version directory names under the package dir,
// excluding meta.json and current.
func (r *Repository) InstalledVersions(repo provider.RepoId) ([]string, error) {
	entries, err := r.Host.ReadDir(r.PackageDir(repo))
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing versions for %s: %w", repo, err)
	}
	var out []string
	for _, e := range entries {
		if e.Name() == metaFileName || e.Name() == currentLinkName {
			continue
		}
		if !e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Load reads and parses meta.json, returning (nil, false) if absent and an
// error if present but corrupt (caller may choose to fall through to a
// re-fetch per spec's Corruption error kind).
func (r *Repository) Load(repo provider.RepoId) (*meta.Meta, bool, error) {
	data, err := r.Host.ReadFile(r.MetaPath(repo))
	if err != nil {
		if isNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading meta.json for %s: %w", repo, err)
	}
	m, err := meta.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt meta.json for %s: %w", repo, err)
	}
	return m, true, nil
}

// LoadRequired is Load but treats "absent" as an error too.
func (r *Repository) LoadRequired(repo provider.RepoId) (*meta.Meta, error) {
	m, ok, err := r.Load(repo)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("package %s is not installed", repo)
	}
	return m, nil
}

// Save writes m to meta.json atomically (temp file with a .tmp suffix, then
// rename over the destination), converting every Links[i].Dest and
// VersionedLinks[i].Dest that is absolute into a path relative to the
// package directory first.
func (r *Repository) Save(repo provider.RepoId, m *meta.Meta) error {
	pkgDir := r.PackageDir(repo)
	r.relativizeDests(m, pkgDir)

	data, err := meta.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding meta.json for %s: %w", repo, err)
	}

	if err := r.Host.MkdirAll(pkgDir, 0o755); err != nil {
		return fmt.Errorf("creating package dir for %s: %w", repo, err)
	}

	dest := r.MetaPath(repo)
	tmp := dest + ".tmp"
	if err := r.Host.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp meta.json for %s: %w", repo, err)
	}
	if err := r.Host.Rename(tmp, dest); err != nil {
		return fmt.Errorf("publishing meta.json for %s: %w", repo, err)
	}
	return nil
}

// relativizeDests converts absolute Dest values to paths relative to
// pkgDir, tolerating failures by leaving the original path unchanged.
func (r *Repository) relativizeDests(m *meta.Meta, pkgDir string) {
	base := pkgDir
	if resolved, err := canonicalizeBestEffort(r.Host, pkgDir); err == nil {
		base = resolved
	}
	for i, link := range m.Links {
		if filepath.IsAbs(link.Dest) {
			m.Links[i].Dest = host.RelativePathFromDir(base, link.Dest)
		}
	}
	for i, link := range m.VersionedLinks {
		if filepath.IsAbs(link.Dest) {
			m.VersionedLinks[i].Dest = host.RelativePathFromDir(base, link.Dest)
		}
	}
}

// canonicalizeBestEffort makes path absolute using the host's working
// directory when it is relative; per spec, failures here are tolerated by
// the caller falling back to the original (possibly relative) path.
func canonicalizeBestEffort(h host.Host, path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	wd, err := h.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, path), nil
}

// RemoveVersionDir recursively deletes a version directory; a no-op if
// absent.
func (r *Repository) RemoveVersionDir(repo provider.RepoId, version string) error {
	return r.Host.RemoveAll(r.VersionDir(repo, version))
}

// RemovePackageDir recursively deletes the whole package directory, then
// removes the owner directory if it is now empty.
func (r *Repository) RemovePackageDir(repo provider.RepoId) error {
	if err := r.Host.RemoveAll(r.PackageDir(repo)); err != nil {
		return err
	}
	ownerDir := filepath.Join(r.Root, repo.Owner)
	entries, err := r.Host.ReadDir(ownerDir)
	if err != nil {
		return nil
	}
	if len(entries) == 0 {
		return r.Host.Remove(ownerDir)
	}
	return nil
}

// FoundMeta pairs a meta.json path with its parsed content, for
// FindAllWithMeta's walk.
type FoundMeta struct {
	MetaPath string
	Meta     *meta.Meta
	Repo     provider.RepoId
}

// FindAllWithMeta walks <root>/<owner>/<repo> and returns every readable
// meta.json found. Directory shape violations (e.g. an owner dir containing
// a non-directory entry) are silently skipped.
func (r *Repository) FindAllWithMeta() ([]FoundMeta, error) {
	owners, err := r.Host.ReadDir(r.Root)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []FoundMeta
	for _, ownerEntry := range owners {
		if !ownerEntry.IsDir() {
			continue
		}
		ownerDir := filepath.Join(r.Root, ownerEntry.Name())
		repoEntries, err := r.Host.ReadDir(ownerDir)
		if err != nil {
			continue
		}
		for _, repoEntry := range repoEntries {
			if !repoEntry.IsDir() {
				continue
			}
			repo := provider.RepoId{Owner: ownerEntry.Name(), Repo: repoEntry.Name()}
			m, ok, err := r.Load(repo)
			if err != nil || !ok {
				continue
			}
			out = append(out, FoundMeta{MetaPath: r.MetaPath(repo), Meta: m, Repo: repo})
		}
	}
	return out, nil
}

func isNotExist(err error) bool {
	return err != nil && errors.Is(err, fs.ErrNotExist)
}
