// Package usecase wires the repository, symlink manager, install engine,
// and provider registry into the eight operations the CLI exposes:
// Install, Upgrade, Link, Unlink, Remove, Prune, List, Show. Each method is
// a thin state machine over the lower layers.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/flanksource/commons/logger"

	"github.com/chaifeng/ghri-go/pkg/cleanup"
	"github.com/chaifeng/ghri-go/pkg/ghrierr"
	"github.com/chaifeng/ghri-go/pkg/host"
	"github.com/chaifeng/ghri-go/pkg/install"
	"github.com/chaifeng/ghri-go/pkg/meta"
	"github.com/chaifeng/ghri-go/pkg/provider"
	"github.com/chaifeng/ghri-go/pkg/repository"
	"github.com/chaifeng/ghri-go/pkg/symlink"
	"github.com/chaifeng/ghri-go/pkg/version"
)

// UseCase holds every collaborator the eight operations need.
type UseCase struct {
	Host     host.Host
	Repo     *repository.Repository
	Registry *provider.Registry
	Symlinks *symlink.Manager
	Engine   *install.Engine
	// Cleanup, when set, is shared across every Install call as the default
	// cleanup.Context (overridable per-call via InstallOptions.Cleanup),
	// so a process-wide interrupt handler can see every temp path an
	// in-flight install has registered and remove them before exiting.
	Cleanup *cleanup.Context
}

// New returns a UseCase wired to the given collaborators.
func New(h host.Host, repo *repository.Repository, registry *provider.Registry, symlinks *symlink.Manager, engine *install.Engine) *UseCase {
	return &UseCase{Host: h, Repo: repo, Registry: registry, Symlinks: symlinks, Engine: engine}
}

// InstallOptions carries the per-invocation knobs UseCase.Install acts on.
type InstallOptions struct {
	Filters      []string
	Pre          bool
	Yes          bool
	Prune        bool
	OriginalArgs []string
	// Cleanup, when set, is used in place of a fresh cleanup.Context so a
	// caller running a signal handler (cmd/'s interrupt-triggered teardown)
	// can see and remove this install's registered temp paths if the
	// process is interrupted mid-flight. Nil falls back to UseCase.Cleanup,
	// then to a private Context.
	Cleanup *cleanup.Context
}

// Install resolves a provider and version for spec, runs the install engine
// unless the version directory already exists, then refreshes the current
// symlink, external links, and persisted metadata.
func (u *UseCase) Install(ctx context.Context, spec provider.PackageSpec, opts InstallOptions) error {
	p, err := u.Registry.Resolve(spec)
	if err != nil {
		return ghrierr.New(ghrierr.InvalidInput, "resolve provider", err)
	}

	m, loaded, err := u.Repo.Load(spec.Repo)
	if err != nil {
		logger.Warnf("install: %s: %v; re-fetching metadata", spec.Repo, err)
		loaded = false
	}
	if !loaded {
		m, err = u.fetchFreshMeta(ctx, p, spec)
		if err != nil {
			return err
		}
		if err := u.Repo.Save(spec.Repo, m); err != nil {
			logger.Warnf("install: failed to save freshly fetched metadata for %s: %v", spec.Repo, err)
		}
	}

	release, err := u.resolveVersion(m, spec.Version, opts.Pre)
	if err != nil {
		return err
	}

	filters := opts.Filters
	if len(filters) == 0 {
		filters = m.Filters
	}

	targetDir := u.Repo.VersionDir(spec.Repo, release.Tag)
	cc := opts.Cleanup
	if cc == nil {
		cc = u.Cleanup
	}
	if cc == nil {
		cc = cleanup.New(u.Host)
	}
	if err := u.Engine.Install(targetDir, spec.Repo, release, filters, opts.OriginalArgs, cc); err != nil {
		return err
	}

	packageDir := u.Repo.PackageDir(spec.Repo)
	if err := u.Symlinks.UpdateCurrentLink(packageDir, release.Tag); err != nil {
		return ghrierr.New(ghrierr.Conflict, "update current link", err)
	}

	u.refreshLinks(m, targetDir)

	m.CurrentVersion = release.Tag
	if len(opts.Filters) > 0 {
		m.Filters = opts.Filters
	}
	if err := u.Repo.Save(spec.Repo, m); err != nil {
		logger.Warnf("install: failed to save metadata after installing %s: %v", spec.Repo, err)
	}

	if opts.Prune {
		if err := u.Prune(ctx, []provider.RepoId{spec.Repo}, true); err != nil {
			logger.Warnf("install: prune after install for %s: %v", spec.Repo, err)
		}
	}
	return nil
}

func (u *UseCase) fetchFreshMeta(ctx context.Context, p provider.Provider, spec provider.PackageSpec) (*meta.Meta, error) {
	apiURL := p.APIURL()
	if spec.APIURL != nil {
		apiURL = *spec.APIURL
	}
	info, err := p.GetRepoMetadataAt(ctx, spec.Repo, apiURL)
	if err != nil {
		return nil, ghrierr.New(ghrierr.Network, "fetch repository metadata", err)
	}
	releases, err := p.GetReleasesAt(ctx, spec.Repo, apiURL)
	if err != nil {
		return nil, ghrierr.New(ghrierr.Network, "fetch releases", err)
	}
	return meta.New(spec.Repo, apiURL, info, releases), nil
}

// resolveVersion picks explicit, else find_latest_stable/find_latest.
func (u *UseCase) resolveVersion(m *meta.Meta, explicit *string, pre bool) (provider.Release, error) {
	if explicit != nil {
		r, ok := version.FindExact(m.Releases, *explicit)
		if !ok {
			return provider.Release{}, ghrierr.New(ghrierr.NotFound, "resolve version", version.ErrNotFound(*explicit, m.Releases))
		}
		return r, nil
	}
	if pre {
		if r, ok := version.FindLatest(m.Releases); ok {
			return r, nil
		}
	} else if r, ok := version.FindLatestStable(m.Releases); ok {
		return r, nil
	}
	return provider.Release{}, ghrierr.New(ghrierr.NotFound, "resolve version", errors.New("no release available (use --pre for pre-releases)"))
}

// refreshLinks validates and (re)creates every entry in m.Links against the
// freshly installed version directory. Per-link failures are logged and
// skipped; they never abort the install that is already committed.
func (u *UseCase) refreshLinks(m *meta.Meta, versionDir string) {
	packageDir := filepath.Dir(versionDir)
	for _, link := range m.Links {
		dest := link.Dest
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(packageDir, dest)
		}

		target, err := u.resolveLinkTarget(versionDir, link.Path)
		if err != nil {
			logger.Warnf("install: resolving link target for %s: %v; skipping", dest, err)
			continue
		}
		if err := u.Symlinks.PrepareLinkDestination(dest, packageDir); err != nil {
			logger.Warnf("install: preparing link %s: %v; skipping", dest, err)
			continue
		}
		if err := u.Symlinks.CreateLink(target, dest); err != nil {
			logger.Warnf("install: updating link %s: %v; skipping", dest, err)
		}
	}
}

func (u *UseCase) resolveLinkTarget(versionDir, path string) (string, error) {
	if path != "" {
		return filepath.Join(versionDir, path), nil
	}
	return u.Symlinks.FindDefaultTarget(versionDir)
}

// Upgrade re-fetches metadata for every repo (all installed packages if
// repos is empty), merges it into the existing Meta, and installs the
// latest release when it differs from the current version.
func (u *UseCase) Upgrade(ctx context.Context, repos []provider.RepoId, pre, yes bool) error {
	if len(repos) == 0 {
		found, err := u.Repo.FindAllWithMeta()
		if err != nil {
			return ghrierr.New(ghrierr.Fatal, "list installed packages", err)
		}
		for _, f := range found {
			repos = append(repos, f.Repo)
		}
	}

	var firstErr error
	for _, repo := range repos {
		if err := u.upgradeOne(ctx, repo, pre); err != nil {
			logger.Warnf("upgrade: %s: %v", repo, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (u *UseCase) upgradeOne(ctx context.Context, repo provider.RepoId, pre bool) error {
	m, err := u.Repo.LoadRequired(repo)
	if err != nil {
		return ghrierr.New(ghrierr.NotFound, "load package", err)
	}

	p, err := provider.ResolveFromAPIURL(u.Registry, m.APIURL)
	if err != nil {
		return ghrierr.New(ghrierr.Network, "resolve provider", err)
	}

	info, err := p.GetRepoMetadataAt(ctx, repo, m.APIURL)
	if err != nil {
		return ghrierr.New(ghrierr.Network, "fetch repository metadata", err)
	}
	releases, err := p.GetReleasesAt(ctx, repo, m.APIURL)
	if err != nil {
		return ghrierr.New(ghrierr.Network, "fetch releases", err)
	}
	m.MergeReleases(info, releases)
	if err := u.Repo.Save(repo, m); err != nil {
		logger.Warnf("upgrade: failed to save refreshed metadata for %s: %v", repo, err)
	}

	candidate, ok := version.CheckUpdate(m.Releases, m.CurrentVersion, pre)
	if !ok {
		return nil
	}

	spec := provider.PackageSpec{Repo: repo, Version: &candidate.Tag}
	return u.Install(ctx, spec, InstallOptions{Filters: m.Filters, Pre: pre})
}

// Link resolves spec's version and in-version target, prepares dest, and
// records the rule in meta.links or meta.versioned_links (mutually
// exclusive by dest).
func (u *UseCase) Link(spec provider.LinkSpec, dest string) error {
	m, err := u.Repo.LoadRequired(spec.Repo)
	if err != nil {
		return ghrierr.New(ghrierr.NotFound, "load package", err)
	}

	ver, err := u.resolveLinkVersion(spec)
	if err != nil {
		return err
	}
	versionDir := u.Repo.VersionDir(spec.Repo, ver)

	var target string
	if spec.Path != nil {
		target = filepath.Join(versionDir, *spec.Path)
	} else {
		target, err = u.Symlinks.FindDefaultTarget(versionDir)
		if err != nil {
			return ghrierr.New(ghrierr.NotFound, "find default target", err)
		}
	}

	dest = u.expandDirDest(dest, spec, target, versionDir)

	packageDir := u.Repo.PackageDir(spec.Repo)
	if err := u.Symlinks.PrepareLinkDestination(dest, packageDir); err != nil {
		return ghrierr.New(ghrierr.Conflict, "prepare link destination", err)
	}
	if err := u.Symlinks.CreateLink(target, dest); err != nil {
		return ghrierr.New(ghrierr.Fatal, "create link", err)
	}

	relDest := host.RelativePathFromDir(packageDir, dest)
	var path string
	if spec.Path != nil {
		path = *spec.Path
	}

	if spec.Version != nil {
		m.VersionedLinks, _ = meta.RemoveVersionedLinkByDest(m.VersionedLinks, relDest)
		m.VersionedLinks = append(m.VersionedLinks, meta.VersionedLink{Version: ver, Dest: relDest, Path: path})
		m.VersionedLinks = meta.DedupVersionedLinks(m.VersionedLinks)
		m.Links, _ = meta.RemoveLinkByDest(m.Links, relDest)
	} else {
		m.Links, _ = meta.RemoveLinkByDest(m.Links, relDest)
		m.Links = append(m.Links, meta.LinkRule{Dest: relDest, Path: path})
		m.Links = meta.DedupLinkRules(m.Links)
		m.VersionedLinks, _ = meta.RemoveVersionedLinkByDest(m.VersionedLinks, relDest)
	}
	m.LegacyLinkedTo = ""
	m.LegacyLinkedPath = ""

	if err := u.Repo.Save(spec.Repo, m); err != nil {
		return ghrierr.New(ghrierr.Fatal, "save metadata", err)
	}
	return nil
}

func (u *UseCase) resolveLinkVersion(spec provider.LinkSpec) (string, error) {
	if spec.Version != nil {
		if !u.Repo.IsVersionInstalled(spec.Repo, *spec.Version) {
			return "", ghrierr.Newf(ghrierr.NotFound, "resolve version", "version %q is not installed", *spec.Version)
		}
		return *spec.Version, nil
	}
	cur, ok := u.Repo.CurrentVersion(spec.Repo)
	if !ok {
		return "", ghrierr.New(ghrierr.NotFound, "resolve version", errors.New("no current version installed"))
	}
	return cur, nil
}

// expandDirDest appends a filename to dest when dest is an existing
// directory: the explicit path's basename, the repo name when linking a
// whole version directory, or the target's basename otherwise.
func (u *UseCase) expandDirDest(dest string, spec provider.LinkSpec, target, versionDir string) string {
	info, err := u.Host.Stat(dest)
	if err != nil || !info.IsDir() {
		return dest
	}
	switch {
	case spec.Path != nil:
		return filepath.Join(dest, filepath.Base(*spec.Path))
	case target == versionDir:
		return filepath.Join(dest, spec.Repo.Repo)
	default:
		return filepath.Join(dest, filepath.Base(target))
	}
}

// UnlinkSummary reports how many rules were removed, and carries
// non-fatal warnings collected in --all mode.
type UnlinkSummary struct {
	Removed  int
	Warnings []string
}

// Unlink removes the symlink(s) matching spec/dest/all from meta.links or
// meta.versioned_links (whichever spec.Version selects) and drops the
// corresponding rules whose symlink was removed or already absent.
func (u *UseCase) Unlink(spec provider.LinkSpec, dest string, all bool) (UnlinkSummary, error) {
	var summary UnlinkSummary
	m, err := u.Repo.LoadRequired(spec.Repo)
	if err != nil {
		return summary, ghrierr.New(ghrierr.NotFound, "load package", err)
	}
	packageDir := u.Repo.PackageDir(spec.Repo)

	var firstErr error
	if spec.Version != nil {
		kept := make([]meta.VersionedLink, 0, len(m.VersionedLinks))
		for _, link := range m.VersionedLinks {
			if link.Version != *spec.Version || !matchesUnlinkTarget(link.Dest, link.Path, packageDir, dest, spec.Path, all) {
				kept = append(kept, link)
				continue
			}
			if drop := u.applyUnlinkResult(link.Dest, packageDir, all, &summary, &firstErr); !drop {
				kept = append(kept, link)
			}
		}
		m.VersionedLinks = kept
	} else {
		kept := make([]meta.LinkRule, 0, len(m.Links))
		for _, link := range m.Links {
			if !matchesUnlinkTarget(link.Dest, link.Path, packageDir, dest, spec.Path, all) {
				kept = append(kept, link)
				continue
			}
			if drop := u.applyUnlinkResult(link.Dest, packageDir, all, &summary, &firstErr); !drop {
				kept = append(kept, link)
			}
		}
		m.Links = kept
	}

	if err := u.Repo.Save(spec.Repo, m); err != nil {
		logger.Warnf("unlink: failed to save metadata for %s: %v", spec.Repo, err)
	}
	return summary, firstErr
}

// applyUnlinkResult removes ruleDest (best-effort, guarded by packageDir)
// and reports whether the owning rule should be dropped from its list:
// true when the symlink was removed or already absent, false when it was
// left in place because it is unmanaged (External/Unresolvable) or not a
// symlink at all.
func (u *UseCase) applyUnlinkResult(ruleDest, packageDir string, all bool, summary *UnlinkSummary, firstErr *error) bool {
	dest := ruleDest
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(packageDir, dest)
	}
	result, err := u.Symlinks.RemoveLinkIfUnder(dest, packageDir)
	if err != nil && *firstErr == nil {
		*firstErr = ghrierr.New(ghrierr.Fatal, "remove link", err)
	}

	switch result {
	case symlink.Removed:
		summary.Removed++
		return true
	case symlink.RemoveNotExists:
		return true
	case symlink.RemoveExternalTarget, symlink.RemoveUnresolvable, symlink.RemoveNotSymlink:
		msg := fmt.Sprintf("%s: %s", dest, unlinkResultReason(result))
		if all {
			summary.Warnings = append(summary.Warnings, msg)
		} else if *firstErr == nil {
			*firstErr = ghrierr.New(ghrierr.External, "unlink", errors.New(msg))
		}
		return false
	default:
		return false
	}
}

func unlinkResultReason(r symlink.RemoveResult) string {
	switch r {
	case symlink.RemoveExternalTarget:
		return "points outside the managed prefix"
	case symlink.RemoveUnresolvable:
		return "symlink target could not be resolved"
	case symlink.RemoveNotSymlink:
		return "exists and is not a symlink"
	default:
		return "not removed"
	}
}

// matchesUnlinkTarget implements Unlink's matching rule: all
// candidates when all is set; exact resolved-absolute dest, falling back
// to basename, when dest is given; rule.Path equality when only a path was
// given.
func matchesUnlinkTarget(ruleDest, rulePath, packageDir, requestedDest string, requestedPath *string, all bool) bool {
	if all {
		return true
	}
	if requestedDest != "" {
		if absDest(packageDir, ruleDest) == absDest(packageDir, requestedDest) {
			return true
		}
		return filepath.Base(ruleDest) == filepath.Base(requestedDest)
	}
	if requestedPath != nil {
		return rulePath == *requestedPath
	}
	return false
}

func absDest(packageDir, dest string) string {
	if filepath.IsAbs(dest) {
		return filepath.Clean(dest)
	}
	return filepath.Clean(filepath.Join(packageDir, dest))
}

// Remove deletes a single version (refusing the current version unless
// force is set) or, when spec has no version, the whole package.
func (u *UseCase) Remove(spec provider.PackageSpec, force bool) error {
	if spec.Version != nil {
		return u.removeVersion(spec.Repo, *spec.Version, force)
	}
	return u.removePackage(spec.Repo)
}

func (u *UseCase) removeVersion(repo provider.RepoId, ver string, force bool) error {
	m, err := u.Repo.LoadRequired(repo)
	if err != nil {
		return ghrierr.New(ghrierr.NotFound, "load package", err)
	}
	if !u.Repo.IsVersionInstalled(repo, ver) {
		return ghrierr.Newf(ghrierr.NotFound, "remove version", "version %q is not installed", ver)
	}

	isCurrent := u.Repo.IsCurrentVersion(repo, ver)
	if isCurrent && !force {
		return ghrierr.Newf(ghrierr.Conflict, "remove version", "%s is the current version; use --force to remove it anyway", ver)
	}

	packageDir := u.Repo.PackageDir(repo)
	versionDir := u.Repo.VersionDir(repo, ver)

	for _, link := range m.Links {
		u.removeLinkBestEffort(link.Dest, packageDir, versionDir)
	}

	kept := make([]meta.VersionedLink, 0, len(m.VersionedLinks))
	for _, link := range m.VersionedLinks {
		if link.Version == ver {
			u.removeLinkBestEffort(link.Dest, packageDir, versionDir)
			continue
		}
		kept = append(kept, link)
	}
	m.VersionedLinks = kept

	if err := u.Repo.RemoveVersionDir(repo, ver); err != nil {
		return ghrierr.New(ghrierr.Fatal, "delete version directory", err)
	}

	if isCurrent {
		_ = u.Host.Remove(u.Repo.CurrentLink(repo))
		m.CurrentVersion = ""
	}

	if err := u.Repo.Save(repo, m); err != nil {
		logger.Warnf("remove: failed to save metadata for %s: %v", repo, err)
	}
	return nil
}

func (u *UseCase) removePackage(repo provider.RepoId) error {
	m, err := u.Repo.LoadRequired(repo)
	if err != nil {
		return ghrierr.New(ghrierr.NotFound, "load package", err)
	}
	packageDir := u.Repo.PackageDir(repo)

	for _, link := range m.Links {
		u.removeLinkBestEffort(link.Dest, packageDir, packageDir)
	}
	for _, link := range m.VersionedLinks {
		u.removeLinkBestEffort(link.Dest, packageDir, packageDir)
	}

	if err := u.Repo.RemovePackageDir(repo); err != nil {
		return ghrierr.New(ghrierr.Fatal, "delete package directory", err)
	}
	return nil
}

func (u *UseCase) removeLinkBestEffort(ruleDest, packageDir, prefix string) {
	dest := ruleDest
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(packageDir, dest)
	}
	if _, err := u.Symlinks.RemoveLinkIfUnder(dest, prefix); err != nil {
		logger.Debugf("remove: failed to remove link %s: %v", dest, err)
	}
}

// Prune removes every installed version other than current for each repo
// (all installed packages if repos is empty).
func (u *UseCase) Prune(ctx context.Context, repos []provider.RepoId, yes bool) error {
	if len(repos) == 0 {
		found, err := u.Repo.FindAllWithMeta()
		if err != nil {
			return ghrierr.New(ghrierr.Fatal, "list installed packages", err)
		}
		for _, f := range found {
			repos = append(repos, f.Repo)
		}
	}

	var firstErr error
	for _, repo := range repos {
		if err := u.pruneOne(repo); err != nil {
			logger.Warnf("prune: %s: %v", repo, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (u *UseCase) pruneOne(repo provider.RepoId) error {
	versions, err := u.Repo.InstalledVersions(repo)
	if err != nil {
		return ghrierr.New(ghrierr.Fatal, "list versions", err)
	}
	current, _ := u.Repo.CurrentVersion(repo)

	for _, v := range versions {
		if v == current {
			continue
		}
		if err := u.removeVersion(repo, v, true); err != nil {
			logger.Warnf("prune: failed removing %s@%s: %v", repo, v, err)
		}
	}
	return nil
}

// PackageSummary is one row of List's output.
type PackageSummary struct {
	Repo           provider.RepoId
	CurrentVersion string
}

// List returns every installed package and its current version, sorted by
// owner/repo.
func (u *UseCase) List() ([]PackageSummary, error) {
	found, err := u.Repo.FindAllWithMeta()
	if err != nil {
		return nil, ghrierr.New(ghrierr.Fatal, "list packages", err)
	}
	out := make([]PackageSummary, 0, len(found))
	for _, f := range found {
		out = append(out, PackageSummary{Repo: f.Repo, CurrentVersion: f.Meta.CurrentVersion})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Repo.String() < out[j].Repo.String() })
	return out, nil
}

// ShowResult is Show's output: full metadata plus the versions actually
// present on disk (which can drift from meta.releases).
type ShowResult struct {
	Meta     *meta.Meta
	Versions []string
}

// Show returns repo's metadata and installed versions.
func (u *UseCase) Show(repo provider.RepoId) (*ShowResult, error) {
	m, err := u.Repo.LoadRequired(repo)
	if err != nil {
		return nil, ghrierr.New(ghrierr.NotFound, "load package", err)
	}
	versions, err := u.Repo.InstalledVersions(repo)
	if err != nil {
		return nil, ghrierr.New(ghrierr.Fatal, "list versions", err)
	}
	return &ShowResult{Meta: m, Versions: versions}, nil
}
