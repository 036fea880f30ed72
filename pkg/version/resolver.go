// Package version implements pure functions for selecting and comparing
// releases: exact match with v-prefix tolerance, prerelease-aware latest
// selection, and update detection. None of it touches the filesystem or
// network.
package version

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/chaifeng/ghri-go/pkg/provider"
)

// VersionsMatch compares two version strings after stripping at most one
// leading 'v'/'V' from each side. Symmetric.
func VersionsMatch(a, b string) bool {
	return stripOneV(a) == stripOneV(b)
}

func stripOneV(v string) string {
	if len(v) > 0 && (v[0] == 'v' || v[0] == 'V') {
		return v[1:]
	}
	return v
}

// FindExact returns the release whose tag matches version (v-prefix
// tolerant), or false if none matches.
func FindExact(releases []provider.Release, version string) (provider.Release, bool) {
	for _, r := range releases {
		if VersionsMatch(r.Tag, version) {
			return r, true
		}
	}
	return provider.Release{}, false
}

// FindLatestStable returns the highest-ranked non-prerelease release.
func FindLatestStable(releases []provider.Release) (provider.Release, bool) {
	return findLatest(releases, false)
}

// FindLatest returns the highest-ranked release, prereleases included.
func FindLatest(releases []provider.Release) (provider.Release, bool) {
	return findLatest(releases, true)
}

func findLatest(releases []provider.Release, includePrerelease bool) (provider.Release, bool) {
	var best *provider.Release
	for i := range releases {
		r := releases[i]
		if !includePrerelease && r.Prerelease {
			continue
		}
		if best == nil || compareReleases(r, *best) > 0 {
			r := r
			best = &r
		}
	}
	if best == nil {
		return provider.Release{}, false
	}
	return *best, true
}

// CheckUpdate returns the candidate release to upgrade to, if any: the
// latest (stable-only unless includePrerelease) release whose tag does not
// already match currentVersion.
func CheckUpdate(releases []provider.Release, currentVersion string, includePrerelease bool) (provider.Release, bool) {
	candidate, ok := findLatest(releases, includePrerelease)
	if !ok {
		return provider.Release{}, false
	}
	if VersionsMatch(candidate.Tag, currentVersion) {
		return provider.Release{}, false
	}
	return candidate, true
}

// compareReleases orders by PublishedAt when both sides have it; a release
// with PublishedAt outranks one without; if neither has it, or both are
// equal, falls back to comparing tags lexically (semver-aware when both
// tags parse as semver).
func compareReleases(a, b provider.Release) int {
	switch {
	case a.PublishedAt != nil && b.PublishedAt != nil:
		switch {
		case a.PublishedAt.After(*b.PublishedAt):
			return 1
		case a.PublishedAt.Before(*b.PublishedAt):
			return -1
		default:
			return compareTags(a.Tag, b.Tag)
		}
	case a.PublishedAt != nil:
		return 1
	case b.PublishedAt != nil:
		return -1
	default:
		return compareTags(a.Tag, b.Tag)
	}
}

// compareTags uses semver comparison when both tags parse as semantic
// versions (tolerating a leading 'v'), falling back to a plain string
// comparison otherwise — this is the one place Masterminds/semver is
// consulted, strictly as a tiebreak when published_at is absent on both
// sides or equal (see spec's version resolver, which otherwise never ranks by
// semantic version directly).
func compareTags(a, b string) int {
	va, errA := semver.NewVersion(strings.TrimPrefix(a, "v"))
	vb, errB := semver.NewVersion(strings.TrimPrefix(b, "v"))
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}

// SortReleasesDescending sorts releases in place per Meta's persisted order:
// descending by PublishedAt (present before absent), tag descending as the
// tiebreak.
func SortReleasesDescending(releases []provider.Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		return compareReleases(releases[i], releases[j]) > 0
	})
}

// AvailableTagsHint renders up to n tags (in their current order) joined by
// ", " for "version not found" error messages.
func AvailableTagsHint(releases []provider.Release, n int) string {
	tags := make([]string, 0, n)
	for i, r := range releases {
		if i >= n {
			break
		}
		tags = append(tags, r.Tag)
	}
	return strings.Join(tags, ", ")
}

// ErrNotFound formats the "version not found" error with a tag hint, per
// spec's "missing -> error listing up to 5 available tags" contract.
func ErrNotFound(version string, releases []provider.Release) error {
	hint := AvailableTagsHint(releases, 5)
	if hint == "" {
		return fmt.Errorf("version %q not found: no releases available", version)
	}
	return fmt.Errorf("version %q not found, available: %s", version, hint)
}
