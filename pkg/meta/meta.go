// Package meta defines the per-package persisted metadata (Meta), its link
// shapes (LinkRule, VersionedLink), and the merge/sort rules applied to
// releases on every fetch.
package meta

import (
	"encoding/json"
	"time"

	"github.com/chaifeng/ghri-go/pkg/provider"
	"github.com/chaifeng/ghri-go/pkg/version"
	"github.com/samber/lo"
)

// LinkRule is a user-managed external symlink whose destination is kept in
// sync with the package's current version on every install/upgrade.
type LinkRule struct {
	// Dest is persisted relative to the package directory.
	Dest string `json:"dest"`
	// Path selects a file within the version directory; empty means "use
	// the default target" (see symlink.FindDefaultTarget).
	Path string `json:"path,omitempty"`
}

// VersionedLink is a user-managed external symlink pinned to a specific
// version; install/upgrade never updates it.
type VersionedLink struct {
	Version string `json:"version"`
	Dest    string `json:"dest"`
	Path    string `json:"path,omitempty"`
}

// Meta is the single source of truth persisted at
// <root>/<owner>/<repo>/meta.json.
type Meta struct {
	Name        string     `json:"name"`
	APIURL      string     `json:"api_url"`
	Description *string    `json:"description,omitempty"`
	Homepage    *string    `json:"homepage,omitempty"`
	License     *string    `json:"license,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`

	CurrentVersion string `json:"current_version,omitempty"`

	Releases       []provider.Release `json:"releases"`
	Links          []LinkRule         `json:"links"`
	VersionedLinks []VersionedLink    `json:"versioned_links"`
	Filters        []string           `json:"filters,omitempty"`

	// Legacy fields, deprecated: read-migrated into Links on load, cleared
	// on any link write, kept only for read-back compatibility. Never
	// emitted by new writes once a save has occurred.
	LegacyLinkedTo   string `json:"linked_to,omitempty"`
	LegacyLinkedPath string `json:"linked_path,omitempty"`
}

// New builds a fresh Meta for repo from freshly fetched metadata+releases.
func New(repo provider.RepoId, apiURL string, info provider.RepoMetadata, releases []provider.Release) *Meta {
	m := &Meta{
		Name:        repo.String(),
		APIURL:      apiURL,
		Description: info.Description,
		Homepage:    info.Homepage,
		License:     info.License,
		UpdatedAt:   info.UpdatedAt,
		Releases:    append([]provider.Release(nil), releases...),
	}
	m.migrateLegacy()
	SortReleases(m.Releases)
	return m
}

// SortReleases sorts releases descending per the persisted-order rule:
// PublishedAt present-before-absent, tag descending as tiebreak.
func SortReleases(releases []provider.Release) {
	version.SortReleasesDescending(releases)
}

// migrateLegacy folds a legacy linked_to/linked_path pair into Links, then
// clears the legacy fields so they are never re-emitted. Read-time only;
// callers must call Save afterward for the migration to stick.
func (m *Meta) migrateLegacy() {
	if m.LegacyLinkedTo == "" {
		return
	}
	m.Links = append(m.Links, LinkRule{Dest: m.LegacyLinkedTo, Path: m.LegacyLinkedPath})
	m.LegacyLinkedTo = ""
	m.LegacyLinkedPath = ""
}

// MergeReleases merges freshly fetched releases into the existing set,
// replacing any release with the same tag and appending new ones, then
// re-sorting. Description/homepage/license/updated_at are overwritten when
// the fetch provides a non-nil value.
func (m *Meta) MergeReleases(info provider.RepoMetadata, fetched []provider.Release) {
	if info.Description != nil {
		m.Description = info.Description
	}
	if info.Homepage != nil {
		m.Homepage = info.Homepage
	}
	if info.License != nil {
		m.License = info.License
	}
	if info.UpdatedAt != nil {
		m.UpdatedAt = info.UpdatedAt
	}

	byTag := make(map[string]int, len(m.Releases))
	for i, r := range m.Releases {
		byTag[r.Tag] = i
	}
	for _, r := range fetched {
		if i, ok := byTag[r.Tag]; ok {
			m.Releases[i] = r
		} else {
			m.Releases = append(m.Releases, r)
			byTag[r.Tag] = len(m.Releases) - 1
		}
	}
	SortReleases(m.Releases)
}

// DedupLinkRules removes duplicate entries by Dest from a LinkRule slice,
// keeping the first occurrence.
func DedupLinkRules(rules []LinkRule) []LinkRule {
	return lo.UniqBy(rules, func(r LinkRule) string { return r.Dest })
}

// DedupVersionedLinks removes duplicate entries by Dest, keeping the first.
func DedupVersionedLinks(rules []VersionedLink) []VersionedLink {
	return lo.UniqBy(rules, func(r VersionedLink) string { return r.Dest })
}

// RemoveLinkByDest returns rules with any entry matching dest removed, and
// whether one was removed.
func RemoveLinkByDest(rules []LinkRule, dest string) ([]LinkRule, bool) {
	out := make([]LinkRule, 0, len(rules))
	removed := false
	for _, r := range rules {
		if r.Dest == dest {
			removed = true
			continue
		}
		out = append(out, r)
	}
	return out, removed
}

// RemoveVersionedLinkByDest is the VersionedLink analog of RemoveLinkByDest.
func RemoveVersionedLinkByDest(rules []VersionedLink, dest string) ([]VersionedLink, bool) {
	out := make([]VersionedLink, 0, len(rules))
	removed := false
	for _, r := range rules {
		if r.Dest == dest {
			removed = true
			continue
		}
		out = append(out, r)
	}
	return out, removed
}

// Marshal renders m as pretty-printed JSON.
func Marshal(m *Meta) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Unmarshal parses JSON into a Meta, migrating legacy fields.
func Unmarshal(data []byte) (*Meta, error) {
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.migrateLegacy()
	return &m, nil
}
