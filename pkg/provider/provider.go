// Package provider defines the code-hosting abstraction the core consumes:
// a repository coordinate, release/asset shapes, and the pluggable fetch
// interface implemented per hoster (GitHub, GitLab, Gitee).
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RepoId identifies a repository as owner/repo. Both parts must be non-empty.
type RepoId struct {
	Owner string
	Repo  string
}

// String renders the canonical owner/repo form.
func (r RepoId) String() string {
	return r.Owner + "/" + r.Repo
}

// ParseRepoId parses "owner/repo", requiring exactly one '/' with non-empty
// parts on both sides.
func ParseRepoId(s string) (RepoId, error) {
	idx := strings.Index(s, "/")
	if idx <= 0 || idx == len(s)-1 {
		return RepoId{}, fmt.Errorf("invalid repo %q: expected owner/repo", s)
	}
	owner, repo := s[:idx], s[idx+1:]
	if strings.Contains(repo, "/") {
		return RepoId{}, fmt.Errorf("invalid repo %q: expected owner/repo", s)
	}
	return RepoId{Owner: owner, Repo: repo}, nil
}

// Asset is a single downloadable file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
	// Digest carries the provider's content digest when available, e.g.
	// "sha256:abcd...". Empty when the provider does not supply one;
	// optional everywhere it is consumed.
	Digest string `json:"digest,omitempty"`
}

// Release is one published version of a repository.
type Release struct {
	Tag         string    `json:"tag"`
	Name        string    `json:"name,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Prerelease  bool      `json:"prerelease"`
	TarballURL  string    `json:"tarball_url"`
	Assets      []Asset   `json:"assets"`
}

// RepoMetadata is the subset of repository-level information the core cares
// about, fetched alongside releases.
type RepoMetadata struct {
	Description *string    `json:"description,omitempty"`
	Homepage    *string    `json:"homepage,omitempty"`
	License     *string    `json:"license,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Kind identifies which hosting API a provider speaks.
type Kind string

const (
	GitHub Kind = "github"
	GitLab Kind = "gitlab"
	Gitee  Kind = "gitee"
)

// String renders the kind.
func (k Kind) String() string { return string(k) }

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "github":
		return GitHub, nil
	case "gitlab":
		return GitLab, nil
	case "gitee":
		return Gitee, nil
	default:
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
}

// Provider is the fetch contract the core consumes, decoupled from any
// specific hoster's SDK or REST shape.
type Provider interface {
	Kind() Kind
	APIURL() string
	GetRepoMetadata(ctx context.Context, repo RepoId) (RepoMetadata, error)
	GetReleases(ctx context.Context, repo RepoId) ([]Release, error)
	// GetRepoMetadataAt and GetReleasesAt fetch against a caller-supplied
	// API URL (used by upgrade to keep talking to the host a package was
	// originally fetched from, e.g. a GitHub Enterprise instance).
	GetRepoMetadataAt(ctx context.Context, repo RepoId, apiURL string) (RepoMetadata, error)
	GetReleasesAt(ctx context.Context, repo RepoId, apiURL string) ([]Release, error)
}
