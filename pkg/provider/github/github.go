// Package github implements provider.Provider against the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chaifeng/ghri-go/pkg/provider"
	"github.com/flanksource/commons/logger"
	gogithub "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

const defaultAPIURL = "https://api.github.com"

// Provider implements provider.Provider using go-github, authenticating
// with GITHUB_TOKEN when present.
type Provider struct {
	client *gogithub.Client
	apiURL string
}

// New builds a GitHub provider authenticated from the GITHUB_TOKEN
// environment variable, if set.
func New() *Provider {
	return NewWithToken(os.Getenv("GITHUB_TOKEN"))
}

// NewWithToken builds a GitHub provider using the given token (may be empty
// for unauthenticated, rate-limited access).
func NewWithToken(token string) *Provider {
	var client *gogithub.Client
	if token != "" {
		logger.Debugf("using GitHub token %s", maskToken(token))
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient := oauth2.NewClient(context.Background(), ts)
		client = gogithub.NewClient(httpClient)
	} else {
		client = gogithub.NewClient(nil)
	}
	return &Provider{client: client, apiURL: defaultAPIURL}
}

// maskToken renders a token as "<first8>*********<last4>" for safe logging,
// only when it is long enough that doing so doesn't just reveal the whole
// thing.
func maskToken(token string) string {
	if len(token) < 12 {
		return "****"
	}
	return token[:8] + "*********" + token[len(token)-4:]
}

func (p *Provider) Kind() provider.Kind { return provider.GitHub }

func (p *Provider) APIURL() string { return p.apiURL }

func (p *Provider) GetRepoMetadata(ctx context.Context, repo provider.RepoId) (provider.RepoMetadata, error) {
	return p.GetRepoMetadataAt(ctx, repo, p.apiURL)
}

func (p *Provider) GetReleases(ctx context.Context, repo provider.RepoId) ([]provider.Release, error) {
	return p.GetReleasesAt(ctx, repo, p.apiURL)
}

func (p *Provider) GetRepoMetadataAt(ctx context.Context, repo provider.RepoId, apiURL string) (provider.RepoMetadata, error) {
	client, err := p.clientFor(apiURL)
	if err != nil {
		return provider.RepoMetadata{}, err
	}

	r, _, err := client.Repositories.Get(ctx, repo.Owner, repo.Repo)
	if err != nil {
		return provider.RepoMetadata{}, fmt.Errorf("fetching repo metadata for %s: %w", repo, err)
	}

	meta := provider.RepoMetadata{}
	if r.Description != nil && *r.Description != "" {
		meta.Description = r.Description
	}
	if r.Homepage != nil && *r.Homepage != "" {
		meta.Homepage = r.Homepage
	}
	if r.License != nil && r.License.SPDXID != nil {
		meta.License = r.License.SPDXID
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.Time
		meta.UpdatedAt = &t
	}
	return meta, nil
}

// restRelease and restAsset mirror the GitHub REST API's release shape
// directly because go-github's typed RepositoryAsset does not expose the "digest"
// field ("sha256:...") that the REST API actually returns. Issued through
// the authenticated go-github client's request/response plumbing so auth,
// base URL, and rate-limit handling stay shared with the typed calls.
type restRelease struct {
	TagName     string      `json:"tag_name"`
	Name        string      `json:"name"`
	Prerelease  bool        `json:"prerelease"`
	Draft       bool        `json:"draft"`
	PublishedAt *time.Time  `json:"published_at"`
	TarballURL  string      `json:"tarball_url"`
	Assets      []restAsset `json:"assets"`
}

type restAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Digest             string `json:"digest"`
	Size               int64  `json:"size"`
}

func (p *Provider) GetReleasesAt(ctx context.Context, repo provider.RepoId, apiURL string) ([]provider.Release, error) {
	client, err := p.clientFor(apiURL)
	if err != nil {
		return nil, err
	}

	var out []provider.Release
	page := 1
	for {
		path := fmt.Sprintf("repos/%s/%s/releases?per_page=100&page=%d", repo.Owner, repo.Repo, page)
		req, err := client.NewRequest("GET", path, nil)
		if err != nil {
			return nil, fmt.Errorf("building releases request for %s: %w", repo, err)
		}
		var batch []restRelease
		resp, err := client.Do(ctx, req, &batch)
		if err != nil {
			return nil, fmt.Errorf("fetching releases for %s: %w", repo, err)
		}
		for _, r := range batch {
			if r.Draft {
				continue
			}
			out = append(out, toRelease(r))
		}
		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}
	return out, nil
}

func toRelease(r restRelease) provider.Release {
	rel := provider.Release{
		Tag:         r.TagName,
		Name:        r.Name,
		Prerelease:  r.Prerelease,
		TarballURL:  r.TarballURL,
		PublishedAt: r.PublishedAt,
	}
	for _, a := range r.Assets {
		rel.Assets = append(rel.Assets, provider.Asset{
			Name:        a.Name,
			Size:        a.Size,
			DownloadURL: a.BrowserDownloadURL,
			Digest:      a.Digest,
		})
	}
	return rel
}

// clientFor returns a client targeting apiURL, reusing the provider's
// authenticated transport but pointing requests at a different base URL
// (GitHub Enterprise and test hosts share auth but not api.github.com's
// base URL). go-github's BaseURL field is exported precisely for this.
func (p *Provider) clientFor(apiURL string) (*gogithub.Client, error) {
	if apiURL == "" || apiURL == defaultAPIURL || strings.HasPrefix(apiURL, defaultAPIURL) {
		return p.client, nil
	}
	base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %s: %w", apiURL, err)
	}
	client := gogithub.NewClient(p.client.Client())
	client.BaseURL = base
	return client, nil
}
