// Package gitlab implements provider.Provider against the GitLab REST API,
// a peer of the GitHub provider for self-hosted and gitlab.com repos.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chaifeng/ghri-go/pkg/httpclient"
	"github.com/chaifeng/ghri-go/pkg/provider"
)

const defaultAPIURL = "https://gitlab.com/api/v4"

// Provider implements provider.Provider using GitLab's REST API directly
// (there is no equivalent of go-github for GitLab in this codebase's
// dependency set, so the shape follows the GitHub provider's pattern of
// authenticated requests against typed REST response structs).
type Provider struct {
	client *http.Client
	token  string
	apiURL string
}

// New builds a GitLab provider authenticated from token (may be empty).
func New(token string) *Provider {
	return &Provider{client: httpclient.GetHttpClient(), token: token, apiURL: defaultAPIURL}
}

func (p *Provider) Kind() provider.Kind { return provider.GitLab }

func (p *Provider) APIURL() string { return p.apiURL }

func (p *Provider) GetRepoMetadata(ctx context.Context, repo provider.RepoId) (provider.RepoMetadata, error) {
	return p.GetRepoMetadataAt(ctx, repo, p.apiURL)
}

func (p *Provider) GetReleases(ctx context.Context, repo provider.RepoId) ([]provider.Release, error) {
	return p.GetReleasesAt(ctx, repo, p.apiURL)
}

type glProject struct {
	Description string `json:"description"`
	WebURL      string `json:"web_url"`
	LastActivityAt *time.Time `json:"last_activity_at"`
}

func (p *Provider) GetRepoMetadataAt(ctx context.Context, repo provider.RepoId, apiURL string) (provider.RepoMetadata, error) {
	var proj glProject
	path := fmt.Sprintf("%s/projects/%s", strings.TrimSuffix(apiURL, "/"), url.PathEscape(repo.String()))
	if err := p.getJSON(ctx, path, &proj); err != nil {
		return provider.RepoMetadata{}, fmt.Errorf("fetching GitLab project metadata for %s: %w", repo, err)
	}
	meta := provider.RepoMetadata{}
	if proj.Description != "" {
		meta.Description = &proj.Description
	}
	if proj.WebURL != "" {
		meta.Homepage = &proj.WebURL
	}
	meta.UpdatedAt = proj.LastActivityAt
	return meta, nil
}

type glRelease struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	ReleasedAt  *time.Time `json:"released_at"`
	UpcomingRelease bool   `json:"upcoming_release"`
	Assets      struct {
		Links []struct {
			Name string `json:"name"`
			URL  string `json:"direct_asset_url"`
		} `json:"links"`
		Sources []struct {
			Format string `json:"format"`
			URL    string `json:"url"`
		} `json:"sources"`
	} `json:"assets"`
}

func (p *Provider) GetReleasesAt(ctx context.Context, repo provider.RepoId, apiURL string) ([]provider.Release, error) {
	var batch []glRelease
	path := fmt.Sprintf("%s/projects/%s/releases?per_page=100", strings.TrimSuffix(apiURL, "/"), url.PathEscape(repo.String()))
	if err := p.getJSON(ctx, path, &batch); err != nil {
		return nil, fmt.Errorf("fetching GitLab releases for %s: %w", repo, err)
	}

	out := make([]provider.Release, 0, len(batch))
	for _, r := range batch {
		rel := provider.Release{
			Tag:         r.TagName,
			Name:        r.Name,
			Prerelease:  r.UpcomingRelease,
			PublishedAt: r.ReleasedAt,
		}
		for _, src := range r.Assets.Sources {
			if src.Format == "tar.gz" {
				rel.TarballURL = src.URL
				break
			}
		}
		for _, link := range r.Assets.Links {
			rel.Assets = append(rel.Assets, provider.Asset{Name: link.Name, DownloadURL: link.URL})
		}
		out = append(out, rel)
	}
	return out, nil
}

func (p *Provider) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if p.token != "" {
		req.Header.Set("PRIVATE-TOKEN", p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
