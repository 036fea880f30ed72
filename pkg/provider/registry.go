package provider

import (
	"fmt"
	"strings"
)

// Registry resolves a Provider by kind, with one default kind used when a
// PackageSpec or Meta does not pin a specific provider.
type Registry struct {
	providers   map[Kind]Provider
	defaultKind Kind
}

// NewRegistry returns a registry defaulting to GitHub.
func NewRegistry() *Registry {
	return &Registry{providers: map[Kind]Provider{}, defaultKind: GitHub}
}

// NewRegistryWithDefault returns a registry defaulting to the given kind.
func NewRegistryWithDefault(kind Kind) *Registry {
	return &Registry{providers: map[Kind]Provider{}, defaultKind: kind}
}

// Register adds or replaces the provider for its own Kind().
func (r *Registry) Register(p Provider) {
	r.providers[p.Kind()] = p
}

// Get returns the provider registered for kind, if any.
func (r *Registry) Get(kind Kind) (Provider, bool) {
	p, ok := r.providers[kind]
	return p, ok
}

// SetDefault changes the default kind used by Resolve when a spec does not
// pin one.
func (r *Registry) SetDefault(kind Kind) { r.defaultKind = kind }

// DefaultKind returns the registry's current default kind.
func (r *Registry) DefaultKind() Kind { return r.defaultKind }

// Has reports whether kind has a registered provider.
func (r *Registry) Has(kind Kind) bool {
	_, ok := r.providers[kind]
	return ok
}

// Len returns the number of registered providers.
func (r *Registry) Len() int { return len(r.providers) }

// RegisteredKinds returns every kind with a registered provider.
func (r *Registry) RegisteredKinds() []Kind {
	out := make([]Kind, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	return out
}

// Resolve picks a provider for spec: its explicit kind if set, else the
// registry default.
func (r *Registry) Resolve(spec PackageSpec) (Provider, error) {
	kind := r.defaultKind
	if spec.ProviderKind != nil {
		kind = *spec.ProviderKind
	}
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("no provider registered for kind: %s", kind)
	}
	return p, nil
}

// ResolveFromAPIURL infers a provider kind from a persisted API URL
// (deliberately coarse substring matching, to tolerate enterprise hosts:
// contains "gitlab" -> GitLab, contains "gitee" -> Gitee, otherwise GitHub)
// and resolves it against the registry.
func ResolveFromAPIURL(r *Registry, apiURL string) (Provider, error) {
	kind := InferKind(apiURL)
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("no provider registered for kind: %s", kind)
	}
	return p, nil
}

// InferKind infers a provider kind from an API URL by coarse substring
// match. GitHub Enterprise and other unrecognized hosts default to GitHub.
func InferKind(apiURL string) Kind {
	lower := strings.ToLower(apiURL)
	switch {
	case strings.Contains(lower, "gitlab"):
		return GitLab
	case strings.Contains(lower, "gitee"):
		return Gitee
	default:
		return GitHub
	}
}

// PackageSpec identifies a package to operate on: a repo, an optional
// exact version, and optional provider overrides. Textual forms:
// "owner/repo" and "owner/repo@version"; the '@' separator (rightmost)
// splits the version. PackageSpec carries no path; the ':path' forms are
// parsed by ParseLinkSpec.
type PackageSpec struct {
	Repo         RepoId
	Version      *string
	ProviderKind *Kind
	APIURL       *string
}

// WithVersion returns a copy of the spec pinned to version.
func (s PackageSpec) WithVersion(version string) PackageSpec {
	s.Version = &version
	return s
}

// WithProvider returns a copy of the spec pinned to kind.
func (s PackageSpec) WithProvider(kind Kind) PackageSpec {
	s.ProviderKind = &kind
	return s
}

// WithAPIURL returns a copy of the spec pinned to apiURL.
func (s PackageSpec) WithAPIURL(apiURL string) PackageSpec {
	s.APIURL = &apiURL
	return s
}

// String reconstructs the textual form "owner/repo[@version]".
func (s PackageSpec) String() string {
	if s.Version != nil {
		return s.Repo.String() + "@" + *s.Version
	}
	return s.Repo.String()
}

// ParsePackageSpec parses "owner/repo" or "owner/repo@version". An empty
// version after '@' is an explicit error.
func ParsePackageSpec(s string) (PackageSpec, error) {
	repoPart := s
	var version *string
	if idx := strings.LastIndex(s, "@"); idx >= 0 {
		repoPart = s[:idx]
		v := s[idx+1:]
		if v == "" {
			return PackageSpec{}, fmt.Errorf("version after @ cannot be empty")
		}
		version = &v
	}
	repo, err := ParseRepoId(repoPart)
	if err != nil {
		return PackageSpec{}, err
	}
	return PackageSpec{Repo: repo, Version: version}, nil
}

// LinkSpec identifies a package, optional version, and optional in-tree path
// for link/unlink. Textual forms add a ':' path separator on top of
// PackageSpec's '@' version separator: "owner/repo:path",
// "owner/repo@version:path". The rightmost ':' is treated as the path
// separator only when the substring to its left contains '/', so that a
// bare "owner/repo" without any path never misparses its own slash as a
// path boundary.
type LinkSpec struct {
	Repo    RepoId
	Version *string
	Path    *string
}

// String reconstructs "repo[@version][:path]".
func (s LinkSpec) String() string {
	out := s.Repo.String()
	if s.Version != nil {
		out += "@" + *s.Version
	}
	if s.Path != nil {
		out += ":" + *s.Path
	}
	return out
}

// ParseLinkSpec parses the LinkSpec textual form described above.
func ParseLinkSpec(s string) (LinkSpec, error) {
	rest := s
	var path *string
	if idx := strings.LastIndex(s, ":"); idx >= 0 && strings.Contains(s[:idx], "/") {
		left, right := s[:idx], s[idx+1:]
		if right == "" {
			return LinkSpec{}, fmt.Errorf("path after : cannot be empty")
		}
		rest = left
		path = &right
	}

	repoPart := rest
	var version *string
	if idx := strings.LastIndex(rest, "@"); idx >= 0 {
		repoPart = rest[:idx]
		v := rest[idx+1:]
		if v == "" {
			return LinkSpec{}, fmt.Errorf("version after @ cannot be empty")
		}
		version = &v
	}

	repo, err := ParseRepoId(repoPart)
	if err != nil {
		return LinkSpec{}, err
	}
	return LinkSpec{Repo: repo, Version: version, Path: path}, nil
}
