package usecase_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chaifeng/ghri-go/pkg/host/hosttest"
	"github.com/chaifeng/ghri-go/pkg/install"
	"github.com/chaifeng/ghri-go/pkg/meta"
	"github.com/chaifeng/ghri-go/pkg/provider"
	"github.com/chaifeng/ghri-go/pkg/repository"
	"github.com/chaifeng/ghri-go/pkg/symlink"
	"github.com/chaifeng/ghri-go/pkg/usecase"
)

// fakeProvider returns fixed metadata/releases regardless of the requested
// API URL, standing in for a real GitHub/GitLab fetch.
type fakeProvider struct {
	apiURL   string
	info     provider.RepoMetadata
	releases []provider.Release
}

func (p *fakeProvider) Kind() provider.Kind   { return provider.GitHub }
func (p *fakeProvider) APIURL() string        { return p.apiURL }
func (p *fakeProvider) GetRepoMetadata(ctx context.Context, repo provider.RepoId) (provider.RepoMetadata, error) {
	return p.info, nil
}
func (p *fakeProvider) GetReleases(ctx context.Context, repo provider.RepoId) ([]provider.Release, error) {
	return p.releases, nil
}
func (p *fakeProvider) GetRepoMetadataAt(ctx context.Context, repo provider.RepoId, apiURL string) (provider.RepoMetadata, error) {
	return p.info, nil
}
func (p *fakeProvider) GetReleasesAt(ctx context.Context, repo provider.RepoId, apiURL string) ([]provider.Release, error) {
	return p.releases, nil
}

// fakeDownloader and fakeExtractor stand in for pkg/download and
// pkg/extract, writing directly into the fake host.
type fakeDownloader struct {
	h     *hosttest.Fake
	calls []string
}

func (d *fakeDownloader) Download(url, dest string) error {
	d.calls = append(d.calls, url)
	return d.h.WriteFile(dest, []byte("payload:"+url), 0o644)
}

type fakeExtractor struct {
	h     *hosttest.Fake
	calls []string
}

func (x *fakeExtractor) Extract(archivePath, targetDir string) error {
	x.calls = append(x.calls, archivePath)
	return x.h.WriteFile(targetDir+"/tool", []byte("binary"), 0o755)
}

func repoFixture() provider.RepoId {
	return provider.RepoId{Owner: "owner", Repo: "tool"}
}

func newFixture(h *hosttest.Fake, releases []provider.Release) (*usecase.UseCase, *fakeDownloader, *fakeExtractor) {
	repo := repository.New(h, "/root")
	registry := provider.NewRegistry()
	p := &fakeProvider{apiURL: "https://api.github.com", releases: releases}
	registry.Register(p)

	dl := &fakeDownloader{h: h}
	ex := &fakeExtractor{h: h}
	engine := install.New(h, dl, ex)
	u := usecase.New(h, repo, registry, symlink.New(h), engine)
	return u, dl, ex
}

var _ = Describe("UseCase.Install", func() {
	It("fetches metadata, installs the filtered single-archive asset, and updates current", func() {
		h := hosttest.New()
		releases := []provider.Release{
			{
				Tag: "v1",
				Assets: []provider.Asset{
					{Name: "tool-linux-amd64.tar.gz", DownloadURL: "https://example.com/tool.tar.gz"},
				},
			},
		}
		u, _, ex := newFixture(h, releases)

		spec := provider.PackageSpec{Repo: repoFixture()}
		err := u.Install(context.Background(), spec, usecase.InstallOptions{Filters: []string{"*linux*"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(ex.calls).To(HaveLen(1))

		m, ok, err := repository.New(h, "/root").Load(repoFixture())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(m.CurrentVersion).To(Equal("v1"))
		Expect(m.Filters).To(Equal([]string{"*linux*"}))

		cur, ok := repository.New(h, "/root").CurrentVersion(repoFixture())
		Expect(ok).To(BeTrue())
		Expect(cur).To(Equal("v1"))
	})

	It("is idempotent: installing the same version twice does not re-download", func() {
		h := hosttest.New()
		releases := []provider.Release{
			{Tag: "v1", Assets: []provider.Asset{{Name: "tool-linux-amd64.tar.gz", DownloadURL: "https://example.com/tool.tar.gz"}}},
		}
		u, dl, _ := newFixture(h, releases)
		spec := provider.PackageSpec{Repo: repoFixture()}

		Expect(u.Install(context.Background(), spec, usecase.InstallOptions{Filters: []string{"*linux*"}})).To(Succeed())
		firstCalls := len(dl.calls)
		Expect(u.Install(context.Background(), spec, usecase.InstallOptions{Filters: []string{"*linux*"}})).To(Succeed())
		Expect(dl.calls).To(HaveLen(firstCalls))
	})
})

var _ = Describe("UseCase version resolution", func() {
	var h *hosttest.Fake
	var u *usecase.UseCase
	var repo *repository.Repository

	BeforeEach(func() {
		h = hosttest.New()
		releases := []provider.Release{
			{Tag: "v2.0.0"},
			{Tag: "v2.0.0-rc1", Prerelease: true},
			{Tag: "v1.0.0"},
		}
		u, _, _ = newFixture(h, releases)
		repo = repository.New(h, "/root")

		m := meta.New(repoFixture(), "https://api.github.com", provider.RepoMetadata{}, releases)
		Expect(repo.Save(repoFixture(), m)).To(Succeed())
		Expect(h.MkdirAll(repo.VersionDir(repoFixture(), "v2.0.0"), 0o755)).To(Succeed())
		Expect(h.MkdirAll(repo.VersionDir(repoFixture(), "v1.0.0"), 0o755)).To(Succeed())
	})

	It("resolves to the latest stable release without --pre", func() {
		spec := provider.PackageSpec{Repo: repoFixture()}
		Expect(u.Install(context.Background(), spec, usecase.InstallOptions{})).To(Succeed())
		cur, _ := repo.CurrentVersion(repoFixture())
		Expect(cur).To(Equal("v2.0.0"))
	})

	It("resolves an explicit version tolerating a missing leading v", func() {
		version := "1.0.0"
		spec := provider.PackageSpec{Repo: repoFixture(), Version: &version}
		Expect(u.Install(context.Background(), spec, usecase.InstallOptions{})).To(Succeed())
		cur, _ := repo.CurrentVersion(repoFixture())
		Expect(cur).To(Equal("v1.0.0"))
	})

	It("fails with a not-found error for an unknown version", func() {
		version := "v3"
		spec := provider.PackageSpec{Repo: repoFixture(), Version: &version}
		err := u.Install(context.Background(), spec, usecase.InstallOptions{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("not found"))
	})
})

var _ = Describe("UseCase.Link and Unlink", func() {
	var h *hosttest.Fake
	var u *usecase.UseCase
	var repo *repository.Repository

	BeforeEach(func() {
		h = hosttest.New()
		u, _, _ = newFixture(h, nil)
		repo = repository.New(h, "/root")

		m := meta.New(repoFixture(), "https://api.github.com", provider.RepoMetadata{}, nil)
		m.CurrentVersion = "v1"
		Expect(repo.Save(repoFixture(), m)).To(Succeed())
		Expect(h.MkdirAll(repo.VersionDir(repoFixture(), "v1"), 0o755)).To(Succeed())
		Expect(h.WriteFile(repo.VersionDir(repoFixture(), "v1")+"/tool", []byte("bin"), 0o755)).To(Succeed())
		Expect(h.Symlink("v1", repo.CurrentLink(repoFixture()))).To(Succeed())
	})

	It("creates a relative symlink and records an unversioned link rule", func() {
		spec := provider.LinkSpec{Repo: repoFixture()}
		Expect(u.Link(spec, "/usr/local/bin/tool")).To(Succeed())

		target, err := h.Readlink("/usr/local/bin/tool")
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal("../../../root/owner/tool/v1/tool"))

		m, ok, err := repo.Load(repoFixture())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(m.Links).To(HaveLen(1))
		Expect(m.Links[0].Dest).To(Equal("../../../usr/local/bin/tool"))
	})

	It("removes the link and drops the rule on unlink", func() {
		spec := provider.LinkSpec{Repo: repoFixture()}
		Expect(u.Link(spec, "/usr/local/bin/tool")).To(Succeed())

		summary, err := u.Unlink(spec, "/usr/local/bin/tool", false)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Removed).To(Equal(1))

		_, err = h.Lstat("/usr/local/bin/tool")
		Expect(err).To(HaveOccurred())

		m, _, err := repo.Load(repoFixture())
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Links).To(BeEmpty())
	})

	It("refuses to link over a symlink pointing outside the managed prefix", func() {
		Expect(h.MkdirAll("/elsewhere", 0o755)).To(Succeed())
		Expect(h.WriteFile("/elsewhere/tool", []byte("x"), 0o755)).To(Succeed())
		Expect(h.Symlink("/elsewhere/tool", "/usr/local/bin/tool")).To(Succeed())

		spec := provider.LinkSpec{Repo: repoFixture()}
		err := u.Link(spec, "/usr/local/bin/tool")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("not managed by this package"))

		target, err := h.Readlink("/usr/local/bin/tool")
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal("/elsewhere/tool"))
	})
})

var _ = Describe("UseCase.Remove", func() {
	var h *hosttest.Fake
	var u *usecase.UseCase
	var repo *repository.Repository

	BeforeEach(func() {
		h = hosttest.New()
		u, _, _ = newFixture(h, nil)
		repo = repository.New(h, "/root")

		m := meta.New(repoFixture(), "https://api.github.com", provider.RepoMetadata{}, nil)
		m.CurrentVersion = "v2"
		Expect(repo.Save(repoFixture(), m)).To(Succeed())
		for _, v := range []string{"v1", "v2"} {
			Expect(h.MkdirAll(repo.VersionDir(repoFixture(), v), 0o755)).To(Succeed())
		}
		Expect(h.Symlink("v2", repo.CurrentLink(repoFixture()))).To(Succeed())
	})

	It("refuses to remove the current version without force", func() {
		spec := provider.PackageSpec{Repo: repoFixture(), Version: strPtr("v2")}
		err := u.Remove(spec, false)
		Expect(err).To(HaveOccurred())
		Expect(repo.IsVersionInstalled(repoFixture(), "v2")).To(BeTrue())
	})

	It("removes a non-current version", func() {
		spec := provider.PackageSpec{Repo: repoFixture(), Version: strPtr("v1")}
		Expect(u.Remove(spec, false)).To(Succeed())
		Expect(repo.IsVersionInstalled(repoFixture(), "v1")).To(BeFalse())
		Expect(repo.IsVersionInstalled(repoFixture(), "v2")).To(BeTrue())
	})

	It("removes the whole package", func() {
		spec := provider.PackageSpec{Repo: repoFixture()}
		Expect(u.Remove(spec, true)).To(Succeed())
		Expect(repo.IsInstalled(repoFixture())).To(BeFalse())
	})
})

var _ = Describe("UseCase.Prune", func() {
	It("keeps current and removes every other version", func() {
		h := hosttest.New()
		u, _, _ := newFixture(h, nil)
		repo := repository.New(h, "/root")

		m := meta.New(repoFixture(), "https://api.github.com", provider.RepoMetadata{}, nil)
		m.CurrentVersion = "v3"
		Expect(repo.Save(repoFixture(), m)).To(Succeed())
		for _, v := range []string{"v1", "v2", "v3"} {
			Expect(h.MkdirAll(repo.VersionDir(repoFixture(), v), 0o755)).To(Succeed())
		}
		Expect(h.Symlink("v3", repo.CurrentLink(repoFixture()))).To(Succeed())

		Expect(u.Prune(context.Background(), []provider.RepoId{repoFixture()}, true)).To(Succeed())
		Expect(repo.IsVersionInstalled(repoFixture(), "v3")).To(BeTrue())
		Expect(repo.IsVersionInstalled(repoFixture(), "v2")).To(BeFalse())
		Expect(repo.IsVersionInstalled(repoFixture(), "v1")).To(BeFalse())
	})
})

var _ = Describe("UseCase.List and Show", func() {
	It("lists installed packages and shows one package's detail", func() {
		h := hosttest.New()
		u, _, _ := newFixture(h, nil)
		repo := repository.New(h, "/root")

		m := meta.New(repoFixture(), "https://api.github.com", provider.RepoMetadata{}, nil)
		m.CurrentVersion = "v1"
		Expect(repo.Save(repoFixture(), m)).To(Succeed())
		Expect(h.MkdirAll(repo.VersionDir(repoFixture(), "v1"), 0o755)).To(Succeed())

		list, err := u.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(1))
		Expect(list[0].Repo).To(Equal(repoFixture()))
		Expect(list[0].CurrentVersion).To(Equal("v1"))

		show, err := u.Show(repoFixture())
		Expect(err).NotTo(HaveOccurred())
		Expect(show.Versions).To(Equal([]string{"v1"}))
	})
})

func strPtr(s string) *string { return &s }
