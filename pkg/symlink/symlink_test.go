package symlink_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chaifeng/ghri-go/pkg/host/hosttest"
	"github.com/chaifeng/ghri-go/pkg/symlink"
)

var _ = Describe("Manager.CheckLink", func() {
	var h *hosttest.Fake
	var m *symlink.Manager

	BeforeEach(func() {
		h = hosttest.New()
		m = symlink.New(h)
	})

	It("reports NotExists for an absent destination", func() {
		c := m.CheckLink("/home/user/bin/tool", "/pkgs/owner/repo")
		Expect(c.Status).To(Equal(symlink.NotExists))
		Expect(c.Status.IsCreatable()).To(BeTrue())
	})

	It("reports NotSymlink when a plain file occupies the destination", func() {
		Expect(h.WriteFile("/home/user/bin/tool", []byte("x"), 0o644)).To(Succeed())
		c := m.CheckLink("/home/user/bin/tool", "/pkgs/owner/repo")
		Expect(c.Status).To(Equal(symlink.NotSymlink))
		Expect(c.Status.IsProblematic()).To(BeTrue())
	})

	It("reports Valid when the link resolves under the managed prefix", func() {
		Expect(h.MkdirAll("/pkgs/owner/repo/v1", 0o755)).To(Succeed())
		Expect(h.WriteFile("/pkgs/owner/repo/v1/tool", []byte("x"), 0o755)).To(Succeed())
		Expect(h.Symlink("/pkgs/owner/repo/v1/tool", "/home/user/bin/tool")).To(Succeed())

		c := m.CheckLink("/home/user/bin/tool", "/pkgs/owner/repo")
		Expect(c.Status).To(Equal(symlink.Valid))
		Expect(c.Path).To(Equal("/pkgs/owner/repo/v1/tool"))
	})

	It("reports WrongTarget when the link resolves outside the prefix", func() {
		Expect(h.WriteFile("/elsewhere/tool", []byte("x"), 0o755)).To(Succeed())
		Expect(h.Symlink("/elsewhere/tool", "/home/user/bin/tool")).To(Succeed())

		c := m.CheckLink("/home/user/bin/tool", "/pkgs/owner/repo")
		Expect(c.Status).To(Equal(symlink.WrongTarget))
		Expect(c.Status.IsCreatable()).To(BeTrue())
	})
})

var _ = Describe("Manager.FindDefaultTarget", func() {
	var h *hosttest.Fake
	var m *symlink.Manager

	BeforeEach(func() {
		h = hosttest.New()
		m = symlink.New(h)
	})

	It("picks the single non-directory entry", func() {
		Expect(h.WriteFile("/pkgs/owner/repo/v1/tool", []byte("x"), 0o755)).To(Succeed())
		target, err := m.FindDefaultTarget("/pkgs/owner/repo/v1")
		Expect(err).ToNot(HaveOccurred())
		Expect(target).To(Equal("/pkgs/owner/repo/v1/tool"))
	})

	It("falls back to the version dir itself with multiple entries", func() {
		Expect(h.WriteFile("/pkgs/owner/repo/v1/a", []byte("x"), 0o755)).To(Succeed())
		Expect(h.WriteFile("/pkgs/owner/repo/v1/b", []byte("x"), 0o755)).To(Succeed())
		target, err := m.FindDefaultTarget("/pkgs/owner/repo/v1")
		Expect(err).ToNot(HaveOccurred())
		Expect(target).To(Equal("/pkgs/owner/repo/v1"))
	})
})

var _ = Describe("Manager.CreateLink", func() {
	It("derives a relative link value and creates missing parent dirs", func() {
		h := hosttest.New()
		m := symlink.New(h)
		Expect(h.WriteFile("/pkgs/owner/repo/v1/tool", []byte("x"), 0o755)).To(Succeed())

		Expect(m.CreateLink("/pkgs/owner/repo/v1/tool", "/home/user/bin/tool")).To(Succeed())

		target, err := h.Readlink("/home/user/bin/tool")
		Expect(err).ToNot(HaveOccurred())
		Expect(target).To(Equal("../../../pkgs/owner/repo/v1/tool"))
	})
})

var _ = Describe("Manager.RemoveLink", func() {
	var h *hosttest.Fake
	var m *symlink.Manager

	BeforeEach(func() {
		h = hosttest.New()
		m = symlink.New(h)
	})

	It("refuses to remove a plain file", func() {
		Expect(h.WriteFile("/home/user/bin/real", []byte("x"), 0o644)).To(Succeed())
		removed, err := m.RemoveLink("/home/user/bin/real")
		Expect(err).ToNot(HaveOccurred())
		Expect(removed).To(BeFalse())
		Expect(h.Exists("/home/user/bin/real")).To(BeTrue())
	})

	It("removes an existing symlink", func() {
		Expect(h.Symlink("/target", "/home/user/bin/link")).To(Succeed())
		removed, err := m.RemoveLink("/home/user/bin/link")
		Expect(err).ToNot(HaveOccurred())
		Expect(removed).To(BeTrue())
		Expect(h.Exists("/home/user/bin/link")).To(BeFalse())
	})
})

var _ = Describe("Manager.RemoveLinkIfUnder", func() {
	var h *hosttest.Fake
	var m *symlink.Manager

	BeforeEach(func() {
		h = hosttest.New()
		m = symlink.New(h)
	})

	It("refuses an external target", func() {
		Expect(h.Symlink("/elsewhere/tool", "/home/user/bin/tool")).To(Succeed())
		result, err := m.RemoveLinkIfUnder("/home/user/bin/tool", "/pkgs/owner/repo")
		Expect(err).ToNot(HaveOccurred())
		Expect(result).To(Equal(symlink.RemoveExternalTarget))
		Expect(h.Exists("/home/user/bin/tool")).To(BeTrue())
	})

	It("rejects a .. escape dressed up as a sibling path", func() {
		Expect(h.Symlink("../repo-evil/tool", "/pkgs/owner/repo/bin-escape")).To(Succeed())
		result, err := m.RemoveLinkIfUnder("/pkgs/owner/repo/bin-escape", "/pkgs/owner/repo")
		Expect(err).ToNot(HaveOccurred())
		Expect(result).To(Equal(symlink.RemoveExternalTarget))
	})

	It("removes when the target resolves under the prefix", func() {
		Expect(h.MkdirAll("/pkgs/owner/repo/v1", 0o755)).To(Succeed())
		Expect(h.Symlink("/pkgs/owner/repo/v1/tool", "/home/user/bin/tool")).To(Succeed())
		result, err := m.RemoveLinkIfUnder("/home/user/bin/tool", "/pkgs/owner/repo")
		Expect(err).ToNot(HaveOccurred())
		Expect(result).To(Equal(symlink.Removed))
	})
})

var _ = Describe("Manager.PrepareLinkDestination", func() {
	var h *hosttest.Fake
	var m *symlink.Manager

	BeforeEach(func() {
		h = hosttest.New()
		m = symlink.New(h)
	})

	It("succeeds immediately when nothing occupies the destination", func() {
		Expect(m.PrepareLinkDestination("/home/user/bin/tool", "/pkgs/owner/repo")).To(Succeed())
	})

	It("fails on an existing non-symlink", func() {
		Expect(h.WriteFile("/home/user/bin/tool", []byte("x"), 0o644)).To(Succeed())
		Expect(m.PrepareLinkDestination("/home/user/bin/tool", "/pkgs/owner/repo")).ToNot(Succeed())
	})

	It("fails when the existing link is not managed by this package", func() {
		Expect(h.Symlink("/elsewhere/tool", "/home/user/bin/tool")).To(Succeed())
		Expect(m.PrepareLinkDestination("/home/user/bin/tool", "/pkgs/owner/repo")).ToNot(Succeed())
	})

	It("removes an existing managed link to make room", func() {
		Expect(h.MkdirAll("/pkgs/owner/repo/v1", 0o755)).To(Succeed())
		Expect(h.Symlink("/pkgs/owner/repo/v1/tool", "/home/user/bin/tool")).To(Succeed())
		Expect(m.PrepareLinkDestination("/home/user/bin/tool", "/pkgs/owner/repo")).To(Succeed())
		Expect(h.Exists("/home/user/bin/tool")).To(BeFalse())
	})
})

var _ = Describe("Manager.CheckLinks", func() {
	It("partitions valid/creatable links from problematic ones", func() {
		h := hosttest.New()
		m := symlink.New(h)
		Expect(h.MkdirAll("/pkgs/owner/repo/v1", 0o755)).To(Succeed())
		Expect(h.Symlink("/pkgs/owner/repo/v1/tool", "/home/user/bin/good")).To(Succeed())
		Expect(h.WriteFile("/home/user/bin/bad", []byte("x"), 0o644)).To(Succeed())

		ok, problematic := m.CheckLinks([]string{"/home/user/bin/good", "/home/user/bin/bad"}, "/pkgs/owner/repo")
		Expect(ok).To(HaveLen(1))
		Expect(problematic).To(HaveLen(1))
	})
})

var _ = Describe("Manager.UpdateCurrentLink", func() {
	var h *hosttest.Fake
	var m *symlink.Manager

	BeforeEach(func() {
		h = hosttest.New()
		m = symlink.New(h)
		Expect(h.MkdirAll("/pkgs/owner/repo/v1", 0o755)).To(Succeed())
		Expect(h.MkdirAll("/pkgs/owner/repo/v2", 0o755)).To(Succeed())
	})

	It("creates the link when absent", func() {
		Expect(m.UpdateCurrentLink("/pkgs/owner/repo", "v1")).To(Succeed())
		target, err := h.Readlink("/pkgs/owner/repo/current")
		Expect(err).ToNot(HaveOccurred())
		Expect(target).To(Equal("v1"))
	})

	It("is a no-op when already correct", func() {
		Expect(h.Symlink("v1", "/pkgs/owner/repo/current")).To(Succeed())
		Expect(m.UpdateCurrentLink("/pkgs/owner/repo", "v1")).To(Succeed())
		target, err := h.Readlink("/pkgs/owner/repo/current")
		Expect(err).ToNot(HaveOccurred())
		Expect(target).To(Equal("v1"))
	})

	It("replaces a mismatched link", func() {
		Expect(h.Symlink("v1", "/pkgs/owner/repo/current")).To(Succeed())
		Expect(m.UpdateCurrentLink("/pkgs/owner/repo", "v2")).To(Succeed())
		target, err := h.Readlink("/pkgs/owner/repo/current")
		Expect(err).ToNot(HaveOccurred())
		Expect(target).To(Equal("v2"))
	})

	It("errors when a non-symlink occupies current", func() {
		Expect(h.WriteFile("/pkgs/owner/repo/current", []byte("x"), 0o644)).To(Succeed())
		Expect(m.UpdateCurrentLink("/pkgs/owner/repo", "v1")).ToNot(Succeed())
	})
})
