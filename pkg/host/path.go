package host

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// splitComponents normalizes a path lexically and splits it into components,
// dropping ".", empty segments, and the volume/root marker.
func splitComponents(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(clean, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		out = append(out, p)
	}
	return out
}

// IsPathUnder reports whether target is prefix or a descendant of prefix,
// comparing normalized path components left-to-right rather than raw string
// prefixes. This is the defense against "/foo" matching "/foo-extra": both
// are compared as component slices ({"foo"} vs {"foo-extra"}), which are
// unequal at index 0.
//
// When both paths are absolute, each is resolved through EvalSymlinks where
// possible (falling back to the lexical form on error, e.g. path does not
// exist yet) before the component comparison.
func IsPathUnder(h Host, target, prefix string) bool {
	t := resolveBestEffort(h, target)
	p := resolveBestEffort(h, prefix)

	tComp := splitComponents(t)
	pComp := splitComponents(p)
	if len(pComp) > len(tComp) {
		return false
	}
	for i, comp := range pComp {
		if tComp[i] != comp {
			return false
		}
	}
	return true
}

func resolveBestEffort(h Host, path string) string {
	if !filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if resolved, err := evalSymlinks(h, path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// evalSymlinks resolves symlinks component by component using the Host
// abstraction, tolerating a final component that does not exist (so a
// not-yet-created destination can still be compared against its prefix).
func evalSymlinks(h Host, path string) (string, error) {
	comps := splitComponents(path)
	cur := "/"
	if vol := filepath.VolumeName(path); vol != "" {
		cur = vol + string(filepath.Separator)
	}
	for i, c := range comps {
		cur = filepath.Join(cur, c)
		info, err := h.Lstat(cur)
		if err != nil {
			if i == len(comps)-1 {
				return cur, nil
			}
			return "", err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			target, err := h.Readlink(cur)
			if err != nil {
				return "", err
			}
			if filepath.IsAbs(target) {
				cur = filepath.Clean(target)
			} else {
				cur = filepath.Clean(filepath.Join(filepath.Dir(cur), target))
			}
		}
	}
	return cur, nil
}

// RelativePathFromDir expresses target relative to base, for use when
// persisting link destinations relative to a package directory or when
// deriving a portable symlink value. Returns target unchanged if no
// relative form exists (different Windows volumes, for example).
func RelativePathFromDir(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}

// JoinAbsoluteAware mimics Rust's PathBuf::join: if the second argument is
// already absolute, it replaces the first argument entirely instead of being
// appended to it. filepath.Join has no such special case (it lexically
// concatenates and cleans both arguments), so call sites that port Rust
// "dir.join(maybe_absolute)" logic must go through this helper instead.
func JoinAbsoluteAware(base, elem string) string {
	if filepath.IsAbs(elem) {
		return filepath.Clean(elem)
	}
	return filepath.Join(base, elem)
}
