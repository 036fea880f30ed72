// Package extract unpacks a downloaded archive into its final version
// directory, using commons/files Untar/Unzip for the formats it covers
// plus ulikunitz/xz and the standard library's bzip2 reader for the rest,
// and adds a sibling-temp-dir-then-flatten-single-subdir relocation step
// so an archive wrapping its contents in one top-level directory still
// lands flat in the version directory.
package extract

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/commons/files"
	"github.com/ulikunitz/xz"

	"github.com/chaifeng/ghri-go/pkg/host"
	"github.com/chaifeng/ghri-go/pkg/utils"
)

// HostExtractor adapts ToDir to pkg/install's Extractor interface. Task is
// optional; when set, extraction is logged onto it.
type HostExtractor struct {
	Host host.Host
	Task *task.Task
}

// Extract unpacks archivePath into targetDir via ToDir, then logs the
// extraction onto e.Task if one is set.
func (e HostExtractor) Extract(archivePath, targetDir string) error {
	if err := ToDir(e.Host, archivePath, targetDir); err != nil {
		return err
	}
	entries, err := e.Host.ReadDir(targetDir)
	fileCount := 0
	if err == nil {
		fileCount = len(entries)
	}
	utils.LogExtraction(e.Task, archivePath, targetDir, fileCount)
	return nil
}

// ToDir extracts archivePath into targetDir, which must already exist.
// Extraction lands in a sibling temp directory first
// (targetDir + "_temp_extract"); the temp directory's contents are then
// moved into targetDir, flattening a single top-level subdirectory (the
// canonical GitHub source-tarball layout) if that's all the archive
// contains. The temp directory is removed once its contents are relocated,
// whether that succeeds or fails.
func ToDir(h host.Host, archivePath, targetDir string) error {
	tempDir := targetDir + "_temp_extract"
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return fmt.Errorf("creating extraction temp dir %s: %w", tempDir, err)
	}
	defer os.RemoveAll(tempDir)

	if err := extractInto(archivePath, tempDir); err != nil {
		return fmt.Errorf("extracting %s: %w", archivePath, err)
	}

	return Relocate(h, tempDir, targetDir)
}

func extractInto(archivePath, dir string) error {
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return files.Untar(archivePath, dir)
	case strings.HasSuffix(lower, ".zip"):
		return files.Unzip(archivePath, dir)
	case strings.HasSuffix(lower, ".tar.xz"):
		return untarWith(archivePath, dir, xz.NewReader)
	case strings.HasSuffix(lower, ".tar.bz2"):
		return untarWith(archivePath, dir, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	default:
		return fmt.Errorf("unsupported archive type: %s", archivePath)
	}
}

// untarWith streams archivePath through decompress before handing the
// result to archive/tar, for the two formats commons/files doesn't cover.
func untarWith(archivePath, dir string, decompress func(io.Reader) (io.Reader, error)) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	dr, err := decompress(f)
	if err != nil {
		return fmt.Errorf("initializing decompressor: %w", err)
	}

	tr := tar.NewReader(dr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}

		target := filepath.Join(dir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

// Relocate moves tempDir's contents into targetDir (which must already
// exist): if tempDir contains exactly one subdirectory and nothing else,
// that subdirectory's children are moved up one level; otherwise every
// entry in tempDir is moved directly. An archive that extracted to nothing
// is an error.
func Relocate(h host.Host, tempDir, targetDir string) error {
	entries, err := h.ReadDir(tempDir)
	if err != nil {
		return fmt.Errorf("reading extraction temp dir %s: %w", tempDir, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("archive extracted no files")
	}

	source := tempDir
	if len(entries) == 1 && entries[0].IsDir() {
		source = filepath.Join(tempDir, entries[0].Name())
		entries, err = h.ReadDir(source)
		if err != nil {
			return fmt.Errorf("reading extracted subdirectory %s: %w", source, err)
		}
	}

	for _, e := range entries {
		from := filepath.Join(source, e.Name())
		to := filepath.Join(targetDir, e.Name())
		if err := h.Rename(from, to); err != nil {
			return fmt.Errorf("moving %s to %s: %w", from, to, err)
		}
	}
	return nil
}
