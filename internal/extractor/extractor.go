// Package extractor unpacks release tarballs without letting any member
// land outside the destination directory.
package extractor

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

var (
	xzMagic   = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	gzipMagic = []byte{0x1F, 0x8B}
)

// ErrUnsafeEntry is matched by UnsafeEntryError.
var ErrUnsafeEntry = errors.New("unsafe archive member")

// UnsafeEntryError reports an archive member that was refused.
type UnsafeEntryError struct {
	Name   string
	Reason string
}

func (e *UnsafeEntryError) Error() string {
	return fmt.Sprintf("unsafe archive member %q: %s", e.Name, e.Reason)
}

func (e *UnsafeEntryError) Is(target error) bool {
	return target == ErrUnsafeEntry
}

// Extract unpacks the xz- or gzip-compressed tarball at archivePath into
// destDir and returns the distinct top-level names it contained.
//
// Absolute member names, names or link targets that leave destDir, and
// device or FIFO members are refused with an *UnsafeEntryError. All writes
// go through an os.Root, so symlinks created by earlier members cannot be
// used to escape either.
func Extract(archivePath, destDir string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	r, err := decompress(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", filepath.Base(archivePath), err)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", destDir, err)
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", destDir, err)
	}
	defer root.Close()

	tarReader := tar.NewReader(r)
	var topLevel []string
	seen := make(map[string]bool)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		rel, err := memberPath(header.Name)
		if err != nil {
			return nil, err
		}
		if rel == "." {
			continue
		}

		top := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
		if !seen[top] {
			seen[top] = true
			topLevel = append(topLevel, top)
		}

		if err := writeMember(root, tarReader, header, rel); err != nil {
			return nil, err
		}
	}

	return topLevel, nil
}

func decompress(br *bufio.Reader) (io.Reader, error) {
	magic, _ := br.Peek(len(xzMagic))
	switch {
	case bytes.HasPrefix(magic, xzMagic):
		return xz.NewReader(br)
	case bytes.HasPrefix(magic, gzipMagic):
		return gzip.NewReader(br)
	default:
		return nil, errors.New("unknown compression format")
	}
}

// memberPath validates an archive name and returns it as a clean local path.
func memberPath(name string) (string, error) {
	if name == "" {
		return "", &UnsafeEntryError{Name: name, Reason: "empty name"}
	}
	if path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", &UnsafeEntryError{Name: name, Reason: "absolute path"}
	}
	rel := filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(rel) {
		return "", &UnsafeEntryError{Name: name, Reason: "path leaves the destination"}
	}
	return rel, nil
}

func writeMember(root *os.Root, tr *tar.Reader, header *tar.Header, rel string) error {
	if dir := filepath.Dir(rel); dir != "." {
		if err := root.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err := root.MkdirAll(rel, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", rel, err)
		}

	case tar.TypeReg:
		f, err := root.OpenFile(rel, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode(header))
		if err != nil {
			return fmt.Errorf("creating %s: %w", rel, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", rel, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing %s: %w", rel, err)
		}

	case tar.TypeSymlink:
		if filepath.IsAbs(header.Linkname) || path.IsAbs(header.Linkname) {
			return &UnsafeEntryError{Name: header.Name, Reason: "absolute symlink target " + header.Linkname}
		}
		target := filepath.Join(filepath.Dir(rel), filepath.FromSlash(header.Linkname))
		if !filepath.IsLocal(target) {
			return &UnsafeEntryError{Name: header.Name, Reason: "symlink target " + header.Linkname + " leaves the destination"}
		}
		_ = root.Remove(rel)
		if err := root.Symlink(header.Linkname, rel); err != nil {
			return fmt.Errorf("linking %s: %w", rel, err)
		}

	case tar.TypeLink:
		target, err := memberPath(header.Linkname)
		if err != nil {
			return &UnsafeEntryError{Name: header.Name, Reason: "hard link target " + header.Linkname + " leaves the destination"}
		}
		_ = root.Remove(rel)
		if err := root.Link(target, rel); err != nil {
			return fmt.Errorf("linking %s: %w", rel, err)
		}

	case tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
		return &UnsafeEntryError{Name: header.Name, Reason: "special file"}

	default:
		// pax/gnu metadata records are consumed by archive/tar; anything
		// else carries no file content we need.
	}

	return nil
}

// fileMode drops setuid/setgid/sticky and group/other write bits, and makes
// sure the owner can read and write.
func fileMode(header *tar.Header) fs.FileMode {
	mode := fs.FileMode(header.Mode).Perm()
	return (mode | 0600) &^ 0022
}
