// Package source puts the upstream libxml2 release into a workspace.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/apex/log"

	"github.com/frederic-klein/pylibxml2/internal/extractor"
	"github.com/frederic-klein/pylibxml2/internal/version"
	"github.com/frederic-klein/pylibxml2/internal/workspace"
)

// Library is the upstream project name used in archive and directory names.
const Library = "libxml2"

// ArchiveName returns "libxml2-<version>.tar.xz".
func ArchiveName(v version.Triple) string {
	return fmt.Sprintf("%s-%s.tar.xz", Library, v)
}

// ArchiveURL returns <mirror>/<major>.<minor>/libxml2-<version>.tar.xz.
func ArchiveURL(mirror string, v version.Triple) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(mirror, "/"), v.Series(), ArchiveName(v))
}

// ErrDownload marks failures to retrieve the archive, as opposed to
// failures to unpack it.
var ErrDownload = errors.New("download failed")

// Retriever downloads a URL to a local path.
type Retriever interface {
	Fetch(url, destPath string) error
}

// Fetcher downloads, unpacks and renames the release source.
type Fetcher struct {
	mirror    string
	retriever Retriever
	log       log.Interface
}

// NewFetcher creates a fetcher reading from mirror.
func NewFetcher(mirror string, retriever Retriever, logger log.Interface) *Fetcher {
	return &Fetcher{mirror: mirror, retriever: retriever, log: logger}
}

// Fetch populates ws.Src() with the release source for v.
func (f *Fetcher) Fetch(v version.Triple, ws *workspace.Workspace) error {
	url := ArchiveURL(f.mirror, v)
	archive := filepath.Join(ws.Root, ArchiveName(v))

	f.log.WithField("url", url).Info("downloading")
	if err := f.retriever.Fetch(url, archive); err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}

	top, err := extractor.Extract(archive, ws.Root)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", filepath.Base(archive), err)
	}

	if err := os.Remove(archive); err != nil {
		return fmt.Errorf("removing archive: %w", err)
	}

	dirName := fmt.Sprintf("%s-%s", Library, v)
	extracted := filepath.Join(ws.Root, dirName)
	info, err := os.Stat(extracted)
	if err != nil || !info.IsDir() || !slices.Contains(top, dirName) {
		return fmt.Errorf("archive %s has no %s directory (found %v)", ArchiveName(v), dirName, top)
	}

	if err := os.Rename(extracted, ws.Src()); err != nil {
		return fmt.Errorf("renaming %s to src: %w", dirName, err)
	}

	f.log.WithField("dir", ws.Src()).Debug("source ready")
	return nil
}
