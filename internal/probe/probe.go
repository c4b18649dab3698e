// Package probe locates the installed libxml2 headers and asks the C
// preprocessor which version and features they were configured with.
package probe

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"

	"github.com/frederic-klein/pylibxml2/internal/runner"
)

// MarkerHeader is looked up under each candidate include root.
const MarkerHeader = "libxml2/libxml/tree.h"

const headerName = "libxml2-config.h"

//go:embed libxml2-config.h
var configHeader []byte

// ErrHeadersNotFound is matched by HeadersNotFoundError.
var ErrHeadersNotFound = errors.New("libxml2 headers not found")

// HeadersNotFoundError lists the directories that were searched.
type HeadersNotFoundError struct {
	Searched []string
}

func (e *HeadersNotFoundError) Error() string {
	return fmt.Sprintf("libxml2 headers not found: no %s under any of [%s]; add the install prefix to include_dirs",
		MarkerHeader, strings.Join(e.Searched, ", "))
}

func (e *HeadersNotFoundError) Is(target error) bool {
	return target == ErrHeadersNotFound
}

// DefaultSearchPath returns the include roots checked in priority order.
// home is appended last when non-empty.
func DefaultSearchPath(home string) []string {
	dirs := []string{
		"/usr/include",
		"/usr/local/include",
		"/opt/include",
		filepath.Join(string(filepath.Separator), "include"),
	}
	if home != "" {
		dirs = append(dirs, home)
	}
	return dirs
}

// FindIncludeRoot returns "<dir>/libxml2" for the first candidate holding a
// readable marker header.
func FindIncludeRoot(candidates []string) (string, error) {
	for _, dir := range candidates {
		if readable(filepath.Join(dir, MarkerHeader)) {
			return filepath.Join(dir, "libxml2"), nil
		}
	}
	return "", &HeadersNotFoundError{Searched: append([]string(nil), candidates...)}
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	return err == nil && !info.IsDir()
}

// Prober runs the preprocessor over the embedded config header.
type Prober struct {
	runner runner.Runner
	cc     string
	log    log.Interface
}

// NewProber creates a prober that invokes cc through r.
func NewProber(r runner.Runner, cc string, logger log.Interface) *Prober {
	return &Prober{runner: r, cc: cc, log: logger}
}

// Probe preprocesses the config header against includeRoot and parses the
// result. The header is written to scratchDir first.
func (p *Prober) Probe(includeRoot, scratchDir string) (*BuildConfig, error) {
	header := filepath.Join(scratchDir, headerName)
	if err := os.WriteFile(header, configHeader, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", headerName, err)
	}

	res, err := p.runner.Run(runner.Command{
		Name: p.cc,
		Args: []string{"-w", "-I", includeRoot, "-E", "-ansi", "-P", header},
	})
	if err != nil {
		return nil, fmt.Errorf("preprocessing %s with %s: %w", headerName, p.cc, err)
	}

	cfg, err := ParseBuildConfig(res.Stdout)
	if err != nil {
		return nil, err
	}

	p.log.WithFields(log.Fields{
		"include": includeRoot,
		"version": cfg.Version,
	}).Debug("probed libxml2 configuration")
	return cfg, nil
}
