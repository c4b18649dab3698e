// Package builder configures, compiles and installs libxml2 with the
// build system the release ships.
package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"

	"github.com/frederic-klein/pylibxml2/internal/config"
	"github.com/frederic-klein/pylibxml2/internal/probe"
	"github.com/frederic-klein/pylibxml2/internal/runner"
	"github.com/frederic-klein/pylibxml2/internal/version"
)

// Layout holds the workspace directories a build uses.
type Layout struct {
	Src     string
	Build   string
	Install string
}

// destDir returns the install root with a trailing separator, the form
// both make and meson expect for DESTDIR.
func (l Layout) destDir() string {
	return filepath.Clean(l.Install) + string(filepath.Separator)
}

// Builder builds the source in Layout.Src and installs it under
// Layout.Install.
type Builder interface {
	Name() string
	Build(layout Layout, features []probe.Feature) error
}

// Select returns the builder for release v: Meson from 2.13.0 on,
// Autotools before.
func Select(v version.Triple, r runner.Runner, tools config.Tools, logger log.Interface) Builder {
	if v.UsesMeson() {
		return NewMeson(r, tools.Meson, logger)
	}
	return NewAutotools(r, tools.Autoreconf, tools.Make, logger)
}

// withinDir runs fn with dir as the process working directory and
// restores the previous one on return, whatever fn does.
func withinDir(dir string, fn func() error) (err error) {
	prev, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("entering %s: %w", dir, err)
	}
	defer func() {
		if cerr := os.Chdir(prev); cerr != nil && err == nil {
			err = fmt.Errorf("restoring working directory: %w", cerr)
		}
	}()
	return fn()
}

// runAll runs cmds in order and stops at the first failure.
func runAll(r runner.Runner, logger log.Interface, step string, cmds []runner.Command) error {
	for _, cmd := range cmds {
		logger.WithField("step", step).Debug(cmd.String())
		if _, err := r.Run(cmd); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
	}
	return nil
}
