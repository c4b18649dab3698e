package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
)

const prefix = "python-libxml2."

// Workspace is the scratch tree of one pipeline run.
//
//	<root>/src      extracted upstream source
//	<root>/build    meson out-of-tree build directory
//	<root>/install  DESTDIR for the install step
type Workspace struct {
	Root   string
	retain bool
	log    log.Interface
}

// NewIn creates a fresh workspace under parent, or under the system temp
// directory when parent is empty. When retain is set, Release leaves it on
// disk.
func NewIn(parent string, retain bool, logger log.Interface) (*Workspace, error) {
	root, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	logger.WithField("dir", root).Debug("workspace created")
	return &Workspace{Root: root, retain: retain, log: logger}, nil
}

func (w *Workspace) Src() string     { return filepath.Join(w.Root, "src") }
func (w *Workspace) Build() string   { return filepath.Join(w.Root, "build") }
func (w *Workspace) Install() string { return filepath.Join(w.Root, "install") }

// Retained reports whether Release keeps the tree.
func (w *Workspace) Retained() bool { return w.retain }

// Release removes the workspace unless it is retained.
func (w *Workspace) Release() error {
	if w.retain {
		w.log.WithField("dir", w.Root).Info("keeping workspace")
		return nil
	}
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("removing workspace %s: %w", w.Root, err)
	}
	w.log.WithField("dir", w.Root).Debug("workspace removed")
	return nil
}
