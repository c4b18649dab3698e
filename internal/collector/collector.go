// Package collector harvests the built Python bindings from the install
// root into the packaging directory.
package collector

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/google/renameio"

	"github.com/frederic-klein/pylibxml2/internal/runner"
)

// Extensions are the file suffixes that make up the bindings.
var Extensions = []string{".so", ".py"}

const sysconfigScript = `import sysconfig
print(sysconfig.get_path("purelib"))
print(sysconfig.get_path("platlib"))`

// LibDirs are the interpreter's library install paths, absolute as the
// interpreter reports them.
type LibDirs struct {
	Purelib string
	Platlib string
}

// Distinct returns the directories without duplicates, purelib first.
func (d LibDirs) Distinct() []string {
	if d.Platlib == "" || d.Platlib == d.Purelib {
		return []string{d.Purelib}
	}
	return []string{d.Purelib, d.Platlib}
}

// SitePackages asks python for its purelib and platlib paths.
func SitePackages(r runner.Runner, python string) (LibDirs, error) {
	res, err := r.Run(runner.Command{Name: python, Args: []string{"-c", sysconfigScript}})
	if err != nil {
		return LibDirs{}, fmt.Errorf("querying site-packages: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(string(res.Stdout)), "\n")
	if len(lines) != 2 || strings.TrimSpace(lines[0]) == "" || strings.TrimSpace(lines[1]) == "" {
		return LibDirs{}, fmt.Errorf("querying site-packages: unexpected output %q", res.Stdout)
	}
	return LibDirs{Purelib: strings.TrimSpace(lines[0]), Platlib: strings.TrimSpace(lines[1])}, nil
}

// Artifact is one relocated file.
type Artifact struct {
	// Source is the path the file had under the install root.
	Source string
	// Path is its location in the output directory.
	Path string
	Name string
}

// ArtifactSet lists the relocated files in the order they were moved.
type ArtifactSet []Artifact

// Names returns the artifact file names.
func (s ArtifactSet) Names() []string {
	names := make([]string, len(s))
	for i, a := range s {
		names[i] = a.Name
	}
	return names
}

// Collect moves every .so and .py file found directly inside
// installRoot/<dir> for each of dirs into outDir. Directories that do not
// exist are skipped, but finding nothing at all is an error. A symlink is
// collected as a regular file holding its target's content. If a move
// fails, the files already moved are removed again, and so is outDir when
// Collect created it.
func Collect(installRoot string, dirs LibDirs, outDir string) (set ArtifactSet, err error) {
	var sources []source
	for _, dir := range dirs.Distinct() {
		root := filepath.Join(installRoot, dir)
		entries, err := os.ReadDir(root)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", root, err)
		}
		for _, e := range entries {
			if !wanted(e.Name()) {
				continue
			}
			path := filepath.Join(root, e.Name())
			switch {
			case e.Type().IsRegular():
				sources = append(sources, source{path: path})
			case e.Type()&fs.ModeSymlink != 0:
				info, err := os.Stat(path)
				if err != nil {
					return nil, fmt.Errorf("resolving %s: %w", path, err)
				}
				if info.Mode().IsRegular() {
					sources = append(sources, source{path: path, link: true})
				}
			}
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no %s files under %s for %v", strings.Join(Extensions, "/"), installRoot, dirs.Distinct())
	}

	_, statErr := os.Stat(outDir)
	created := errors.Is(statErr, os.ErrNotExist)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", outDir, err)
	}

	defer func() {
		if err == nil {
			return
		}
		set.Remove()
		if created {
			os.Remove(outDir)
		}
		set = nil
	}()

	for _, src := range sources {
		name := filepath.Base(src.path)
		dest := filepath.Join(outDir, name)
		mv := move
		if src.link {
			mv = moveContent
		}
		if err := mv(src.path, dest); err != nil {
			return set, fmt.Errorf("moving %s: %w", name, err)
		}
		set = append(set, Artifact{Source: src.path, Path: dest, Name: name})
	}
	return set, nil
}

// Remove deletes the relocated files from the output directory.
func (s ArtifactSet) Remove() error {
	var errs []error
	for _, a := range s {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type source struct {
	path string
	// link marks a symlink whose target content is collected.
	link bool
}

func wanted(name string) bool {
	return slices.ContainsFunc(Extensions, func(ext string) bool {
		return strings.HasSuffix(name, ext)
	})
}

// rename is replaced in tests to make a move fail.
var rename = os.Rename

// move renames src to dest, copying across filesystems.
func move(src, dest string) error {
	err := rename(src, dest)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

// moveContent copies what src points to into dest and removes the link.
func moveContent(src, dest string) error {
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	t, err := renameio.TempFile(filepath.Dir(dest), dest)
	if err != nil {
		return err
	}
	defer t.Cleanup()

	if _, err := io.Copy(t, in); err != nil {
		return err
	}
	if err := t.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}
