// Package patcher applies source compatibility shims to the extracted
// libxml2 tree before it is built.
package patcher

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/frederic-klein/pylibxml2/internal/version"
)

// Replacement is a literal byte substitution.
type Replacement struct {
	Old []byte
	New []byte
}

// Shim is a removable source fix for one file.
type Shim struct {
	Name string
	// File is relative to the source root, slash-separated.
	File         string
	Replacements []Replacement
	// Since and Until bound the releases the shim applies to
	// (Since <= v < Until). A nil bound is open.
	Since *version.Triple
	Until *version.Triple
}

// PythonCallAPI replaces the PyEval_Call* functions removed in CPython 3.13
// with their PyObject_Call* equivalents in the Python bindings.
var PythonCallAPI = Shim{
	Name: "python3.13-call-api",
	File: "python/libxml.c",
	Replacements: []Replacement{
		{Old: []byte("PyEval_CallMethod"), New: []byte("PyObject_CallMethod")},
		{Old: []byte("PyEval_CallObject"), New: []byte("PyObject_CallObject")},
	},
}

// Default lists the shims the pipeline applies.
var Default = []Shim{PythonCallAPI}

// AppliesTo reports whether the shim is meant for release v.
func (s Shim) AppliesTo(v version.Triple) bool {
	if s.Since != nil && !v.AtLeast(*s.Since) {
		return false
	}
	if s.Until != nil && v.AtLeast(*s.Until) {
		return false
	}
	return true
}

// Transform returns content with every replacement applied. Replacement
// targets never contain their own search string, so applying Transform to
// its own output is a no-op.
func (s Shim) Transform(content []byte) []byte {
	for _, r := range s.Replacements {
		content = bytes.ReplaceAll(content, r.Old, r.New)
	}
	return content
}

// Apply rewrites the shim's file under srcDir. The file is only written
// when its content changes.
func (s Shim) Apply(srcDir string) (bool, error) {
	path := filepath.Join(srcDir, filepath.FromSlash(s.File))
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("patch %s: %w", s.Name, err)
	}
	original, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("patch %s: %w", s.Name, err)
	}

	patched := s.Transform(original)
	if bytes.Equal(original, patched) {
		return false, nil
	}

	if err := renameio.WriteFile(path, patched, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("patch %s: writing %s: %w", s.Name, s.File, err)
	}
	return true, nil
}
