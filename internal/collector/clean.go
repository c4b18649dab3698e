package collector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// keepFile survives Clean so the output directory stays in version control.
const keepFile = ".gitignore"

// Clean empties outDir except for its top-level .gitignore and returns the
// names it removed. A missing outDir is not an error.
func Clean(outDir string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", outDir, err)
	}

	var removed []string
	for _, e := range entries {
		if e.Name() == keepFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(outDir, e.Name())); err != nil {
			return removed, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}
