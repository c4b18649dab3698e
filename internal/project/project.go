package project

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

type pyproject struct {
	Project struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"project"`
}

// ReadVersion returns [project].version from a pyproject.toml file.
func ReadVersion(path string) (string, error) {
	var p pyproject
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if p.Project.Version == "" {
		return "", errors.New(path + ": [project] has no version")
	}
	return p.Project.Version, nil
}
