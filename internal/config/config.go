package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables understood by the pipeline.
const (
	EnvKeepWorkspace = "PYTHON_LIBXML2_DO_NOT_DELETE"
	EnvMirror        = "LIBXML2_MIRROR"
	EnvMake          = "MAKE"
	EnvAutoreconf    = "AUTORECONF"
	EnvMeson         = "MESON"
	EnvCC            = "CC"
	EnvPython        = "PYTHON"
)

// DefaultMirror is the upstream release host.
const DefaultMirror = "https://download.gnome.org/sources/libxml2/"

// Tools holds the external programs the pipeline shells out to.
type Tools struct {
	Make       string `yaml:"make"`
	Autoreconf string `yaml:"autoreconf"`
	Meson      string `yaml:"meson"`
	CC         string `yaml:"cc"`
	Python     string `yaml:"python"`
}

// Config is the resolved pipeline configuration.
type Config struct {
	Mirror        string   `yaml:"mirror"`
	KeepWorkspace bool     `yaml:"keep_workspace"`
	OutputDir     string   `yaml:"output_dir"`
	IncludeDirs   []string `yaml:"include_dirs"`
	Tools         Tools    `yaml:"tools"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mirror:    DefaultMirror,
		OutputDir: "lib",
		Tools: Tools{
			Make:       "make",
			Autoreconf: "autoreconf",
			Meson:      "meson",
			CC:         "cc",
			Python:     "python3",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any)
// and then with the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays the environment variables onto c. Empty values are
// ignored, except that any non-empty EnvKeepWorkspace value enables
// workspace retention.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv(EnvKeepWorkspace) != "" {
		c.KeepWorkspace = true
	}
	setIf(&c.Mirror, getenv(EnvMirror))
	setIf(&c.Tools.Make, getenv(EnvMake))
	setIf(&c.Tools.Autoreconf, getenv(EnvAutoreconf))
	setIf(&c.Tools.Meson, getenv(EnvMeson))
	setIf(&c.Tools.CC, getenv(EnvCC))
	setIf(&c.Tools.Python, getenv(EnvPython))
}

// Validate checks that the configuration can drive a build.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory is empty")
	}

	u, err := url.Parse(c.MirrorBase())
	if err != nil {
		return fmt.Errorf("invalid mirror %q: %w", c.Mirror, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return fmt.Errorf("invalid mirror %q: unsupported scheme %q", c.Mirror, u.Scheme)
	}

	tools := map[string]string{
		"make":       c.Tools.Make,
		"autoreconf": c.Tools.Autoreconf,
		"meson":      c.Tools.Meson,
		"cc":         c.Tools.CC,
		"python":     c.Tools.Python,
	}
	for name, v := range tools {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("tool %s is not set", name)
		}
	}
	return nil
}

// MirrorBase returns the mirror URL without trailing slashes.
func (c *Config) MirrorBase() string {
	return strings.TrimRight(c.Mirror, "/")
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
