package probe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	configTable   = "config"
	versionKey    = "version"
	featurePrefix = "with_"
	scratchPrefix = "_"
)

// Option is one key of the probed configuration, in document order.
type Option struct {
	Name  string
	Value any
}

// Feature is a boolean build toggle, named without its "with_" prefix.
type Feature struct {
	Name    string
	Enabled bool
}

// BuildConfig is the build-time configuration of the installed libxml2.
type BuildConfig struct {
	Version string
	Options []Option
}

// Get returns the value of the named option.
func (c *BuildConfig) Get(name string) (any, bool) {
	for _, o := range c.Options {
		if o.Name == name {
			return o.Value, true
		}
	}
	return nil, false
}

// Features returns the boolean toggles in document order.
func (c *BuildConfig) Features() []Feature {
	var out []Feature
	for _, o := range c.Options {
		if !strings.HasPrefix(o.Name, featurePrefix) {
			continue
		}
		enabled, _ := o.Value.(bool)
		out = append(out, Feature{Name: strings.TrimPrefix(o.Name, featurePrefix), Enabled: enabled})
	}
	return out
}

// ParseBuildConfig parses the preprocessed config document.
func ParseBuildConfig(data []byte) (*BuildConfig, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("parsing probe output: %w", err)
	}

	table, ok := raw[configTable].(map[string]any)
	if !ok {
		return nil, errors.New("parsing probe output: no [config] table")
	}

	cfg := &BuildConfig{}
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != configTable {
			continue
		}
		name := key[1]
		if strings.HasPrefix(name, scratchPrefix) {
			continue
		}
		value := table[name]
		if strings.HasPrefix(name, featurePrefix) {
			if _, ok := value.(bool); !ok {
				return nil, fmt.Errorf("parsing probe output: %s = %v is not a boolean", name, value)
			}
		}
		cfg.Options = append(cfg.Options, Option{Name: name, Value: value})
	}

	v, ok := table[versionKey]
	if !ok {
		return nil, errors.New("parsing probe output: no version key")
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, fmt.Errorf("parsing probe output: version = %v is not a version string", v)
	}
	cfg.Version = s

	return cfg, nil
}
