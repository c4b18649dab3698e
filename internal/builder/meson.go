package builder

import (
	"fmt"
	"os"

	"github.com/apex/log"

	"github.com/frederic-klein/pylibxml2/internal/probe"
	"github.com/frederic-klein/pylibxml2/internal/runner"
)

// Meson builds releases from 2.13.0 on.
type Meson struct {
	runner runner.Runner
	meson  string
	log    log.Interface
}

// NewMeson creates a meson builder using the given binary.
func NewMeson(r runner.Runner, meson string, logger log.Interface) *Meson {
	return &Meson{runner: r, meson: meson, log: logger}
}

func (m *Meson) Name() string { return "meson" }

// SetupOptions maps features to -D<f>=true|false and always enables the
// Python bindings.
func SetupOptions(features []probe.Feature) []string {
	opts := make([]string, 0, len(features)+1)
	for _, f := range features {
		opts = append(opts, fmt.Sprintf("-D%s=%t", f.Name, f.Enabled))
	}
	return append(opts, "-Dpython=true")
}

// Build configures Layout.Build from Layout.Src, then compiles and
// installs from inside the build directory.
func (m *Meson) Build(layout Layout, features []probe.Feature) error {
	setup := runner.Command{
		Name: m.meson,
		Args: append(append([]string{"setup"}, SetupOptions(features)...), layout.Build, layout.Src),
	}

	m.log.WithField("src", layout.Src).Info("building with meson")
	if err := os.MkdirAll(layout.Build, 0755); err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}
	if err := runAll(m.runner, m.log, m.Name(), []runner.Command{setup}); err != nil {
		return err
	}

	env := map[string]string{"DESTDIR": layout.destDir()}
	return withinDir(layout.Build, func() error {
		return runAll(m.runner, m.log, m.Name(), []runner.Command{
			{Name: m.meson, Args: []string{"compile"}, Env: env},
			{Name: m.meson, Args: []string{"install"}, Env: env},
		})
	})
}
