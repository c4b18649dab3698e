package builder

import (
	"github.com/apex/log"

	"github.com/frederic-klein/pylibxml2/internal/probe"
	"github.com/frederic-klein/pylibxml2/internal/runner"
)

// Autotools builds releases before 2.13.0.
type Autotools struct {
	runner     runner.Runner
	autoreconf string
	make       string
	log        log.Interface
}

// NewAutotools creates an autotools builder using the given binaries.
func NewAutotools(r runner.Runner, autoreconf, makeBin string, logger log.Interface) *Autotools {
	return &Autotools{runner: r, autoreconf: autoreconf, make: makeBin, log: logger}
}

func (a *Autotools) Name() string { return "autotools" }

// ConfigureArgs maps features to --with-<f>/--without-<f> and always
// enables the Python bindings.
func ConfigureArgs(features []probe.Feature) []string {
	args := make([]string, 0, len(features)+1)
	for _, f := range features {
		if f.Enabled {
			args = append(args, "--with-"+f.Name)
		} else {
			args = append(args, "--without-"+f.Name)
		}
	}
	return append(args, "--with-python")
}

// Build runs autoreconf, configure, make and make install inside the
// source directory.
func (a *Autotools) Build(layout Layout, features []probe.Feature) error {
	cmds := []runner.Command{
		{Name: a.autoreconf, Args: []string{"-f", "-i"}},
		{
			Name: "./configure",
			Args: ConfigureArgs(features),
			Env:  map[string]string{"LDFLAGS": "-Wl,--no-as-needed"},
		},
		{Name: a.make},
		{Name: a.make, Args: []string{"install", "DESTDIR=" + layout.destDir()}},
	}

	a.log.WithField("src", layout.Src).Info("building with autotools")
	return withinDir(layout.Src, func() error {
		return runAll(a.runner, a.log, a.Name(), cmds)
	})
}
