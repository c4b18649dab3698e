// Package runnertest provides a recording Runner for tests.
package runnertest

import (
	"os"

	"github.com/frederic-klein/pylibxml2/internal/runner"
)

// Call is one recorded invocation.
type Call struct {
	runner.Command
	// Dir is the process working directory at the time of the call.
	Dir string
}

// Fake records every command and answers with Handler.
// A nil Handler makes every command succeed with empty output.
type Fake struct {
	Calls   []Call
	Handler func(cmd runner.Command) (*runner.Result, error)
}

// Run implements runner.Runner.
func (f *Fake) Run(cmd runner.Command) (*runner.Result, error) {
	wd, _ := os.Getwd()
	f.Calls = append(f.Calls, Call{Command: cmd, Dir: wd})
	if f.Handler == nil {
		return &runner.Result{}, nil
	}
	return f.Handler(cmd)
}

// Names returns the tool names in call order.
func (f *Fake) Names() []string {
	names := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		names[i] = c.Name
	}
	return names
}

// Ran reports whether a command with the given name was invoked.
func (f *Fake) Ran(name string) bool {
	for _, c := range f.Calls {
		if c.Name == name {
			return true
		}
	}
	return false
}
