// Package runner runs external build tools synchronously.
//
// Every tool invocation in the pipeline (the C preprocessor, autoreconf,
// configure, make, meson, the Python interpreter) goes through a Runner so
// that orchestration code never deals with process details and tests can
// substitute a recording fake.
package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/magefile/mage/sh"
)

// ErrToolNotFound is returned when a command could not be started at all.
var ErrToolNotFound = errors.New("tool not found")

// Command describes one tool invocation. It runs in the current working
// directory of the process; callers that need another directory scope it
// themselves.
type Command struct {
	Name string
	Args []string
	// Env is added on top of the inherited environment.
	Env map[string]string
}

// String renders the command line, prefixed by its environment overrides.
func (c Command) String() string {
	var b strings.Builder
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s ", k, c.Env[k])
	}
	b.WriteString(c.Name)
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	return b.String()
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes a command and waits for it to finish.
type Runner interface {
	Run(cmd Command) (*Result, error)
}

// ExitError reports a tool that ran and exited non-zero.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.Code)
	if tail := lastLines(e.Stderr, 20); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Exec runs commands on the host.
type Exec struct {
	log log.Interface
	// Stream copies tool output to the debug log while the tool runs.
	stream bool
}

// NewExec creates a host runner. When stream is set, tool output is
// forwarded line by line to logger at debug level.
func NewExec(logger log.Interface, stream bool) *Exec {
	return &Exec{log: logger, stream: stream}
}

// Run executes cmd and returns its captured output.
func (r *Exec) Run(cmd Command) (*Result, error) {
	var stdout, stderr bytes.Buffer
	var outW, errW io.Writer = &stdout, &stderr
	if r.stream {
		lw := newLogWriter(r.log)
		defer lw.Flush()
		outW = io.MultiWriter(&stdout, lw)
		errW = io.MultiWriter(&stderr, lw)
	}

	r.log.WithField("cmd", cmd.String()).Info("running")

	err := command(cmd, outW, errW).Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if !sh.CmdRan(err) {
		return res, fmt.Errorf("%w: %s: %v", ErrToolNotFound, cmd.Name, err)
	}
	return res, &ExitError{
		Tool:   cmd.Name,
		Code:   sh.ExitStatus(err),
		Stderr: stderr.String(),
		Err:    err,
	}
}

// command builds the process for cmd. Name and arguments are passed
// verbatim; unlike sh.Exec, "$" is never expanded.
func command(cmd Command, stdout, stderr io.Writer) *exec.Cmd {
	c := exec.Command(cmd.Name, slices.Clone(cmd.Args)...)
	c.Env = os.Environ()
	for k, v := range cmd.Env {
		c.Env = append(c.Env, k+"="+v)
	}
	c.Stdout = stdout
	c.Stderr = stderr
	return c
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
