package pipeline

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by Run matches exactly one of them
// with errors.Is, and also wraps the underlying cause.
var (
	// ErrEnvironment covers missing headers, missing tools and
	// unreachable mirrors.
	ErrEnvironment = errors.New("environment error")
	// ErrConsistency covers a requested version that does not match the
	// installed headers.
	ErrConsistency = errors.New("consistency error")
	// ErrBuild covers build tools exiting non-zero.
	ErrBuild = errors.New("build error")
	// ErrIO covers extraction, patching and relocation failures.
	ErrIO = errors.New("i/o error")
)

// VersionMismatchError reports a requested version that differs from the
// version of the installed headers.
type VersionMismatchError struct {
	Requested   string
	Probed      string
	IncludeRoot string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("requested libxml2 %s but the headers in %s are version %s; install matching headers or change the requested version",
		e.Requested, e.IncludeRoot, e.Probed)
}

func classify(class, err error) error {
	return fmt.Errorf("%w: %w", class, err)
}
