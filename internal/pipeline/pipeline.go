// Package pipeline sequences one build of the libxml2 Python bindings:
// probe, version check, fetch, patch, build and collect.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/apex/log"

	"github.com/frederic-klein/pylibxml2/internal/builder"
	"github.com/frederic-klein/pylibxml2/internal/collector"
	"github.com/frederic-klein/pylibxml2/internal/config"
	"github.com/frederic-klein/pylibxml2/internal/patcher"
	"github.com/frederic-klein/pylibxml2/internal/probe"
	"github.com/frederic-klein/pylibxml2/internal/runner"
	"github.com/frederic-klein/pylibxml2/internal/source"
	"github.com/frederic-klein/pylibxml2/internal/version"
	"github.com/frederic-klein/pylibxml2/internal/workspace"
)

// Pipeline holds the collaborators of a build.
type Pipeline struct {
	cfg        *config.Config
	runner     runner.Runner
	retriever  source.Retriever
	log        log.Interface
	searchPath []string
	shims      []patcher.Shim
	// tempDir is the parent of the workspace; empty means os.TempDir.
	tempDir string
	release func(*workspace.Workspace) error
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithSearchPath replaces the include roots searched for headers.
func WithSearchPath(dirs []string) Option {
	return func(p *Pipeline) { p.searchPath = dirs }
}

// WithShims replaces the source shims applied before building.
func WithShims(shims []patcher.Shim) Option {
	return func(p *Pipeline) { p.shims = shims }
}

// WithTempDir creates the workspace under dir.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// New creates a pipeline. The header search path defaults to the
// configured include dirs followed by probe.DefaultSearchPath(home).
func New(cfg *config.Config, r runner.Runner, retriever source.Retriever, home string, logger log.Interface, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		runner:     r,
		retriever:  retriever,
		log:        logger,
		searchPath: SearchPath(cfg, home),
		shims:      patcher.Default,
		release:    (*workspace.Workspace).Release,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SearchPath returns cfg.IncludeDirs followed by the default roots.
func SearchPath(cfg *config.Config, home string) []string {
	dirs := append([]string(nil), cfg.IncludeDirs...)
	return append(dirs, probe.DefaultSearchPath(home)...)
}

// Inspect locates the headers and probes their configuration. The probe
// header is written into scratch.
func (p *Pipeline) Inspect(scratch string) (string, *probe.BuildConfig, error) {
	includeRoot, err := probe.FindIncludeRoot(p.searchPath)
	if err != nil {
		return "", nil, classify(ErrEnvironment, err)
	}
	p.log.WithField("include", includeRoot).Info("found libxml2 headers")

	prober := probe.NewProber(p.runner, p.cfg.Tools.CC, p.log)
	bc, err := prober.Probe(includeRoot, scratch)
	if err != nil {
		return includeRoot, nil, classify(ErrEnvironment, err)
	}
	return includeRoot, bc, nil
}

// Run builds release requested and moves the bindings into the configured
// output directory. The workspace is released on every path unless the
// configuration retains it. A run that fails leaves no artifacts behind:
// if the workspace cannot be removed after a successful collection, the
// collected files are removed again and an ErrIO error is returned.
func (p *Pipeline) Run(requested string) (set collector.ArtifactSet, err error) {
	v, err := version.Parse(requested)
	if err != nil {
		return nil, classify(ErrEnvironment, fmt.Errorf("requested version: %w", err))
	}

	ws, err := workspace.NewIn(p.tempDir, p.cfg.KeepWorkspace, p.log)
	if err != nil {
		return nil, classify(ErrIO, err)
	}
	defer func() {
		rerr := p.release(ws)
		if rerr == nil {
			return
		}
		if err != nil {
			p.log.WithError(rerr).Error("releasing workspace")
			return
		}
		if cerr := set.Remove(); cerr != nil {
			p.log.WithError(cerr).Error("removing collected files")
		}
		set = nil
		err = classify(ErrIO, rerr)
	}()

	includeRoot, bc, err := p.Inspect(ws.Root)
	if err != nil {
		return nil, err
	}

	if requested != bc.Version {
		return nil, classify(ErrConsistency, &VersionMismatchError{
			Requested:   requested,
			Probed:      bc.Version,
			IncludeRoot: includeRoot,
		})
	}

	fetcher := source.NewFetcher(p.cfg.Mirror, p.retriever, p.log)
	if err := fetcher.Fetch(v, ws); err != nil {
		if errors.Is(err, source.ErrDownload) {
			return nil, classify(ErrEnvironment, err)
		}
		return nil, classify(ErrIO, err)
	}

	if err := p.patch(v, ws.Src()); err != nil {
		return nil, classify(ErrIO, err)
	}

	b := builder.Select(v, p.runner, p.cfg.Tools, p.log)
	layout := builder.Layout{Src: ws.Src(), Build: ws.Build(), Install: ws.Install()}
	if err := b.Build(layout, bc.Features()); err != nil {
		if errors.Is(err, runner.ErrToolNotFound) {
			return nil, classify(ErrEnvironment, err)
		}
		return nil, classify(ErrBuild, err)
	}

	dirs, err := collector.SitePackages(p.runner, p.cfg.Tools.Python)
	if err != nil {
		return nil, classify(ErrEnvironment, err)
	}

	set, err = collector.Collect(ws.Install(), dirs, p.cfg.OutputDir)
	if err != nil {
		return nil, classify(ErrIO, err)
	}

	p.log.WithFields(log.Fields{
		"version":   v.String(),
		"builder":   b.Name(),
		"artifacts": len(set),
		"output":    p.cfg.OutputDir,
	}).Info("build complete")
	return set, nil
}

func (p *Pipeline) patch(v version.Triple, srcDir string) error {
	for _, shim := range p.shims {
		ctx := p.log.WithField("shim", shim.Name)
		if !shim.AppliesTo(v) {
			ctx.Info("shim does not apply, skipping")
			continue
		}
		changed, err := shim.Apply(srcDir)
		if err != nil {
			return fmt.Errorf("applying %s: %w", shim.Name, err)
		}
		ctx.WithField("changed", changed).Debug("shim applied")
	}
	return nil
}
