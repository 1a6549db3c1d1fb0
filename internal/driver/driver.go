// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver runs the CMSIS-DSP build pipeline, from Makefile rendering
// to the link directives.
package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/cmsisdsp/internal/bindgen"
	"github.com/goplus/cmsisdsp/internal/config"
	"github.com/goplus/cmsisdsp/internal/env"
	"github.com/goplus/cmsisdsp/internal/fetch"
	"github.com/goplus/cmsisdsp/internal/link"
	"github.com/goplus/cmsisdsp/internal/logutil"
	"github.com/goplus/cmsisdsp/internal/render"
	"github.com/goplus/cmsisdsp/pkgs/buildsys"
	"github.com/goplus/cmsisdsp/pkgs/buildsys/gnumake"
)

// BuildDirName is the output subdirectory the Makefile builds into.
const BuildDirName = "builddir"

// Driver holds one run's inputs. It is not safe for concurrent use; the
// output root belongs to a single run.
type Driver struct {
	cfg     *config.Config
	env     *env.Env
	project string

	stdout  io.Writer // directive channel
	stderr  io.Writer // child process output
	logger  *slog.Logger
	fetcher *fetch.Fetcher
	parser  bindgen.Parser
	makeBin string
}

// Option configures a Driver.
type Option func(*Driver)

// WithDirectives sets the directive channel, stdout by default.
func WithDirectives(w io.Writer) Option {
	return func(d *Driver) { d.stdout = w }
}

// WithToolOutput sets where make writes its output, stderr by default.
// Tool output never goes to the directive channel.
func WithToolOutput(w io.Writer) Option {
	return func(d *Driver) { d.stderr = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

func WithFetcher(f *fetch.Fetcher) Option {
	return func(d *Driver) { d.fetcher = f }
}

// WithParser replaces the C front end used for bindings.
func WithParser(p bindgen.Parser) Option {
	return func(d *Driver) { d.parser = p }
}

// WithMake sets the make executable.
func WithMake(bin string) Option {
	return func(d *Driver) { d.makeBin = bin }
}

// New returns a Driver for the project rooted at projectDir.
func New(cfg *config.Config, e *env.Env, projectDir string, opts ...Option) (*Driver, error) {
	project, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("project dir %s: %w", projectDir, err)
	}
	d := &Driver{
		cfg:     cfg,
		env:     e,
		project: project,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		logger:  slog.Default(),
		parser:  bindgen.CParser{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.fetcher == nil {
		d.fetcher = fetch.New(fetch.WithLogger(d.logger))
	}
	return d, nil
}

// BuildDir returns OUT_DIR/builddir.
func (d *Driver) BuildDir() string {
	return filepath.Join(d.env.OutDir, BuildDirName)
}

// BindingsPath returns where the bindings file is written.
func (d *Driver) BindingsPath() string {
	return filepath.Join(d.env.OutDir, d.cfg.BindingsFile)
}

// Run executes every step in order. Directives are emitted only after the
// library has been built and the bindings written.
func (d *Driver) Run(ctx context.Context) error {
	makefile, err := d.Render()
	if err != nil {
		return err
	}
	if d.cfg.Sources == config.Download {
		if err := d.Fetch(ctx); err != nil {
			return err
		}
	}
	if err := d.Build(ctx, makefile); err != nil {
		return err
	}
	deps, err := d.Bindgen(ctx)
	if err != nil {
		return err
	}
	return d.Link(deps)
}

// Render writes OUT_DIR/Makefile from the project's template.
func (d *Driver) Render() (string, error) {
	tmpl := filepath.Join(d.project, d.cfg.Makefile)
	out, err := render.RenderFile(tmpl, d.env.OutDir, render.Values{
		CPU:    d.env.CPU,
		Target: d.env.Target,
		Root:   d.env.OutDir,
	})
	if err != nil {
		return "", err
	}
	d.logger.Debug("rendered makefile", "path", out)
	return out, nil
}

// Fetch downloads and extracts the configured archives into OUT_DIR.
func (d *Driver) Fetch(ctx context.Context) error {
	if err := os.MkdirAll(d.env.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}
	return d.fetcher.FetchAll(ctx, d.cfg.Archives, d.env.OutDir)
}

// Build runs make on the rendered Makefile and checks that the library
// archive was produced.
func (d *Driver) Build(ctx context.Context, makefile string) error {
	buildDir := d.BuildDir()
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	dsp, core := d.cfg.SourceDirs(d.project, d.env.OutDir)
	libFile := link.ArchiveName(d.cfg.Linkage, d.cfg.LibName)

	m := gnumake.New(makefile).
		Jobs(d.cfg.Jobs).
		Output(d.stderr, d.stderr).
		SetOutputDir(buildDir).
		Var("CMSIS_DSP_DIR", dsp).
		Var("CMSIS_CORE_DIR", core).
		Var("BUILDDIR", buildDir).
		Var("LIB", d.cfg.LibName).
		Var("LIBFILE", libFile).
		Var("LINKAGE", d.cfg.Linkage.String())
	if d.makeBin != "" {
		m.Bin(d.makeBin)
	}
	logutil.Trace("running make", "args", m.Args())
	outDir, err := d.build(ctx, m)
	if err != nil {
		return err
	}

	lib := filepath.Join(outDir, libFile)
	if _, err := os.Stat(lib); err != nil {
		return fmt.Errorf("build finished without producing %s: %w", lib, err)
	}
	d.logger.Info("built library", "path", lib)
	return nil
}

// build runs bs and returns the directory holding its artifacts.
func (d *Driver) build(ctx context.Context, bs buildsys.BuildSystem) (string, error) {
	bs.Env(env.CPUVar, d.env.CPU)
	bs.Env(env.TargetVar, d.env.Target)
	if err := bs.Build(ctx); err != nil {
		return "", err
	}
	return bs.OutputDir(), nil
}

// Bindgen generates OUT_DIR/bindings.go and its depfile, returning the
// headers it was generated from.
func (d *Driver) Bindgen(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(d.BuildDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create build dir: %w", err)
	}
	libDir, err := link.Canonicalize(d.BuildDir())
	if err != nil {
		return nil, err
	}
	var deps []string
	b := bindgen.NewBuilder().
		Header(filepath.Join(d.project, d.cfg.Wrapper)).
		UseCore().
		CTypesPrefix("C").
		BlocklistFunction(bindgen.DefaultBlocklist).
		BlocklistType(bindgen.DefaultBlocklist).
		BlocklistItem(bindgen.DefaultBlocklist).
		ParseCallbacks(bindgen.DefaultIgnoredMacros()).
		ParseCallbacks(bindgen.DepCallbacks{Fn: func(path string) { deps = append(deps, path) }}).
		Package(d.cfg.Package).
		LDFlags(link.LDFlags(d.cfg.Linkage, libDir, d.cfg.LibName)...).
		Target(d.env.Target).
		AllowSystemDecls(d.cfg.AllowSystemDecls).
		Parser(d.parser).
		Logger(d.logger)
	for _, dir := range d.cfg.SysIncludePaths {
		b.SysIncludePath(dir)
	}
	for _, dir := range d.cfg.IncludePaths(d.project, d.env.OutDir) {
		b.IncludePath(dir)
	}
	for _, def := range d.cfg.Defines {
		name, value, _ := strings.Cut(def, "=")
		b.Define(name, value)
	}

	bindings, err := b.Generate(ctx)
	if err != nil {
		return nil, err
	}
	out := d.BindingsPath()
	if err := bindings.WriteToFile(out); err != nil {
		return nil, err
	}
	if err := bindings.WriteDepFile(out+".d", out); err != nil {
		return nil, err
	}
	d.logger.Info("wrote bindings", "path", out, "headers", len(deps))
	return deps, nil
}

// Link emits the dependency, search path and library directives.
func (d *Driver) Link(deps []string) error {
	e := link.NewEmitter(d.stdout, d.cfg.DirectivePrefix)
	// Resolve the search path before writing anything.
	dir, err := link.Canonicalize(d.BuildDir())
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if err := e.RerunIfChanged(dep); err != nil {
			return err
		}
	}
	if _, err := e.LinkSearch(dir); err != nil {
		return err
	}
	return e.LinkLib(d.cfg.Linkage, d.cfg.LibName)
}
