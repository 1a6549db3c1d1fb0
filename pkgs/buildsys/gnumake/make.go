// Package gnumake runs GNU make on a rendered Makefile.
package gnumake

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goplus/cmsisdsp/pkgs/buildsys"
)

// Make wraps a make invocation with chainable configuration.
type Make struct {
	makefile  string
	bin       string
	jobs      int
	outputDir string
	vars      map[string]string
	env       map[string]string
	stdout    io.Writer
	stderr    io.Writer
}

var _ buildsys.BuildSystem = (*Make)(nil)

// New creates a Make for makefile. The tool is $MAKE, or make from PATH, and
// runs with Parallelism() jobs.
func New(makefile string) *Make {
	bin := os.Getenv("MAKE")
	if bin == "" {
		bin = "make"
	}
	return &Make{
		makefile: makefile,
		bin:      bin,
		jobs:     Parallelism(),
		vars:     map[string]string{},
		env:      map[string]string{},
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
}

// Bin sets the make executable.
func (m *Make) Bin(path string) *Make {
	m.bin = path
	return m
}

// Jobs sets the -j value. Values below 1 select Parallelism().
func (m *Make) Jobs(n int) *Make {
	if n < 1 {
		n = Parallelism()
	}
	m.jobs = n
	return m
}

// Var adds a NAME=value override to the command line.
func (m *Make) Var(key, value string) *Make {
	if m.vars == nil {
		m.vars = map[string]string{}
	}
	m.vars[key] = value
	return m
}

// Output sets where the child's standard streams go. Both default to the
// parent's.
func (m *Make) Output(stdout, stderr io.Writer) *Make {
	m.stdout, m.stderr = stdout, stderr
	return m
}

// SetOutputDir records where the Makefile deposits its artifacts.
func (m *Make) SetOutputDir(dir string) *Make {
	m.outputDir = dir
	return m
}

func (m *Make) Env(key, value string) {
	if m.env == nil {
		m.env = map[string]string{}
	}
	m.env[key] = value
}

// Args returns the command line Build runs, without the executable.
func (m *Make) Args(args ...string) []string {
	cmdArgs := []string{"-f", m.makefile, "-j" + strconv.Itoa(m.jobs)}
	cmdArgs = append(cmdArgs, m.varArgs()...)
	return append(cmdArgs, args...)
}

// Build runs make and waits for it. The Makefile path must be absolute: no
// chdir is performed.
func (m *Make) Build(ctx context.Context, args ...string) error {
	if !filepath.IsAbs(m.makefile) {
		return fmt.Errorf("make: makefile path %q is not absolute", m.makefile)
	}
	cmd := exec.CommandContext(ctx, m.bin, m.Args(args...)...)
	cmd.Stdout = m.stdout
	cmd.Stderr = m.stderr
	if len(m.env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), m.env)
	}
	// Run waits for the child on every path, including cancellation.
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s -f %s: %w", m.bin, m.makefile, err)
	}
	return nil
}

// OutputDir returns the directory set with SetOutputDir, or the Makefile's
// directory.
func (m *Make) OutputDir() string {
	if m.outputDir != "" {
		return m.outputDir
	}
	return filepath.Dir(m.makefile)
}

func (m *Make) varArgs() []string {
	if len(m.vars) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.vars))
	for k := range m.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, k+"="+m.vars[k])
	}
	return args
}

func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
