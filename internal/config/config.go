// Package config holds the configuration record that parameterises the
// driver: where the CMSIS sources come from, how the library is linked and
// which files the bindings are generated from.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the optional project configuration file.
const DefaultFile = "cmsisdsp.yaml"

// SourceMode selects how the vendor sources are obtained.
type SourceMode int

const (
	// PrePlaced uses sources already checked out next to the project.
	PrePlaced SourceMode = iota
	// Download fetches the configured archives into the output root.
	Download
)

func (m SourceMode) String() string {
	switch m {
	case PrePlaced:
		return "pre-placed"
	case Download:
		return "download"
	}
	return fmt.Sprintf("SourceMode(%d)", int(m))
}

func (m SourceMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *SourceMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "pre-placed", "preplaced", "local":
		*m = PrePlaced
	case "download":
		*m = Download
	default:
		return fmt.Errorf("unknown source mode %q", b)
	}
	return nil
}

// Linkage selects how the produced library is linked.
type Linkage int

const (
	Static Linkage = iota
	Dynamic
)

func (l Linkage) String() string {
	switch l {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	}
	return fmt.Sprintf("Linkage(%d)", int(l))
}

func (l Linkage) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Linkage) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "static":
		*l = Static
	case "dynamic", "dylib", "shared":
		*l = Dynamic
	default:
		return fmt.Errorf("unknown linkage %q", b)
	}
	return nil
}

// Set and Type make *Linkage usable as a cobra flag value.
func (l *Linkage) Set(s string) error { return l.UnmarshalText([]byte(s)) }
func (l *Linkage) Type() string       { return "linkage" }

// Archive describes one vendor release archive.
type Archive struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	URL     string `yaml:"url"`
	// Dir is the subdirectory of the output root the archive is extracted to.
	Dir string `yaml:"dir"`
	// SHA256 pins the archive content when set (hex encoded).
	SHA256 string `yaml:"sha256,omitempty"`
}

// DefaultArchives are the CMSIS releases the vendored Makefile expects.
func DefaultArchives() []Archive {
	return []Archive{
		{
			Name:    DSPArchive,
			Version: "v1.16.2",
			URL:     "https://github.com/ARM-software/CMSIS-DSP/archive/refs/tags/v1.16.2.tar.gz",
			Dir:     "CMSIS_DSP",
		},
		{
			Name:    CoreArchive,
			Version: "v6.1.0",
			URL:     "https://github.com/ARM-software/CMSIS_6/archive/refs/tags/v6.1.0.tar.gz",
			Dir:     "CMSIS_CORE",
		},
	}
}

// Config is the driver configuration record.
type Config struct {
	Sources  SourceMode `yaml:"sources"`
	Archives []Archive  `yaml:"archives"`
	Linkage  Linkage    `yaml:"linkage"`
	// LibName is the library base name, built as lib<LibName>.a.
	LibName string `yaml:"lib"`

	// Project-relative inputs.
	Makefile string `yaml:"makefile"`
	Wrapper  string `yaml:"wrapper"`
	// PrePlacedDSP and PrePlacedCore are the project-relative roots of the
	// checked-out CMSIS-DSP and CMSIS_6 trees.
	PrePlacedDSP  string `yaml:"dsp_dir"`
	PrePlacedCore string `yaml:"core_dir"`

	// SysIncludePaths are host system include directories searched by the
	// C front end. /usr/include by default.
	SysIncludePaths []string `yaml:"sys_include_paths"`
	Defines         []string `yaml:"defines"`
	// AllowSystemDecls also emits declarations from system headers.
	AllowSystemDecls bool `yaml:"allow_system_decls"`

	Package         string `yaml:"package"`
	BindingsFile    string `yaml:"bindings"`
	DirectivePrefix string `yaml:"directive_prefix"`
	// Jobs overrides make parallelism when > 0.
	Jobs int `yaml:"jobs"`
}

// Default returns the configuration of the canonical build: pre-placed
// sources, static linkage.
func Default() *Config {
	return &Config{
		Sources:         PrePlaced,
		Archives:        DefaultArchives(),
		Linkage:         Static,
		LibName:         "CMSISDSP",
		Makefile:        "Makefile",
		Wrapper:         "wrapper.h",
		PrePlacedDSP:    "CMSIS-DSP",
		PrePlacedCore:   "CMSIS_6",
		SysIncludePaths: []string{"/usr/include"},
		Package:         "cmsisdsp",
		BindingsFile:    "bindings.go",
		DirectivePrefix: "cmsis:",
	}
}

// Load overlays the YAML file at path onto Default. A missing file is not an
// error when optional is set.
func Load(path string, optional bool) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the record for consistency, reporting every problem found.
func (c *Config) Validate() error {
	var err error
	if c.LibName == "" {
		err = multierr.Append(err, errors.New("lib: empty library name"))
	}
	if c.Makefile == "" {
		err = multierr.Append(err, errors.New("makefile: empty path"))
	}
	if c.Wrapper == "" {
		err = multierr.Append(err, errors.New("wrapper: empty path"))
	}
	if c.Package == "" {
		err = multierr.Append(err, errors.New("package: empty name"))
	}
	if c.BindingsFile == "" {
		err = multierr.Append(err, errors.New("bindings: empty file name"))
	}
	if c.Jobs < 0 {
		err = multierr.Append(err, fmt.Errorf("jobs: negative value %d", c.Jobs))
	}
	if c.Sources == Download {
		if len(c.Archives) == 0 {
			err = multierr.Append(err, errors.New("archives: download mode needs at least one archive"))
		}
		seen := make(map[string]bool)
		for i, a := range c.Archives {
			err = multierr.Append(err, a.validate(i))
			if seen[a.Dir] {
				err = multierr.Append(err, fmt.Errorf("archives[%d]: duplicate dir %q", i, a.Dir))
			}
			seen[a.Dir] = true
		}
	}
	return err
}

func (a Archive) validate(i int) error {
	var err error
	if !strings.HasPrefix(a.URL, "https://") && !strings.HasPrefix(a.URL, "http://") {
		err = multierr.Append(err, fmt.Errorf("archives[%d]: url %q is not http(s)", i, a.URL))
	}
	if a.Dir == "" || filepath.IsAbs(a.Dir) || strings.HasPrefix(filepath.Clean(a.Dir), "..") {
		err = multierr.Append(err, fmt.Errorf("archives[%d]: dir %q must be a relative subdirectory", i, a.Dir))
	}
	if a.Version != "" && !semver.IsValid(a.Version) {
		err = multierr.Append(err, fmt.Errorf("archives[%d]: version %q is not a semantic version", i, a.Version))
	}
	if a.SHA256 != "" && len(a.SHA256) != 64 {
		err = multierr.Append(err, fmt.Errorf("archives[%d]: sha256 must be 64 hex digits", i))
	}
	return err
}

// Names of the archives that carry the two source trees.
const (
	DSPArchive  = "CMSIS-DSP"
	CoreArchive = "CMSIS"
)

// Archive returns the descriptor called name.
func (c *Config) Archive(name string) (Archive, bool) {
	for _, a := range c.Archives {
		if a.Name == name {
			return a, true
		}
	}
	return Archive{}, false
}

// archiveDir is where the archive called name is extracted, falling back to
// the default layout when it is not configured.
func (c *Config) archiveDir(name string) string {
	if a, ok := c.Archive(name); ok && a.Dir != "" {
		return a.Dir
	}
	for _, a := range DefaultArchives() {
		if a.Name == name {
			return a.Dir
		}
	}
	return ""
}

// SourceDirs returns the absolute CMSIS-DSP and CMSIS Core roots for the
// configured source mode.
func (c *Config) SourceDirs(projectDir, outDir string) (dsp, core string) {
	if c.Sources == Download {
		return filepath.Join(outDir, c.archiveDir(DSPArchive)), filepath.Join(outDir, c.archiveDir(CoreArchive))
	}
	return filepath.Join(projectDir, c.PrePlacedDSP), filepath.Join(projectDir, c.PrePlacedCore)
}

// IncludePaths returns the non-system header search path, derived from the
// source mode: the CMSIS-DSP Include directory, then the CMSIS Core one.
func (c *Config) IncludePaths(projectDir, outDir string) []string {
	dsp, core := c.SourceDirs(projectDir, outDir)
	return []string{
		filepath.Join(dsp, "Include"),
		filepath.Join(core, "CMSIS", "Core", "Include"),
	}
}
