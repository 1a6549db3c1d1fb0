package env

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// Names of the environment variables read by the driver.
const (
	OutDirVar = "OUT_DIR"
	TargetVar = "TARGET"
	CPUVar    = "CMSIS_CPU"
)

// CPU is the ARM core the driver was built for. It is embedded at driver
// build time:
//
//	go build -ldflags "-X github.com/goplus/cmsisdsp/internal/env.CPU=cortex-m4" ./cmd/cmsisdsp
//
// When empty, the CMSIS_CPU variable is consulted at run time instead.
var CPU string

// MissingError reports a required environment variable that is unset or empty.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	if e.Name == CPUVar {
		return fmt.Sprintf("environment variable %s not set (embed it with -ldflags -X or export it)", e.Name)
	}
	return fmt.Sprintf("environment variable %s not set", e.Name)
}

// Env holds the values the host build system hands to the driver.
type Env struct {
	OutDir string // absolute output root
	Target string // target triple, e.g. thumbv7em-none-eabihf
	CPU    string // ARM core, e.g. cortex-m4
}

// Load reads the driver inputs through lookup, which is os.LookupEnv in
// production. All missing variables are reported together.
func Load(lookup func(string) (string, bool)) (*Env, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, error) {
		v, ok := lookup(name)
		if !ok || v == "" {
			return "", &MissingError{Name: name}
		}
		return v, nil
	}

	var err error
	e := &Env{}

	outDir, oerr := get(OutDirVar)
	err = multierr.Append(err, oerr)
	if oerr == nil {
		abs, aerr := filepath.Abs(outDir)
		if aerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", OutDirVar, aerr))
		}
		e.OutDir = abs
	}

	target, terr := get(TargetVar)
	err = multierr.Append(err, terr)
	e.Target = target

	e.CPU = CPU
	if e.CPU == "" {
		cpu, cerr := get(CPUVar)
		err = multierr.Append(err, cerr)
		e.CPU = cpu
	}

	if err != nil {
		return nil, err
	}
	return e, nil
}

// FromOS is Load(os.LookupEnv).
func FromOS() (*Env, error) {
	return Load(os.LookupEnv)
}
