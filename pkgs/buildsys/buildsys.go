package buildsys

import "context"

// BuildSystem captures the capabilities the driver needs from a native build
// tool. Implementations run the tool as a child process that inherits the
// parent's standard streams.
type BuildSystem interface {
	// Env sets an environment override for the child process.
	Env(key, val string)

	// Build runs the tool to completion. A non-zero exit status is an error.
	Build(ctx context.Context, args ...string) error

	// OutputDir is where the tool deposits its artifacts.
	OutputDir() string
}
