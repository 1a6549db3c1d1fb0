// Package link emits the directives that tell the host build system where the
// built library lives and how to link it.
package link

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/goplus/cmsisdsp/internal/config"
)

// DefaultPrefix marks directive lines on the channel.
const DefaultPrefix = "cmsis:"

// Emitter writes directives, one per line, to a channel (stdout by default).
type Emitter struct {
	w      io.Writer
	prefix string
}

// NewEmitter returns an Emitter writing prefix-tagged lines to w.
func NewEmitter(w io.Writer, prefix string) *Emitter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Emitter{w: w, prefix: prefix}
}

// Canonicalize returns the absolute, symlink-resolved form of dir.
func Canonicalize(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("cannot canonicalize path %s: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("cannot canonicalize path %s: %w", dir, err)
	}
	return resolved, nil
}

// LinkSearch emits the library search path directive for dir, which must
// exist.
func (e *Emitter) LinkSearch(dir string) (string, error) {
	canon, err := Canonicalize(dir)
	if err != nil {
		return "", err
	}
	return canon, e.emit("link-search", canon)
}

// LinkLib emits the link-library directive for lib<name>.
func (e *Emitter) LinkLib(linkage config.Linkage, name string) error {
	if linkage == config.Static {
		return e.emit("link-lib", "static="+name)
	}
	return e.emit("link-lib", name)
}

// RerunIfChanged asks the host to re-run the driver when path changes.
func (e *Emitter) RerunIfChanged(path string) error {
	return e.emit("rerun-if-changed", path)
}

func (e *Emitter) emit(key, value string) error {
	_, err := fmt.Fprintf(e.w, "%s%s=%s\n", e.prefix, key, value)
	return err
}

// ArchiveName returns the file name the build produces for lib<name>.
func ArchiveName(linkage config.Linkage, name string) string {
	if linkage == config.Static {
		return "lib" + name + ".a"
	}
	switch runtime.GOOS {
	case "darwin", "ios":
		return "lib" + name + ".dylib"
	case "windows":
		return name + ".dll"
	}
	return "lib" + name + ".so"
}

// LDFlags returns the cgo link flags for lib<name> in dir. Static archives
// are named by path so the linker cannot pick a shared sibling.
func LDFlags(linkage config.Linkage, dir, name string) []string {
	if linkage == config.Static {
		return []string{filepath.Join(dir, ArchiveName(linkage, name))}
	}
	return []string{"-L" + dir, "-l" + name}
}
