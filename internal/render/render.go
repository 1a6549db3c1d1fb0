// Package render materializes the vendored CMSIS Makefile template.
package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Placeholder tokens recognised in the template.
const (
	MCPU      = "__MCPU__"
	Target    = "__TARGET__"
	CMSISRoot = "__CMSIS_ROOT__"
)

// Placeholders lists every token Render substitutes.
var Placeholders = []string{MCPU, Target, CMSISRoot}

// OutputName is the rendered Makefile's name inside the output root.
const OutputName = "Makefile"

// Values are the substitutions for one render.
type Values struct {
	CPU    string // replaces __MCPU__
	Target string // replaces __TARGET__
	Root   string // replaces __CMSIS_ROOT__; must be absolute
}

func (v Values) check() error {
	var missing []string
	if v.CPU == "" {
		missing = append(missing, "cpu")
	}
	if v.Target == "" {
		missing = append(missing, "target")
	}
	if v.Root == "" {
		missing = append(missing, "cmsis root")
	}
	if len(missing) > 0 {
		return fmt.Errorf("render: missing %s", strings.Join(missing, ", "))
	}
	if !filepath.IsAbs(v.Root) {
		return fmt.Errorf("render: cmsis root %q is not absolute", v.Root)
	}
	for _, s := range []string{v.CPU, v.Target, v.Root} {
		if p := findPlaceholder(s); p != "" {
			return fmt.Errorf("render: value %q contains placeholder %s", s, p)
		}
	}
	return nil
}

// Render replaces every occurrence of each placeholder in tmpl.
func Render(tmpl string, v Values) (string, error) {
	if err := v.check(); err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		MCPU, v.CPU,
		Target, v.Target,
		CMSISRoot, v.Root,
	)
	out := r.Replace(tmpl)
	// A value can complete a token with the surrounding text, e.g. "__" + "MCPU__".
	if p := findPlaceholder(out); p != "" {
		return "", fmt.Errorf("render: placeholder %s left after substitution", p)
	}
	return out, nil
}

// RenderFile renders the template at tmplPath into outDir/Makefile and
// returns the absolute path of the written file.
func RenderFile(tmplPath, outDir string, v Values) (string, error) {
	data, err := os.ReadFile(tmplPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("render: makefile template %s not found", tmplPath)
		}
		return "", fmt.Errorf("render: %w", err)
	}
	out, err := Render(string(data), v)
	if err != nil {
		return "", err
	}
	dst, err := filepath.Abs(filepath.Join(outDir, OutputName))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	if err := os.WriteFile(dst, []byte(out), 0o644); err != nil {
		return "", fmt.Errorf("render: failed to write %s: %w", dst, err)
	}
	return dst, nil
}

func findPlaceholder(s string) string {
	for _, p := range Placeholders {
		if strings.Contains(s, p) {
			return p
		}
	}
	return ""
}
