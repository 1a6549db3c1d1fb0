// Package bindgen generates a cgo bindings file for a C header.
package bindgen

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"golang.org/x/tools/imports"
)

//go:embed bindings.go.tmpl
var bindingsTmpl string

var fileTemplate = template.Must(template.New("bindings").Parse(bindingsTmpl))

// Builder configures one bindings generation. Setters return the receiver so
// calls can be chained; an invalid setting is reported by Generate.
type Builder struct {
	header          string
	useCore         bool
	ctypesPrefix    string
	includePaths    []string
	sysIncludePaths []string
	defines         []string
	blockFuncs      []*regexp.Regexp
	blockTypes      []*regexp.Regexp
	blockItems      []*regexp.Regexp
	callbacks       []ParseCallbacks
	pkg             string
	cflags          []string
	ldflags         []string
	target          string
	allowSystem     bool
	parser          Parser
	logger          *slog.Logger
	err             error
}

// NewBuilder returns a Builder with the cgo C-types prefix, the C front end
// and package name "cmsisdsp".
func NewBuilder() *Builder {
	return &Builder{
		ctypesPrefix: "C",
		pkg:          "cmsisdsp",
		parser:       CParser{},
		logger:       slog.Default(),
	}
}

// Header sets the root header.
func (b *Builder) Header(path string) *Builder { b.header = path; return b }

// UseCore parses in freestanding mode, without a hosted C library.
func (b *Builder) UseCore() *Builder { b.useCore = true; return b }

// CTypesPrefix sets the package qualifying C scalar types.
func (b *Builder) CTypesPrefix(prefix string) *Builder { b.ctypesPrefix = prefix; return b }

// IncludePath adds a -I directory. Declarations from it are emitted.
func (b *Builder) IncludePath(dir string) *Builder {
	b.includePaths = append(b.includePaths, dir)
	return b
}

// SysIncludePath adds a system include directory, typically the sysroot's.
func (b *Builder) SysIncludePath(dir string) *Builder {
	b.sysIncludePaths = append(b.sysIncludePaths, dir)
	return b
}

// Define adds a preprocessor definition. An empty value defines name as 1.
func (b *Builder) Define(name, value string) *Builder {
	if value != "" {
		name += "=" + value
	}
	b.defines = append(b.defines, name)
	return b
}

// BlocklistFunction suppresses functions whose name matches pattern.
func (b *Builder) BlocklistFunction(pattern string) *Builder {
	b.blockFuncs = b.appendPattern(b.blockFuncs, pattern)
	return b
}

// BlocklistType suppresses typedefs whose name matches pattern.
func (b *Builder) BlocklistType(pattern string) *Builder {
	b.blockTypes = b.appendPattern(b.blockTypes, pattern)
	return b
}

// BlocklistItem suppresses macros and enumerators whose name matches pattern.
func (b *Builder) BlocklistItem(pattern string) *Builder {
	b.blockItems = b.appendPattern(b.blockItems, pattern)
	return b
}

func (b *Builder) appendPattern(list []*regexp.Regexp, pattern string) []*regexp.Regexp {
	re, err := regexp.Compile(pattern)
	if err != nil {
		if b.err == nil {
			b.err = errors.Wrapf(err, "invalid blocklist pattern %q", pattern)
		}
		return list
	}
	return append(list, re)
}

// ParseCallbacks registers cb. Callbacks run in registration order.
func (b *Builder) ParseCallbacks(cb ParseCallbacks) *Builder {
	b.callbacks = append(b.callbacks, cb)
	return b
}

// Package sets the Go package clause of the generated file.
func (b *Builder) Package(name string) *Builder { b.pkg = name; return b }

// CFlags adds extra "#cgo CFLAGS" arguments.
func (b *Builder) CFlags(flags ...string) *Builder {
	b.cflags = append(b.cflags, flags...)
	return b
}

// LDFlags adds "#cgo LDFLAGS" arguments.
func (b *Builder) LDFlags(flags ...string) *Builder {
	b.ldflags = append(b.ldflags, flags...)
	return b
}

// Target sets the target triple the header is parsed for.
func (b *Builder) Target(triple string) *Builder { b.target = triple; return b }

// AllowSystemDecls also emits declarations found in system headers.
func (b *Builder) AllowSystemDecls(allow bool) *Builder { b.allowSystem = allow; return b }

// Parser replaces the C front end.
func (b *Builder) Parser(p Parser) *Builder { b.parser = p; return b }

// Logger sets where skipped declarations are reported.
func (b *Builder) Logger(l *slog.Logger) *Builder { b.logger = l; return b }

// Bindings is a generated bindings file.
type Bindings struct {
	src  []byte
	deps []string
}

// Bytes returns the formatted Go source.
func (b *Bindings) Bytes() []byte { return b.src }

// Deps returns the headers the bindings were generated from, sorted.
func (b *Bindings) Deps() []string { return b.deps }

// WriteToFile writes the Go source to path.
func (b *Bindings) WriteToFile(path string) error {
	if err := os.WriteFile(path, b.src, 0o644); err != nil {
		return errors.Wrap(err, "couldn't write bindings")
	}
	return nil
}

// WriteDepFile writes a Make-style dependency file naming target.
func (b *Bindings) WriteDepFile(path, target string) error {
	var buf bytes.Buffer
	buf.WriteString(depEscape(target))
	buf.WriteByte(':')
	for _, d := range b.deps {
		buf.WriteString(" \\\n  ")
		buf.WriteString(depEscape(d))
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "couldn't write dependency file")
	}
	return nil
}

func depEscape(s string) string {
	return strings.NewReplacer(" ", `\ `, "#", `\#`, "$", "$$").Replace(s)
}

// Generate parses the header and renders the bindings.
func (b *Builder) Generate(ctx context.Context) (*Bindings, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.header == "" {
		return nil, errors.New("no header to generate bindings for")
	}
	header, err := filepath.Abs(b.header)
	if err != nil {
		return nil, errors.Wrapf(err, "header %s", b.header)
	}
	if _, err := os.Stat(header); err != nil {
		return nil, errors.Wrap(err, "header not found")
	}
	includes := make([]string, len(b.includePaths))
	for i, dir := range b.includePaths {
		if includes[i], err = filepath.Abs(dir); err != nil {
			return nil, errors.Wrapf(err, "include path %s", dir)
		}
	}

	unit, err := b.parser.Parse(ctx, &ParseRequest{
		Header:          header,
		IncludePaths:    includes,
		SysIncludePaths: b.sysIncludePaths,
		Defines:         b.defines,
		Freestanding:    b.useCore,
		Target:          b.target,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to generate bindings")
	}
	for _, f := range unit.Files {
		for _, cb := range b.callbacks {
			cb.IncludeFile(f)
		}
	}

	g := &generator{
		b:      b,
		local:  append([]string{filepath.Dir(header)}, includes...),
		header: header,
		typer:  &typer{prefix: b.ctypesPrefix, bad: make(map[string]bool)},
		names:  make(map[string]string),
	}
	data := g.file(unit, includes)
	var src bytes.Buffer
	if err := fileTemplate.Execute(&src, data); err != nil {
		return nil, errors.Wrap(err, "cannot render bindings")
	}
	out, err := imports.Process(filepath.Join(filepath.Dir(header), "bindings.go"), src.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, errors.Errorf("cannot format bindings: %v", err)
	}
	return &Bindings{src: out, deps: unit.Files}, nil
}

type (
	fileData struct {
		Source  string
		Package string
		CFlags  []string
		LDFlags []string
		Header  string
		Unsafe  bool
		Types   []alias
		Consts  []constant
		Funcs   []function
	}

	alias struct{ Name, Type string }

	constant struct{ Name, Value string }

	function struct {
		Name, CName  string
		Params, Args string
		Result       string
	}
)

type generator struct {
	b      *Builder
	local  []string
	header string
	typer  *typer
	names  map[string]string // Go name to the C name that claimed it
}

func (g *generator) file(unit *Unit, includes []string) *fileData {
	d := &fileData{
		Source:  filepath.Base(g.header),
		Package: g.b.pkg,
		Header:  g.header,
	}
	for _, dir := range includes {
		d.CFlags = append(d.CFlags, cgoArg("-I"+dir))
	}
	for _, def := range g.b.defines {
		d.CFlags = append(d.CFlags, cgoArg("-D"+def))
	}
	for _, f := range g.b.cflags {
		d.CFlags = append(d.CFlags, cgoArg(f))
	}
	for _, f := range g.b.ldflags {
		d.LDFlags = append(d.LDFlags, cgoArg(f))
	}

	// Typedefs first so functions can tell which named types are usable.
	for _, td := range unit.Typedefs {
		if !g.typer.typedefOK(td.Type) {
			g.typer.bad[td.Name] = true
			g.skip(td.Name, "typedef of "+describe(td.Type))
			continue
		}
		if !g.wanted(td.Name, td.File, g.b.blockTypes) {
			continue
		}
		if name, ok := g.claim(td.Name); ok {
			d.Types = append(d.Types, alias{Name: name, Type: "C." + td.Name})
		}
	}
	for _, m := range unit.Macros {
		if g.ignoreMacro(m.Name) || !g.wanted(m.Name, m.File, g.b.blockItems) {
			continue
		}
		lit, ok := constLit(m.Value)
		if !ok {
			continue
		}
		if name, ok := g.claim(m.Name); ok {
			d.Consts = append(d.Consts, constant{Name: name, Value: lit})
		}
	}
	for _, e := range unit.Enumerators {
		if !g.wanted(e.Name, e.File, g.b.blockItems) {
			continue
		}
		if name, ok := g.claim(e.Name); ok {
			d.Consts = append(d.Consts, constant{Name: name, Value: "C." + e.Name})
		}
	}
	for _, fn := range unit.Funcs {
		if !g.wanted(fn.Name, fn.File, g.b.blockFuncs) {
			continue
		}
		f, err := g.function(fn)
		if err != nil {
			g.skip(fn.Name, err.Error())
			continue
		}
		if name, ok := g.claim(fn.Name); ok {
			f.Name = name
			d.Funcs = append(d.Funcs, f)
		}
	}
	d.Unsafe = g.typer.unsafe
	return d
}

func (g *generator) function(fn Func) (function, error) {
	if fn.Variadic {
		return function{}, fmt.Errorf("%w: variadic", errUnsupported)
	}
	f := function{CName: fn.Name}
	names := paramNames(fn.Params)
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		t, err := g.typer.goType(p.Type)
		if err != nil {
			return function{}, errors.Wrapf(err, "parameter %s", names[i])
		}
		params[i] = names[i] + " " + t
	}
	if fn.Result != nil && fn.Result.Kind != Void {
		t, err := g.typer.goType(fn.Result)
		if err != nil {
			return function{}, errors.Wrap(err, "result")
		}
		f.Result = t
	}
	f.Params = strings.Join(params, ", ")
	f.Args = strings.Join(names, ", ")
	return f, nil
}

// wanted applies the blocklist and the system header policy.
func (g *generator) wanted(name, file string, block []*regexp.Regexp) bool {
	for _, re := range block {
		if re.MatchString(name) {
			return false
		}
	}
	return g.b.allowSystem || g.isLocal(file)
}

func (g *generator) isLocal(file string) bool {
	if file == g.header {
		return true
	}
	for _, dir := range g.local {
		if rel, err := filepath.Rel(dir, file); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel) {
			return true
		}
	}
	return false
}

func (g *generator) ignoreMacro(name string) bool {
	for _, cb := range g.b.callbacks {
		if cb.WillParseMacro(name) == MacroIgnore {
			return true
		}
	}
	return false
}

// claim reserves the Go name for cName, reporting false when another
// declaration already holds it.
func (g *generator) claim(cName string) (string, bool) {
	name := exportName(cName)
	if prev, ok := g.names[name]; ok {
		g.skip(cName, fmt.Sprintf("Go name %s already used by %s", name, prev))
		return "", false
	}
	g.names[name] = cName
	return name, true
}

func (g *generator) skip(name, reason string) {
	g.b.logger.Debug("skipping declaration", "name", name, "reason", reason)
}

// cgoArg quotes s when a cgo directive would otherwise split it.
func cgoArg(s string) string {
	if strings.ContainsAny(s, " \t'\"\\") {
		return strconv.Quote(s)
	}
	return s
}
