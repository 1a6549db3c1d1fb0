package bindgen

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"modernc.org/cc/v4"
)

// ParseRequest describes one translation of the root header.
type ParseRequest struct {
	Header          string // absolute path of the root header
	IncludePaths    []string
	SysIncludePaths []string
	Defines         []string // NAME or NAME=VALUE
	Freestanding    bool
	Target          string // target triple, selects the ABI
}

// Parser turns a header into a declaration model.
type Parser interface {
	Parse(ctx context.Context, req *ParseRequest) (*Unit, error)
}

// CParser parses with modernc.org/cc/v4. The host C compiler (or $CC) is
// queried for predefined macros and default include directories. The
// generated bindings are compiled by cgo for the host, so the host ABI is
// used unless $CC names a compiler for the target.
type CParser struct{}

var _ Parser = CParser{}

func (p CParser) Parse(ctx context.Context, req *ParseRequest) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	goos, goarch := runtime.GOOS, runtime.GOARCH
	if req.Target != "" && os.Getenv("CC") != "" {
		goos, goarch = abiFor(req.Target)
	}
	ast, err := p.translate(req, goos, goarch)
	if err != nil && (goos != runtime.GOOS || goarch != runtime.GOARCH) {
		// $CC may still be a host compiler whose predefined macros do not
		// fit the target ABI.
		if hast, herr := p.translate(req, runtime.GOOS, runtime.GOARCH); herr == nil {
			ast, err = hast, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return collect(ast, req.Header), nil
}

func (CParser) translate(req *ParseRequest, goos, goarch string) (*cc.AST, error) {
	var opts []string
	if req.Freestanding {
		opts = append(opts, "-ffreestanding")
	}
	cfg, err := cc.NewConfig(goos, goarch, opts...)
	if err != nil {
		return nil, fmt.Errorf("configure C front end for %s/%s: %w", goos, goarch, err)
	}
	cfg.EvalAllMacros = true
	// -I directories serve both quoted and angled includes.
	cfg.IncludePaths = append(cfg.IncludePaths, req.IncludePaths...)
	sys := append([]string(nil), req.IncludePaths...)
	sys = append(sys, cfg.SysIncludePaths...)
	cfg.SysIncludePaths = append(sys, req.SysIncludePaths...)

	var predefined strings.Builder
	predefined.WriteString(cfg.Predefined)
	for _, d := range req.Defines {
		name, val, ok := strings.Cut(d, "=")
		if !ok {
			val = "1"
		}
		fmt.Fprintf(&predefined, "\n#define %s %s", name, val)
	}
	predefined.WriteByte('\n')

	ast, err := cc.Translate(cfg, []cc.Source{
		{Name: "<predefined>", Value: predefined.String()},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: req.Header},
	})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", req.Header, err)
	}
	return ast, nil
}

// abiFor maps a target triple to the GOOS/GOARCH pair whose C ABI matches.
// Bare-metal targets use the linux ABI of the same architecture.
func abiFor(triple string) (goos, goarch string) {
	goos, goarch = "linux", runtime.GOARCH
	if triple == "" {
		return runtime.GOOS, runtime.GOARCH
	}
	arch, rest, _ := strings.Cut(triple, "-")
	switch {
	case strings.HasPrefix(arch, "thumb"), strings.HasPrefix(arch, "arm"):
		goarch = "arm"
	case arch == "aarch64", arch == "arm64":
		goarch = "arm64"
	case arch == "x86_64":
		goarch = "amd64"
	case arch == "i386", arch == "i586", arch == "i686":
		goarch = "386"
	case strings.HasPrefix(arch, "riscv64"):
		goarch = "riscv64"
	}
	switch {
	case strings.Contains(rest, "apple"), strings.Contains(rest, "darwin"):
		goos = "darwin"
	case strings.Contains(rest, "windows"):
		goos = "windows"
	}
	return goos, goarch
}

var scalarNames = map[cc.Kind]string{
	cc.Char:      "char",
	cc.SChar:     "signed char",
	cc.UChar:     "unsigned char",
	cc.Short:     "short",
	cc.UShort:    "unsigned short",
	cc.Int:       "int",
	cc.UInt:      "unsigned int",
	cc.Long:      "long",
	cc.ULong:     "unsigned long",
	cc.LongLong:  "long long",
	cc.ULongLong: "unsigned long long",
	cc.Float:     "float",
	cc.Double:    "double",
}

type collector struct {
	unit  Unit
	files map[string]struct{}
	funcs map[string]struct{}
	types map[string]struct{}
}

func collect(ast *cc.AST, header string) *Unit {
	c := &collector{
		files: map[string]struct{}{header: {}},
		funcs: make(map[string]struct{}),
		types: make(map[string]struct{}),
	}
	for l := ast.TranslationUnit; l != nil; l = l.TranslationUnit {
		ed := l.ExternalDeclaration
		if ed == nil {
			continue
		}
		switch ed.Case {
		case cc.ExternalDeclarationFuncDef:
			c.declarator(ed.FunctionDefinition.Declarator)
		case cc.ExternalDeclarationDecl:
			if ed.Declaration == nil {
				continue
			}
			for idl := ed.Declaration.InitDeclaratorList; idl != nil; idl = idl.InitDeclaratorList {
				if idl.InitDeclarator != nil {
					c.declarator(idl.InitDeclarator.Declarator)
				}
			}
		}
	}
	for name, m := range ast.Macros {
		c.macro(name, m)
	}
	sort.Slice(c.unit.Macros, func(i, j int) bool { return c.unit.Macros[i].Name < c.unit.Macros[j].Name })
	for f := range c.files {
		c.unit.Files = append(c.unit.Files, f)
	}
	sort.Strings(c.unit.Files)
	return &c.unit
}

func (c *collector) file(name string) string {
	if name == "" || strings.HasPrefix(name, "<") {
		return ""
	}
	c.files[name] = struct{}{}
	return name
}

func (c *collector) declarator(d *cc.Declarator) {
	if d == nil || d.Name() == "" {
		return
	}
	name := d.Name()
	file := c.file(d.Position().Filename)
	if file == "" {
		return
	}
	t := d.Type()
	switch {
	case d.IsTypename():
		if _, ok := c.types[name]; ok {
			return
		}
		c.types[name] = struct{}{}
		c.unit.Typedefs = append(c.unit.Typedefs, Typedef{Name: name, Type: ctype(t, true), File: file})
		if et, ok := t.(*cc.EnumType); ok {
			for _, e := range et.Enumerators() {
				c.unit.Enumerators = append(c.unit.Enumerators, Enumerator{Name: e.Token.SrcStr(), File: file})
			}
		}
	case t != nil && t.Kind() == cc.Function:
		if _, ok := c.funcs[name]; ok {
			return
		}
		ft, ok := t.(*cc.FunctionType)
		if !ok {
			return
		}
		c.funcs[name] = struct{}{}
		fn := Func{Name: name, File: file, Variadic: ft.IsVariadic(), Result: ctype(ft.Result(), false)}
		for _, p := range ft.Parameters() {
			// f(void) has a single unnamed void parameter.
			if p.Type() != nil && p.Type().Kind() == cc.Void {
				continue
			}
			fn.Params = append(fn.Params, Param{Name: p.Name(), Type: ctype(p.Type(), false)})
		}
		c.unit.Funcs = append(c.unit.Funcs, fn)
	}
}

func (c *collector) macro(name string, m *cc.Macro) {
	if m == nil || m.IsFnLike {
		return
	}
	file := c.file(m.Name.Position().Filename)
	if file == "" {
		return
	}
	mc := Macro{Name: name, File: file}
	// Floating literals evaluate to an integer zero, so read them from the
	// replacement list instead.
	toks := m.ReplacementList()
	src := make([]string, len(toks))
	for i := range toks {
		src[i] = toks[i].SrcStr()
	}
	if f, ok := floatLiteral(src); ok {
		mc.Value = f
		c.unit.Macros = append(c.unit.Macros, mc)
		return
	}
	switch v := m.Value().(type) {
	case cc.Int64Value:
		mc.Value = int64(v)
	case cc.UInt64Value:
		mc.Value = uint64(v)
	case cc.Float64Value:
		mc.Value = float64(v)
	case cc.StringValue:
		mc.Value = strings.TrimSuffix(string(v), "\x00")
	default:
		return
	}
	c.unit.Macros = append(c.unit.Macros, mc)
}

// floatLiteral recognizes a replacement list holding one floating constant,
// optionally signed and parenthesized, such as 0.5, 3.14159265358979f or (-1e-3).
func floatLiteral(src []string) (float64, bool) {
	for len(src) >= 2 && src[0] == "(" && src[len(src)-1] == ")" {
		src = src[1 : len(src)-1]
	}
	sign := ""
	if len(src) == 2 && (src[0] == "-" || src[0] == "+") {
		sign, src = src[0], src[1:]
	}
	if len(src) != 1 || src[0] == "" || !strings.ContainsRune("0123456789.", rune(src[0][0])) {
		return 0, false
	}
	lit := strings.ToLower(src[0])
	hex := strings.HasPrefix(lit, "0x")
	switch {
	case hex && !strings.Contains(lit, "p"):
		return 0, false
	case !hex && !strings.ContainsAny(lit, ".e"):
		return 0, false
	}
	if !hex {
		lit = strings.TrimRight(lit, "fl")
	} else if i := strings.LastIndexAny(lit, "0123456789"); i >= 0 {
		lit = lit[:i+1]
	}
	f, err := strconv.ParseFloat(sign+lit, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ctype converts t. When underlying is set a typedef'd t is described by
// what it aliases rather than by its typedef name.
func ctype(t cc.Type, underlying bool) *CType {
	if t == nil {
		return &CType{Kind: Unsupported, Name: "<nil>"}
	}
	if !underlying {
		if td := t.Typedef(); td != nil && td.Name() != "" {
			return &CType{Kind: Named, Name: td.Name()}
		}
	}
	switch t.Kind() {
	case cc.Void:
		return &CType{Kind: Void}
	case cc.Ptr:
		return &CType{Kind: Pointer, Elem: ctype(t.(*cc.PointerType).Elem(), false)}
	case cc.Array:
		return &CType{Kind: Pointer, Elem: ctype(t.(*cc.ArrayType).Elem(), false)}
	case cc.Function:
		return &CType{Kind: Function}
	case cc.Struct:
		tag := t.(*cc.StructType).Tag()
		return &CType{Kind: Struct, Name: tag.SrcStr()}
	case cc.Union:
		tag := t.(*cc.UnionType).Tag()
		return &CType{Kind: Union, Name: tag.SrcStr()}
	case cc.Enum:
		tag := t.(*cc.EnumType).Tag()
		return &CType{Kind: Enum, Name: tag.SrcStr()}
	}
	if s, ok := scalarNames[t.Kind()]; ok {
		return &CType{Kind: Scalar, Name: s}
	}
	return &CType{Kind: Unsupported, Name: t.String()}
}
