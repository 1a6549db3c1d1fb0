package bindgen

import (
	"fmt"
	"go/token"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var errUnsupported = errors.New("not expressible in cgo")

// cgo spellings of the C scalar types.
var cgoScalars = map[string]string{
	"char":               "char",
	"signed char":        "schar",
	"unsigned char":      "uchar",
	"short":              "short",
	"unsigned short":     "ushort",
	"int":                "int",
	"unsigned int":       "uint",
	"long":               "long",
	"unsigned long":      "ulong",
	"long long":          "longlong",
	"unsigned long long": "ulonglong",
	"float":              "float",
	"double":             "double",
}

// typer spells C types as Go types.
type typer struct {
	prefix string          // qualifier for scalar types
	bad    map[string]bool // typedefs that cannot be expressed
	unsafe bool            // set once unsafe.Pointer is used
}

func (g *typer) goType(t *CType) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: missing type", errUnsupported)
	}
	switch t.Kind {
	case Scalar:
		if s, ok := cgoScalars[t.Name]; ok {
			return g.prefix + "." + s, nil
		}
	case Named:
		if g.bad[t.Name] {
			break
		}
		return "C." + t.Name, nil
	case Struct, Union, Enum:
		if t.Name == "" {
			return "", fmt.Errorf("%w: anonymous %s", errUnsupported, kindWord[t.Kind])
		}
		return "C." + kindWord[t.Kind] + "_" + t.Name, nil
	case Pointer:
		if t.Elem != nil && (t.Elem.Kind == Void || t.Elem.Kind == Function) {
			g.unsafe = true
			return "unsafe.Pointer", nil
		}
		elem, err := g.goType(t.Elem)
		if err != nil {
			return "", err
		}
		return "*" + elem, nil
	case Void:
		return "", fmt.Errorf("%w: void value", errUnsupported)
	}
	return "", fmt.Errorf("%w: %s", errUnsupported, describe(t))
}

var kindWord = map[TypeKind]string{Struct: "struct", Union: "union", Enum: "enum"}

func describe(t *CType) string {
	switch t.Kind {
	case Named:
		return "typedef " + t.Name
	case Function:
		return "function type"
	}
	if t.Name != "" {
		return t.Name
	}
	return "unknown type"
}

// typedefOK reports whether a typedef of t can be aliased as C.<name>.
func (g *typer) typedefOK(t *CType) bool {
	switch t.Kind {
	case Struct, Union, Enum, Pointer, Function:
		return true
	case Named:
		return !g.bad[t.Name]
	case Scalar:
		_, ok := cgoScalars[t.Name]
		return ok
	}
	return false
}

// exportName turns a C identifier into an exported Go identifier.
func exportName(name string) string {
	if name == "" {
		return ""
	}
	if name[0] == '_' {
		return "X" + name
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// paramNames returns usable, distinct Go names for a parameter list.
func paramNames(params []Param) []string {
	names := make([]string, len(params))
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		n := p.Name
		if n == "" {
			n = "arg" + strconv.Itoa(i)
		}
		if n == "C" || n == "unsafe" || token.IsKeyword(n) {
			n += "_"
		}
		for seen[n] {
			n += "_"
		}
		seen[n] = true
		names[i] = n
	}
	return names
}

// constLit renders a macro value as a Go constant literal.
func constLit(v any) (string, bool) {
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "", false
		}
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, true
	case string:
		return strconv.Quote(v), true
	}
	return "", false
}
