package bindgen

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGoType(t *testing.T) {
	g := &typer{prefix: "C", bad: map[string]bool{"float128_t": true}}
	tests := []struct {
		in   *CType
		want string
	}{
		{scalar("unsigned int"), "C.uint"},
		{scalar("signed char"), "C.schar"},
		{scalar("unsigned long long"), "C.ulonglong"},
		{named("q31_t"), "C.q31_t"},
		{&CType{Kind: Struct, Name: "arm_fir_instance_f32"}, "C.struct_arm_fir_instance_f32"},
		{&CType{Kind: Union, Name: "u"}, "C.union_u"},
		{&CType{Kind: Enum, Name: "e"}, "C.enum_e"},
		{ptr(ptr(named("q15_t"))), "**C.q15_t"},
		{ptr(&CType{Kind: Void}), "unsafe.Pointer"},
		{ptr(&CType{Kind: Function}), "unsafe.Pointer"},
	}
	for _, tt := range tests {
		got, err := g.goType(tt.in)
		if err != nil {
			t.Errorf("goType(%+v): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("goType(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if !g.unsafe {
		t.Error("unsafe.Pointer use not recorded")
	}

	for _, in := range []*CType{
		nil,
		{Kind: Void},
		{Kind: Struct},
		{Kind: Unsupported, Name: "long double"},
		scalar("_Bool"),
		named("float128_t"),
		ptr(named("float128_t")),
	} {
		if _, err := g.goType(in); !errors.Is(err, errUnsupported) {
			t.Errorf("goType(%+v) error = %v, want errUnsupported", in, err)
		}
	}
}

func TestCTypesPrefix(t *testing.T) {
	g := &typer{prefix: "ctypes"}
	got, err := g.goType(ptr(scalar("int")))
	if err != nil {
		t.Fatal(err)
	}
	if got != "*ctypes.int" {
		t.Errorf("got %q", got)
	}
}

func TestExportName(t *testing.T) {
	for in, want := range map[string]string{
		"arm_add_f32": "Arm_add_f32",
		"ARM_MATH_PI": "ARM_MATH_PI",
		"_private":    "X_private",
		"q31_t":       "Q31_t",
	} {
		if got := exportName(in); got != want {
			t.Errorf("exportName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParamNames(t *testing.T) {
	params := []Param{
		{Name: "pSrc"},
		{Name: "type"},
		{},
		{Name: "C"},
		{Name: "arg4"},
		{},
		{Name: "range"},
	}
	want := []string{"pSrc", "type_", "arg2", "C_", "arg4", "arg5", "range_"}
	if diff := cmp.Diff(want, paramNames(params)); diff != "" {
		t.Errorf("paramNames (-want +got):\n%s", diff)
	}
	dup := paramNames([]Param{{Name: "arg1"}, {}})
	if diff := cmp.Diff([]string{"arg1", "arg1_"}, dup); diff != "" {
		t.Errorf("paramNames collision (-want +got):\n%s", diff)
	}
}

func TestConstLit(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{int64(-3), "-3", true},
		{uint64(1) << 63, "9223372036854775808", true},
		{0.5, "0.5", true},
		{float64(1e21), "1e+21", true},
		{float64(4), "4.0", true},
		{"v1.16", `"v1.16"`, true},
		{nil, "", false},
	}
	for _, tt := range tests {
		got, ok := constLit(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("constLit(%v) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
