package bindgen

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestABIFor(t *testing.T) {
	tests := []struct {
		triple, goos, goarch string
	}{
		{"thumbv7em-none-eabihf", "linux", "arm"},
		{"armv7-unknown-linux-gnueabihf", "linux", "arm"},
		{"aarch64-apple-darwin", "darwin", "arm64"},
		{"x86_64-pc-windows-msvc", "windows", "amd64"},
		{"i686-unknown-linux-gnu", "linux", "386"},
		{"riscv64gc-unknown-linux-gnu", "linux", "riscv64"},
		{"", runtime.GOOS, runtime.GOARCH},
	}
	for _, tt := range tests {
		goos, goarch := abiFor(tt.triple)
		if goos != tt.goos || goarch != tt.goarch {
			t.Errorf("abiFor(%q) = %s/%s, want %s/%s", tt.triple, goos, goarch, tt.goos, tt.goarch)
		}
	}
}

const testHeader = `
typedef float float32_t;
typedef struct { float32_t *pData; unsigned short numRows; } arm_matrix_instance_f32;

#define BLOCK_SIZE 32
#define SCALE 0.5
#define PI_F 3.14159265358979f
#define NEG_EPS (-1e-3)
#define SQUARE(x) ((x)*(x))

int arm_add(int a, int b);
void arm_scale_f32(const float32_t *pSrc, float32_t scale, float32_t *pDst, unsigned int blockSize);
int arm_log(const char *fmt, ...);
void __arm_private(void);
`

func requireHostCC(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("cc"); err != nil {
		if _, err := exec.LookPath("gcc"); err != nil {
			t.Skip("no host C compiler")
		}
	}
}

func TestCParser(t *testing.T) {
	requireHostCC(t)
	dir := t.TempDir()
	header := filepath.Join(dir, "wrapper.h")
	if err := os.WriteFile(header, []byte(testHeader), 0o644); err != nil {
		t.Fatal(err)
	}
	unit, err := CParser{}.Parse(context.Background(), &ParseRequest{Header: header})
	if err != nil {
		t.Skipf("C front end unavailable on this host: %v", err)
	}

	funcs := make(map[string]Func)
	for _, fn := range unit.Funcs {
		funcs[fn.Name] = fn
	}
	add, ok := funcs["arm_add"]
	if !ok {
		t.Fatalf("arm_add not found in %v", unit.Funcs)
	}
	want := Func{
		Name:   "arm_add",
		Params: []Param{{Name: "a", Type: scalar("int")}, {Name: "b", Type: scalar("int")}},
		Result: scalar("int"),
		File:   header,
	}
	if diff := cmp.Diff(want, add); diff != "" {
		t.Errorf("arm_add (-want +got):\n%s", diff)
	}
	if !funcs["arm_log"].Variadic {
		t.Error("arm_log not reported variadic")
	}
	if p := funcs["__arm_private"].Params; len(p) != 0 {
		t.Errorf("f(void) params = %v, want none", p)
	}
	if scale := funcs["arm_scale_f32"]; len(scale.Params) != 4 || scale.Params[1].Type.Name != "float32_t" {
		t.Errorf("arm_scale_f32 = %+v", scale)
	}

	typedefs := make(map[string]*CType)
	for _, td := range unit.Typedefs {
		typedefs[td.Name] = td.Type
	}
	if got := typedefs["float32_t"]; got == nil || got.Kind != Scalar || got.Name != "float" {
		t.Errorf("float32_t = %+v", got)
	}
	if got := typedefs["arm_matrix_instance_f32"]; got == nil || got.Kind != Struct {
		t.Errorf("arm_matrix_instance_f32 = %+v", got)
	}

	macros := make(map[string]any)
	for _, m := range unit.Macros {
		macros[m.Name] = m.Value
	}
	if got := macros["BLOCK_SIZE"]; got != int64(32) {
		t.Errorf("BLOCK_SIZE = %v", got)
	}
	if got := macros["SCALE"]; got != 0.5 {
		t.Errorf("SCALE = %v", got)
	}
	if got := macros["PI_F"]; got != 3.14159265358979 {
		t.Errorf("PI_F = %v", got)
	}
	if got := macros["NEG_EPS"]; got != -1e-3 {
		t.Errorf("NEG_EPS = %v", got)
	}
	if _, ok := macros["SQUARE"]; ok {
		t.Error("function-like macro collected")
	}
	if diff := cmp.Diff([]string{header}, unit.Files); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
}

func TestFloatLiteral(t *testing.T) {
	tests := []struct {
		src  []string
		want float64
		ok   bool
	}{
		{[]string{"0.5"}, 0.5, true},
		{[]string{"3.14159265358979f"}, 3.14159265358979, true},
		{[]string{"1e-3"}, 1e-3, true},
		{[]string{"2.F"}, 2, true},
		{[]string{"1.0L"}, 1, true},
		{[]string{"(", "-", "0.25f", ")"}, -0.25, true},
		{[]string{"0x1.8p1f"}, 3, true},
		{[]string{"32"}, 0, false},
		{[]string{"0x7fffffff"}, 0, false},
		{[]string{"0xEF"}, 0, false},
		{[]string{"1", "+", "0.5"}, 0, false},
		{[]string{"\"1.5\""}, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := floatLiteral(tt.src)
		if ok != tt.ok || got != tt.want {
			t.Errorf("floatLiteral(%q) = %v, %v, want %v, %v", tt.src, got, ok, tt.want, tt.ok)
		}
	}
}

const cmsisHeader = `
#include <stdint.h>
#include <math.h>

typedef float float32_t;

typedef enum {
  ARM_MATH_SUCCESS = 0,
  ARM_MATH_ARGUMENT_ERROR = -1
} arm_status;

typedef struct {
  uint16_t numRows;
  float32_t *pData;
} arm_matrix_instance_f32;

#define PI 3.14159265358979f

static inline int32_t __private_noise(int32_t x) { return x; }

void arm_abs_f32(const float32_t *pSrc, float32_t *pDst, uint32_t blockSize);
arm_status arm_mat_init_f32(arm_matrix_instance_f32 *S, uint16_t nRows, float32_t *pData);
`

// The bare-metal triple must not make a hosted <math.h> unparseable.
func TestCParserBareMetalTarget(t *testing.T) {
	requireHostCC(t)
	t.Setenv("CC", "")
	dir := t.TempDir()
	header := filepath.Join(dir, "wrapper.h")
	if err := os.WriteFile(header, []byte(cmsisHeader), 0o644); err != nil {
		t.Fatal(err)
	}
	req := &ParseRequest{Header: header}
	if _, err := (CParser{}).Parse(context.Background(), req); err != nil {
		t.Skipf("C front end unavailable on this host: %v", err)
	}

	req.Target = "thumbv7em-none-eabihf"
	unit, err := CParser{}.Parse(context.Background(), req)
	if err != nil {
		t.Fatalf("Parse for %s: %v", req.Target, err)
	}
	var funcs []string
	for _, fn := range unit.Funcs {
		if fn.File == header {
			funcs = append(funcs, fn.Name)
		}
	}
	if diff := cmp.Diff([]string{"__private_noise", "arm_abs_f32", "arm_mat_init_f32"}, funcs); diff != "" {
		t.Errorf("header functions (-want +got):\n%s", diff)
	}
	for _, m := range unit.Macros {
		if m.Name == "PI" && m.Value != 3.14159265358979 {
			t.Errorf("PI = %v", m.Value)
		}
	}
}
