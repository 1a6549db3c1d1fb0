package link

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goplus/cmsisdsp/internal/config"
)

func TestDirectives(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "builddir")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	e := NewEmitter(&buf, "")
	got, err := e.LinkSearch(dir)
	if err != nil {
		t.Fatalf("LinkSearch: %v", err)
	}
	if got != canonical || !filepath.IsAbs(got) {
		t.Errorf("LinkSearch = %q, want %q", got, canonical)
	}
	if err := e.LinkLib(config.Static, "CMSISDSP"); err != nil {
		t.Fatal(err)
	}
	if err := e.LinkLib(config.Dynamic, "CMSISDSP"); err != nil {
		t.Fatal(err)
	}
	if err := e.RerunIfChanged("/src/wrapper.h"); err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"cmsis:link-search=" + canonical,
		"cmsis:link-lib=static=CMSISDSP",
		"cmsis:link-lib=CMSISDSP",
		"cmsis:rerun-if-changed=/src/wrapper.h",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestLinkSearchResolvesSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	realDir := filepath.Join(root, "realDir")
	if err := os.Mkdir(realDir, 0o755); err != nil {
		t.Fatal(err)
	}
	alias := filepath.Join(root, "alias")
	if err := os.Symlink(realDir, alias); err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.EvalSymlinks(realDir)

	var buf bytes.Buffer
	got, err := NewEmitter(&buf, "x:").LinkSearch(alias)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("LinkSearch = %q, want %q", got, want)
	}
	if buf.String() != "x:link-search="+want+"\n" {
		t.Errorf("directive = %q", buf.String())
	}
}

func TestLinkSearchMissing(t *testing.T) {
	var buf bytes.Buffer
	missing := filepath.Join(t.TempDir(), "builddir")
	_, err := NewEmitter(&buf, "").LinkSearch(missing)
	if err == nil || !strings.Contains(err.Error(), missing) {
		t.Fatalf("err = %v, want it to name %s", err, missing)
	}
	if buf.Len() != 0 {
		t.Errorf("directive emitted for missing dir: %q", buf.String())
	}
}

func TestLDFlags(t *testing.T) {
	if diff := cmp.Diff([]string{filepath.Join("/b", "libCMSISDSP.a")}, LDFlags(config.Static, "/b", "CMSISDSP")); diff != "" {
		t.Errorf("static (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-L/b", "-lCMSISDSP"}, LDFlags(config.Dynamic, "/b", "CMSISDSP")); diff != "" {
		t.Errorf("dynamic (-want +got):\n%s", diff)
	}
	if got := ArchiveName(config.Static, "CMSISDSP"); got != "libCMSISDSP.a" {
		t.Errorf("ArchiveName = %q", got)
	}
}
