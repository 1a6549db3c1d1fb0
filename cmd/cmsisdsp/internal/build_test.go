package internal

import (
	"testing"

	"github.com/goplus/cmsisdsp/internal/config"
)

func resetBuildFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		flags := buildCmd.Flags()
		for _, name := range []string{"download", "linkage", "jobs", "package"} {
			f := flags.Lookup(name)
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
}

func TestBuildOverrides(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		sources config.SourceMode
		want    config.SourceMode
	}{
		{"download disabled", []string{"--download=false"}, config.Download, config.PrePlaced},
		{"download enabled", []string{"--download"}, config.PrePlaced, config.Download},
		{"download unset", nil, config.Download, config.Download},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetBuildFlags(t)
			if err := buildCmd.Flags().Parse(tt.args); err != nil {
				t.Fatal(err)
			}
			cfg := config.Default()
			cfg.Sources = tt.sources
			buildOverrides(buildCmd)(cfg)
			if cfg.Sources != tt.want {
				t.Errorf("sources = %v, want %v", cfg.Sources, tt.want)
			}
		})
	}

	t.Run("other flags", func(t *testing.T) {
		resetBuildFlags(t)
		if err := buildCmd.Flags().Parse([]string{"--linkage", "dynamic", "-j", "3", "--package", "dsp"}); err != nil {
			t.Fatal(err)
		}
		cfg := config.Default()
		buildOverrides(buildCmd)(cfg)
		if cfg.Linkage != config.Dynamic || cfg.Jobs != 3 || cfg.Package != "dsp" {
			t.Errorf("got linkage=%v jobs=%d package=%q", cfg.Linkage, cfg.Jobs, cfg.Package)
		}
	})
}
