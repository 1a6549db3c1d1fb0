package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goplus/cmsisdsp/internal/config"
	"github.com/goplus/cmsisdsp/internal/driver"
	"github.com/goplus/cmsisdsp/internal/env"
	"github.com/goplus/cmsisdsp/internal/logutil"
)

var (
	rootDir    string
	configFile string
	verbosity  int
)

var rootCmd = &cobra.Command{
	Use:   "cmsisdsp",
	Short: "cmsisdsp builds CMSIS-DSP and generates its Go bindings",
	Long: `cmsisdsp renders the vendored Makefile, optionally downloads the CMSIS sources,
builds the CMSIS-DSP library with make, generates cgo bindings for wrapper.h
and prints link directives on stdout. Diagnostics go to stderr.

OUT_DIR and TARGET must be set. CMSIS_CPU is embedded at build time or read
from the environment.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logutil.NewLogger(os.Stderr, logutil.Level(verbosity)))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Project directory holding Makefile and wrapper.h")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default <root>/"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads --config, or the project's default config file when it
// exists.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile, false)
	}
	return config.Load(filepath.Join(rootDir, config.DefaultFile), true)
}

// newDriver builds a Driver from the config file, the environment and cfg
// overrides applied by the calling command.
func newDriver(override func(*config.Config)) (*driver.Driver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	e, err := env.FromOS()
	if err != nil {
		var missing *env.MissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("missing build environment: %w", err)
		}
		return nil, err
	}
	return driver.New(cfg, e, rootDir, driver.WithLogger(slog.Default()))
}
