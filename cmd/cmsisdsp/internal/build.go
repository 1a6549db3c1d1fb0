package internal

import (
	"github.com/spf13/cobra"

	"github.com/goplus/cmsisdsp/internal/config"
)

var (
	buildDownload bool
	buildLinkage  = config.Static
	buildJobs     int
	buildPackage  string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build CMSIS-DSP and generate bindings",
	Long: `Build renders the Makefile into OUT_DIR, acquires the CMSIS sources, runs make,
writes OUT_DIR/bindings.go and prints the link directives.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildDownload, "download", false, "Download the CMSIS sources instead of using the pre-placed trees")
	buildCmd.Flags().Var(&buildLinkage, "linkage", "Library linkage: static or dynamic")
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 0, "Parallel make jobs (default: available CPUs)")
	buildCmd.Flags().StringVar(&buildPackage, "package", "", "Go package name of the generated bindings")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	d, err := newDriver(buildOverrides(cmd))
	if err != nil {
		return err
	}
	return d.Run(cmd.Context())
}

// buildOverrides applies the flags set on the command line over the loaded
// configuration.
func buildOverrides(cmd *cobra.Command) func(*config.Config) {
	flags := cmd.Flags()
	return func(cfg *config.Config) {
		if flags.Changed("download") {
			cfg.Sources = config.PrePlaced
			if buildDownload {
				cfg.Sources = config.Download
			}
		}
		if flags.Changed("linkage") {
			cfg.Linkage = buildLinkage
		}
		if flags.Changed("jobs") {
			cfg.Jobs = buildJobs
		}
		if flags.Changed("package") {
			cfg.Package = buildPackage
		}
	}
}
