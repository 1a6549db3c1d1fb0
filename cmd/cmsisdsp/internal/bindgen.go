package internal

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/goplus/cmsisdsp/internal/config"
)

var bindgenPackage string

var bindgenCmd = &cobra.Command{
	Use:   "bindgen",
	Short: "Generate OUT_DIR/bindings.go from wrapper.h",
	Long: `Bindgen generates the cgo bindings only. The CMSIS headers must already be in
place, pre-placed or fetched.`,
	Args: cobra.NoArgs,
	RunE: runBindgen,
}

func init() {
	bindgenCmd.Flags().StringVar(&bindgenPackage, "package", "", "Go package name of the generated bindings")
	rootCmd.AddCommand(bindgenCmd)
}

func runBindgen(cmd *cobra.Command, args []string) error {
	d, err := newDriver(func(cfg *config.Config) {
		if bindgenPackage != "" {
			cfg.Package = bindgenPackage
		}
	})
	if err != nil {
		return err
	}
	deps, err := d.Bindgen(cmd.Context())
	if err != nil {
		return err
	}
	slog.Info("generated bindings", "path", d.BindingsPath(), "headers", len(deps))
	return nil
}
