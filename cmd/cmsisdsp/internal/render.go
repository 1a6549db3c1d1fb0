package internal

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the Makefile template into OUT_DIR",
	Args:  cobra.NoArgs,
	RunE:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	d, err := newDriver(nil)
	if err != nil {
		return err
	}
	path, err := d.Render()
	if err != nil {
		return err
	}
	slog.Info("rendered makefile", "path", path)
	return nil
}
