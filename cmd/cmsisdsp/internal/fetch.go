package internal

import (
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and extract the CMSIS source archives into OUT_DIR",
	Long: `Fetch downloads every configured archive and extracts it under OUT_DIR,
regardless of the configured source mode.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	d, err := newDriver(nil)
	if err != nil {
		return err
	}
	return d.Fetch(cmd.Context())
}
