// Package commands implements the smsrelay command line.
package commands

import (
	"github.com/spf13/cobra"
)

var envFile string

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "smsrelay",
		Short:         "Relay SMS events from registered devices to Telegram",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(serveCmd(), sendCmd(), versionCmd())
	return root
}
