package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/smsrelay"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the smsrelay version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), smsrelay.Version)
		},
	}
}
