package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version := Version
		if version == "" {
			version = "0.0.0-dev"
		}
		fmt.Fprintln(cmd.OutOrStdout(), "fatcheck", version)
	},
}
