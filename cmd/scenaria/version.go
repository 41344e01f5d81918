package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/scenaria"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Scenaria",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Scenaria v%s\n", strings.TrimSpace(scenaria.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
