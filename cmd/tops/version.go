package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/tops"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tops",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tops version %s\n", strings.TrimSpace(tops.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
