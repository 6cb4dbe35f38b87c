package main

import "github.com/spf13/cobra"

var (
	flagRoot   string
	flagFormat string
)

var rootCmd = &cobra.Command{
	Use:   "testselect",
	Short: "Build a JS/TS import dependency graph and select tests affected by a set of changes.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "project root")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "table", "output format: table or json")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(affectedCmd)
	rootCmd.AddCommand(whyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}
