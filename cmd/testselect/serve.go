package main

import (
	"github.com/spf13/cobra"

	"github.com/fenwicklabs/testselect/internal/server"
)

var flagPort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP selector daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Run(flagPort)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagPort, "port", "8080", "port to listen on")
}
