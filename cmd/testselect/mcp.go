package main

import (
	"log/slog"

	mcptransport "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/fenwicklabs/testselect/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server (stdio transport)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := mcpserver.NewServer()
		slog.Info("starting MCP server (stdio)")
		return mcptransport.ServeStdio(s)
	},
}
