package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fenwicklabs/testselect/internal/build"
	"github.com/fenwicklabs/testselect/internal/cache"
	"github.com/fenwicklabs/testselect/internal/config"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Crawl the project and build a fresh dependency graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(flagRoot)
		if err != nil {
			return fmt.Errorf("resolving root: %w", err)
		}

		cfg, err := config.Load(root)
		if err != nil {
			return err
		}

		builder := build.New(root, cfg, slog.Default())
		g, err := builder.Build(cmd.Context())
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}

		if cfg.CacheEnabled {
			mgr := cache.New(root, cfg.CacheDir, cfg.CacheFile)
			if err := mgr.Save(g); err != nil {
				return fmt.Errorf("saving cache: %w", err)
			}
		}

		fmt.Printf("built graph: %d files, %d edges\n", g.FileCount(), g.EdgeCount())
		return nil
	},
}
