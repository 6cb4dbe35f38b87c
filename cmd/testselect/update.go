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

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Incrementally refresh the cached dependency graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(flagRoot)
		if err != nil {
			return fmt.Errorf("resolving root: %w", err)
		}

		cfg, err := config.Load(root)
		if err != nil {
			return err
		}
		mgr := cache.New(root, cfg.CacheDir, cfg.CacheFile)

		g, err := mgr.Load()
		if err != nil {
			return fmt.Errorf("loading cache: %w", err)
		}
		builder := build.New(root, cfg, slog.Default())
		if g == nil {
			g, err = builder.Build(cmd.Context())
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			fmt.Printf("no prior cache found, built fresh graph: %d files, %d edges\n", g.FileCount(), g.EdgeCount())
		} else {
			touched, err := builder.UpdateIncremental(cmd.Context(), g)
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}
			fmt.Printf("updated %d file(s)\n", touched)
		}

		if cfg.CacheEnabled {
			if err := mgr.Save(g); err != nil {
				return fmt.Errorf("saving cache: %w", err)
			}
		}
		return nil
	},
}
