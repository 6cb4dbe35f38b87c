package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fenwicklabs/testselect/internal/affected"
	"github.com/fenwicklabs/testselect/internal/cache"
	"github.com/fenwicklabs/testselect/internal/config"
	"github.com/fenwicklabs/testselect/internal/render"
	"github.com/fenwicklabs/testselect/internal/vcsutil"
)

var flagBase string

var affectedCmd = &cobra.Command{
	Use:   "affected",
	Short: "Print the tests and sources affected by the diff against --base",
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
		if g == nil {
			return fmt.Errorf("no cached graph found; run `testselect build` first")
		}

		base := flagBase
		if base == "" {
			base = cfg.DefaultBase
		}
		changes, err := vcsutil.DetectChanges(cmd.Context(), root, base)
		if err != nil {
			return fmt.Errorf("detecting changes: %w", err)
		}
		if vcsutil.CheckThreshold(changes, cfg.MaxAutoReindex) {
			fmt.Fprintf(os.Stderr, "warning: change set exceeds reindex threshold (%d); consider running `testselect build`\n", cfg.MaxAutoReindex)
		}

		result := affected.New(g).FindAffected(changes)
		return render.Affected(os.Stdout, result, render.Format(flagFormat))
	},
}

func init() {
	affectedCmd.Flags().StringVar(&flagBase, "base", "", "git ref to diff against (default: project's configured default base)")
}
