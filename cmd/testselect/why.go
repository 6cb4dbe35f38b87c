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

var whyCmd = &cobra.Command{
	Use:   "why <test>",
	Short: "Explain why a test is affected by the diff against --base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(flagRoot)
		if err != nil {
			return fmt.Errorf("resolving root: %w", err)
		}
		testPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving test path: %w", err)
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

		path, ok := affected.New(g).FindWhy(testPath, changes)
		return render.Why(os.Stdout, path, ok, render.Format(flagFormat))
	},
}

func init() {
	whyCmd.Flags().StringVar(&flagBase, "base", "", "git ref to diff against (default: project's configured default base)")
}
