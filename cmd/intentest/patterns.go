package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/intentest/intentest/internal/config"
	"github.com/intentest/intentest/internal/pattern"
)

func newPatternsCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the step patterns the compiler understands",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Custom mappings come from the config when one is present;
			// the builtin vocabulary needs none.
			registry := pattern.NewRegistry()
			if cfg, err := config.Load(root.configPath, root.env); err == nil {
				registry, err = buildRegistry(cfg)
				if err != nil {
					return err
				}
			}

			for _, p := range registry.Patterns() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	return cmd
}
