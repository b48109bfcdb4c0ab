package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	env        string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "intentest",
		Short:         "intentest runs natural-language UI tests against a live browser",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "intentest.yaml", "Path to configuration file")
	cmd.PersistentFlags().StringVarP(&flags.env, "env", "e", "", "Environment overlay to apply (environments/<env>.yaml)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newPatternsCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
