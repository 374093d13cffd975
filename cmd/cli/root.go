package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand builds the command tree around ctx. The caller closes ctx
// once the command has run, whether it failed or not.
func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "advertdna",
		Short:         "Register advertisement clips, detect duplicates and probe streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFile, "config", "c", "", "Configuration file path (environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")

	rootCmd.AddCommand(newInitCommand(ctx))
	rootCmd.AddCommand(newRegisterCommand(ctx))
	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))

	return rootCmd
}
