package main

import (
	"log"

	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(0)
	cobra.CheckErr(newRootCmd().Execute())
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "catbox-quiz",
		Short:         "Only-Connect style quiz room server",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().String("env-file", ".env", "path to an optional .env file to load before reading the environment")
	cmd.AddCommand(newServeCmd(), newMigrateCmd())
	return cmd
}
