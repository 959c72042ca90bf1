package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logLevel   string
	jsonOutput bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "ytoutlier",
		Short:         "Track YouTube channels and detect outlier videos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: ./ytoutlier.yaml or ~/.config/ytoutlier/ytoutlier.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newSyncCommand(flags),
		newBatchCommand(flags),
		newDueCommand(flags),
		newChannelCommand(flags),
		newVideosCommand(flags),
		newServeCommand(flags),
	)
	return root
}
