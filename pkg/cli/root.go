package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand creates the root command for the flowcap CLI
func NewRootCommand(ctx context.Context, logger *zap.Logger, version, commit, buildTime string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowcap",
		Short: "Browser interaction recorder for test automation",
		Long: `Flowcap records browser interactions into ordered, replayable action
logs. A local daemon bridges the capture layer running in the page with
durable session state, so recordings survive navigations and page
reloads, and sensitive input is scrubbed before it is ever persisted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Set the logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	// Add subcommands - these will be implemented in main package
	// rootCmd.AddCommand(newStartCommand(ctx, logger))
	// rootCmd.AddCommand(newRecordCommand(ctx, logger))
	// rootCmd.AddCommand(newVersionCommand(version, commit, buildTime))

	return rootCmd
}

// ExecuteWithLogger executes the root command with proper error handling
func ExecuteWithLogger(rootCmd *cobra.Command, logger *zap.Logger) error {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}
