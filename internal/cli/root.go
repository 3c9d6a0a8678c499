// Package cli holds the cobra commands of the rubricflow binary.
package cli

import "github.com/spf13/cobra"

// NewRootCommand returns the root command with every subcommand attached.
// Running the root itself is left to the caller, which serves the API.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rubricflow",
		Short:         "Generate grading rubrics for worksheet questions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "config.yaml", "Path to config file")
	cmd.AddCommand(
		newRunCommand(),
		newDetectCommand(),
		newWorkflowCommand(),
	)
	return cmd
}
