package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ronappleton/rubricflow/internal/workflow"
	"github.com/spf13/cobra"
)

func newWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect workflow files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check an exported workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			wf, err := workflow.Import(data)
			if err != nil {
				var verr *workflow.ValidationError
				if errors.As(err, &verr) {
					for _, p := range verr.Problems() {
						fmt.Fprintln(cmd.ErrOrStderr(), "-", p)
					}
				}
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d steps, %s mode\n", wf.Name, len(wf.Steps), workflow.ModeOf(wf))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the built-in workflow in export format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := workflow.Export(workflow.DefaultWorkflow(), time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})
	return cmd
}
