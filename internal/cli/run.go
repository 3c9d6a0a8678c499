package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ronappleton/rubricflow/internal/workflow"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var (
		workflowFile string
		question     string
		questionType string
		format       string
		image        string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workflow once and print the rubric",
		Long: "Run executes a workflow file, or the built-in default workflow, against a question " +
			"given as text or detected from an image. Progress goes to stderr and the rubric to stdout.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if image == "" && strings.TrimSpace(question) == "" {
				return errors.New("one of --question or --image is required")
			}

			wf := workflow.DefaultWorkflow()
			if workflowFile != "" {
				data, err := os.ReadFile(workflowFile)
				if err != nil {
					return err
				}
				if wf, err = workflow.Import(data); err != nil {
					return err
				}
			}

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			in := workflow.QuestionInput{Text: question, Type: questionType, Format: format}
			if image != "" {
				dataURL, err := readImage(image)
				if err != nil {
					return err
				}
				q, err := e.client.DetectQuestion(cmd.Context(), dataURL, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Detected %s question: %s\n", q.Type, q.Text)
				in = workflow.QuestionInput{Text: q.Text, Type: q.Type, Format: q.Format}
			}
			in = workflow.WithDefaultType(wf, in)

			engine := workflow.NewEngine(e.client, e.logger)
			stderr := cmd.ErrOrStderr()
			fmt.Fprintf(stderr, "Running %q in %s mode\n", wf.Name, workflow.ModeOf(wf))
			out, err := engine.Execute(cmd.Context(), wf, in, func(index int, message string) {
				fmt.Fprintf(stderr, "[step %d] %s\n", index+1, firstLine(message))
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&workflowFile, "workflow", "w", "", "Exported workflow file (default: built-in workflow)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question text")
	cmd.Flags().StringVarP(&questionType, "type", "t", "", "Question type (linear workflows default to short_answer)")
	cmd.Flags().StringVar(&format, "format", "", "Question format description")
	cmd.Flags().StringVar(&image, "image", "", "Worksheet image to detect the question from")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
