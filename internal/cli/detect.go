package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

func newDetectCommand() *cobra.Command {
	var image, prompt string
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect the question in a worksheet image",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if image == "" {
				return errors.New("--image is required")
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			dataURL, err := readImage(image)
			if err != nil {
				return err
			}
			q, err := e.client.DetectQuestion(cmd.Context(), dataURL, prompt)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(q)
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "Path to the worksheet image")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Extra instructions for detection")
	return cmd
}
