package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPreviewCommand(a *app) *cobra.Command {
	var pdfPath string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the normalized chunks of a PDF as JSON without indexing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			ctx := cmd.Context()

			doc, err := os.ReadFile(pdfPath)
			if err != nil {
				return fmt.Errorf("failed to read PDF: %w", err)
			}

			p, err := a.pipeline(ctx, components{ocr: true})
			if err != nil {
				return err
			}
			chunks, err := p.Ingest(ctx, doc)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(chunks)
		},
	}

	cmd.Flags().StringVar(&pdfPath, "pdf", "", "path to the PDF file (required)")
	cmd.Flags().String("extractor", "", "extractor backend: local or unstructured")
	cmd.Flags().String("image-dir", "", "directory for extracted images")
	_ = cmd.MarkFlagRequired("pdf")
	return cmd
}
