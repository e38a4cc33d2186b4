package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"multimodal-rag/internal/models"
)

func newIndexCommand(a *app) *cobra.Command {
	var (
		pdfPath       string
		indexID       string
		maxConcurrent int
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Extract, normalize and index a PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			ctx := cmd.Context()

			doc, err := os.ReadFile(pdfPath)
			if err != nil {
				return fmt.Errorf("failed to read PDF: %w", err)
			}
			a.log.Info("processing PDF", "path", pdfPath, "index_id", indexID,
				"extractor", a.cfg.Extractor.Backend, "embedding_model", a.cfg.Embedding.Model)

			p, err := a.pipeline(ctx, components{ocr: true, index: true})
			if err != nil {
				return err
			}
			p.Builder.MaxConcurrent = maxConcurrent

			startTime := time.Now()
			p.Builder.Progress = func(processed, total int) {
				elapsed := time.Since(startTime)
				remaining := elapsed*time.Duration(total)/time.Duration(processed) - elapsed
				a.log.Info("embedding progress", "processed", processed, "total", total,
					"percent", fmt.Sprintf("%.1f", float64(processed)/float64(total)*100),
					"remaining", remaining.Round(time.Second))
			}

			h, chunks, err := p.Index(ctx, doc, indexID)
			if err != nil {
				return err
			}

			a.log.Info("index built", "index_id", indexID, "entries", h.Manifest().Count,
				"duration", time.Since(startTime).Round(time.Millisecond))
			printChunkStatistics(cmd.OutOrStdout(), chunks, h.Manifest().Count)
			return nil
		},
	}

	cmd.Flags().StringVar(&pdfPath, "pdf", "", "path to the PDF file (required)")
	cmd.Flags().StringVar(&indexID, "index-id", "", "name of the index to build (required)")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 1, "maximum concurrent embedding requests")
	cmd.Flags().String("extractor", "", "extractor backend: local or unstructured")
	cmd.Flags().String("image-dir", "", "directory for extracted images")
	_ = cmd.MarkFlagRequired("pdf")
	_ = cmd.MarkFlagRequired("index-id")
	return cmd
}

// printChunkStatistics prints chunk counts per kind and page coverage
func printChunkStatistics(w io.Writer, chunks []models.Chunk, indexed int) {
	kindCount := make(map[models.Kind]int)
	pages := make(map[int]struct{})
	totalLength := 0

	for _, c := range chunks {
		kindCount[c.Kind]++
		totalLength += len(c.Content)
		if c.Page > 0 {
			pages[c.Page] = struct{}{}
		}
	}

	fmt.Fprintf(w, "Chunks: %d normalized, %d indexed, %d skipped as empty\n", len(chunks), indexed, len(chunks)-indexed)
	if len(chunks) > 0 {
		fmt.Fprintf(w, "Average chunk length: %d characters\n", totalLength/len(chunks))
	}
	fmt.Fprintf(w, "Pages covered: %d\n", len(pages))

	kinds := make([]string, 0, len(kindCount))
	for k := range kindCount {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	fmt.Fprintln(w, "Chunks by kind:")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-6s %d\n", k, kindCount[models.Kind(k)])
	}
}
