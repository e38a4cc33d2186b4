package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"multimodal-rag/internal/index"
	"multimodal-rag/internal/models"
	"multimodal-rag/internal/pipeline"
)

func newAskCommand(a *app) *cobra.Command {
	var (
		indexID     string
		query       string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer a question from an index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			ctx := cmd.Context()

			if !interactive && strings.TrimSpace(query) == "" {
				return fmt.Errorf("query is required in non-interactive mode, use -q 'your question'")
			}

			p, err := a.pipeline(ctx, components{index: true, llm: true})
			if err != nil {
				return err
			}
			h, err := p.Retriever.Load(ctx, indexID)
			if err != nil {
				return err
			}

			k := a.cfg.Retrieval.TopK
			if interactive {
				return runInteractiveMode(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), p, h, k)
			}

			answer, err := a.processQuery(ctx, p, h, query, k)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatAnswer(answer))
			return nil
		},
	}

	cmd.Flags().StringVar(&indexID, "index-id", "", "index to query (required)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "question to answer (non-interactive mode)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "run in interactive mode")
	cmd.Flags().IntP("top-k", "k", 0, "number of chunks to retrieve (default retrieval.top_k)")
	cmd.Flags().Bool("strict", false, "fail when the index was built with another embedding model")
	cmd.Flags().String("llm-provider", "", "language model provider: ollama or gemini")
	cmd.Flags().String("llm-model", "", "language model name")
	_ = cmd.MarkFlagRequired("index-id")
	return cmd
}

func (a *app) processQuery(ctx context.Context, p *pipeline.Pipeline, h index.Handle, query string, k int) (*models.Answer, error) {
	startTime := time.Now()
	answer, err := p.Assembler.Answer(ctx, query, h, k)
	if err != nil {
		return nil, err
	}
	a.log.Debug("query processed", "duration", time.Since(startTime))
	return answer, nil
}

func runInteractiveMode(ctx context.Context, in io.Reader, out io.Writer, p *pipeline.Pipeline, h index.Handle, k int) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintf(out, "Document assistant for %q - ask questions about the document (type 'exit' to quit)\n", h.Manifest().IndexID)

	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			break
		}
		if input == "" {
			continue
		}

		answer, err := p.Assembler.Answer(ctx, input, h, k)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, formatAnswer(answer))
	}
	return scanner.Err()
}

func formatAnswer(answer *models.Answer) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(answer.Text))
	sb.WriteString("\n")

	if len(answer.Citations) > 0 {
		sb.WriteString("\nSources:\n")
		for i, c := range answer.Citations {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, c)
		}
	}

	return sb.String()
}
