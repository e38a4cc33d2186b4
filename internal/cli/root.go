// Package cli implements the docqa command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"multimodal-rag/internal/config"
	"multimodal-rag/internal/logger"
)

// flagKeys maps command line flags to the configuration keys they override
var flagKeys = map[string]string{
	"log-level":          "log.level",
	"log-format":         "log.format",
	"extractor":          "extractor.backend",
	"image-dir":          "extractor.image_dir",
	"embedding-provider": "embedding.provider",
	"embedding-model":    "embedding.model",
	"llm-provider":       "llm.provider",
	"llm-model":          "llm.model",
	"store":              "store.backend",
	"store-dir":          "store.dir",
	"top-k":              "retrieval.top_k",
	"strict":             "retrieval.strict_embedding_model",
}

// app is the state shared by all commands of one invocation
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
	gemini  *genai.Client
	closers []func()
}

// NewRootCommand builds the docqa command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Ask questions about PDF documents, answered with page citations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./docqa.yaml when present)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("embedding-provider", "", "embedding provider: ollama, gemini or hashing")
	pf.String("embedding-model", "", "embedding model name")
	pf.String("store", "", "index store: file or postgres")
	pf.String("store-dir", "", "directory of the file index store")

	root.AddCommand(newIndexCommand(a), newAskCommand(a), newPreviewCommand(a))
	return root
}

// Execute runs the command line and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	a.log.Debug("configuration loaded", "file", v.ConfigFileUsed())
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.gemini = nil
}
