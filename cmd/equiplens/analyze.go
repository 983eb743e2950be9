package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kiranshivaraju/equiplens/internal/ai/providers"
	"github.com/kiranshivaraju/equiplens/internal/cache"
	"github.com/kiranshivaraju/equiplens/internal/config"
	"github.com/kiranshivaraju/equiplens/internal/filestore"
	"github.com/kiranshivaraju/equiplens/internal/insight"
	"github.com/kiranshivaraju/equiplens/internal/notify"
	"github.com/kiranshivaraju/equiplens/internal/pipeline"
	"github.com/kiranshivaraju/equiplens/internal/queue"
	"github.com/kiranshivaraju/equiplens/internal/store"
	"github.com/kiranshivaraju/equiplens/internal/upload"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

const localAttempts = 3

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "analyze <file.csv>",
		Short: "Run every analysis phase on a CSV file and print the result",
		Long: `Runs profiling, statistical analysis and the executive summary in-process,
without a database or Redis. AI_PROVIDER and its credentials select the
insight generator; without them the rule-based fallback is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported --format: %s (use json|yaml)", format)
			}

			cfg, err := config.LoadAI()
			if err != nil {
				return err
			}
			logger := root.logger(cmd.ErrOrStderr())
			generator, err := providers.NewGenerator(cfg.AI, logger)
			if err != nil {
				return fmt.Errorf("create insight generator: %w", err)
			}

			d, err := analyzeFile(cmd.Context(), args[0], generator, cfg.Cache, logger)
			if err != nil {
				return err
			}
			if err := writeDataset(cmd.OutOrStdout(), d, format); err != nil {
				return err
			}
			if d.Status == models.DatasetStatusFailed {
				return fmt.Errorf("analysis failed: %s", deref(d.ErrorMessage))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json|yaml")
	return cmd
}

// analyzeFile runs the full pipeline on path against in-memory components
// and returns the final dataset.
func analyzeFile(ctx context.Context, path string, generator models.InsightGenerator, ttl config.CacheConfig, logger *slog.Logger) (*models.Dataset, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	st := store.NewMemoryStore()
	owner, err := st.GetDefaultOwner(ctx)
	if err != nil {
		return nil, err
	}
	memCache := cache.NewMemoryCache()
	files := filestore.NewMemory()
	insights := insight.NewService(generator, memCache, ttl, logger)

	mux := queue.NewMux()
	tasks := queue.NewLocal(mux.Dispatch, localAttempts, logger)
	defer tasks.Close()

	orchestrator := pipeline.NewOrchestrator(st, files, insights, tasks, notify.NewLogNotifier(logger), memCache,
		pipeline.WithLogger(logger))
	orchestrator.RegisterHandlers(mux)
	uploads := upload.NewService(st, files, tasks, insights, upload.WithLogger(logger))

	d, err := uploads.Upload(ctx, owner.ID, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	tasks.Wait()

	if dead := tasks.DeadLetters(); len(dead) > 0 {
		return nil, fmt.Errorf("%d pipeline task(s) exhausted their attempts", len(dead))
	}
	return st.GetDataset(ctx, d.ID)
}

// writeDataset prints d with its JSON field names in the chosen format.
func writeDataset(w io.Writer, d *models.Dataset, format string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("decode dataset: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
