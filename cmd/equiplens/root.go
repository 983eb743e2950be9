package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	debug bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "equiplens",
		Short:         "EquipLens CLI: analyze equipment parameter CSV files",
		Long:          `EquipLens profiles equipment parameter data, computes descriptive statistics, IQR outliers and correlations, and writes an executive summary with an AI provider or rule-based fallback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging on stderr")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newMigrateCmd(),
		newKeysCmd(),
	)
	return cmd
}

// logger writes to stderr so stdout carries only command output.
func (o *rootOptions) logger(stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}
