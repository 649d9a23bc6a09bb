package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/pipeline"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/server"
)

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "predict FILE...",
		Short: "Score audio files and print the results as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Logs go to stderr so stdout stays valid JSON.
			cfg, logger, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("threshold") {
				cfg.Threshold = threshold
			}

			eng, err := resolveEngine(cfg, logger)
			if err != nil {
				logger.Error("engine initialization failed", "error", err)
				return err
			}
			defer eng.Close()

			p, err := buildPipeline(cfg, eng, nil, logger)
			if err != nil {
				return err
			}

			// Unreadable paths fail at the receive stage as their own entry.
			uploads := make([]pipeline.Upload, len(args))
			for i, path := range args {
				uploads[i] = pipeline.FileUpload(path)
			}

			outcomes := p.RunBatch(cmd.Context(), uploads)
			entries := make([]server.BatchEntry, len(outcomes))
			failed := 0
			for i, out := range outcomes {
				entries[i] = server.NewBatchEntry(out)
				if out.Err != nil {
					failed++
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(entries); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("predict: %d of %d files failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "override the configured decision threshold")
	return cmd
}
