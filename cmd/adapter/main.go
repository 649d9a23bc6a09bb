// Command adapter serves the AASIST spoof detector over HTTP.
//
//	adapter                 # same as "adapter serve"
//	adapter serve           # HTTP API (+ optional gRPC health listener)
//	adapter predict a.wav   # score files offline, JSON on stdout
//	adapter version
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/config"
)

// version is set at build time by GoReleaser via -ldflags.
var version = "dev"

const adapterName = "spoof-aasist"

func main() {
	os.Exit(execute(newRootCmd()))
}

// execute runs root and reports a returned error on its stderr. Cobra's own
// error printing is silenced so every failure is reported the same way.
func execute(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "%s: %v\n", adapterName, err)
		return 1
	}
	return 0
}

// rootOptions are flags shared by every subcommand.
type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "adapter",
		Short:         "AASIST audio spoof detection service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")

	root.AddCommand(newServeCmd(opts), newPredictCmd(opts), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the adapter version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", adapterName, version)
		},
	}
}

// loadConfig reads the configuration and builds a logger writing to w.
// Configuration errors are logged with the default logger since the level is
// not known yet.
func loadConfig(opts *rootOptions, w io.Writer) (config.Config, *slog.Logger, error) {
	result, err := config.Loader{EnvFile: opts.envFile}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return config.Config{}, nil, err
	}
	logger := newLogger(result.Config.LogLevel, w)
	for _, warn := range result.Warnings {
		logger.Warn(warn)
	}
	return result.Config, logger, nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
