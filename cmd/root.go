package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alttext",
		Short: "EPUB image captioning and accessibility annotation",
		Long: `Alttext describes every image in an EPUB with a vision model, refines the
captions in one batch call and writes them back as alt text.

It can also run the full scan-to-EPUB conversion: layout analysis, OCR
assembly, captioning and upload to S3.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			initLogging(verbose)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./alttext.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newAnnotateCmd())
	cmd.AddCommand(newConvertCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command with completions, manpages and --version,
// cancelling the command context on interrupt.
func Execute(ctx context.Context, version string) error {
	return fang.Execute(ctx, NewRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	)
}

func initLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
