package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/alttext/internal/assembly"
	"github.com/lehigh-university-libraries/alttext/internal/conversion"
	"github.com/lehigh-university-libraries/alttext/internal/handlers"
	"github.com/lehigh-university-libraries/alttext/internal/layout"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the conversion and annotation API",
		Long: `Starts the Alttext HTTP API on the specified port.

POST /api/annotate captions an uploaded EPUB and returns it annotated.
POST /api/books converts scanned pages into an EPUB stored in S3; it is
only enabled when AWS_S3_BUCKET is set.`,
		Example: `  # Start server on default port 8888
  alttext serve

  # Start server on custom port
  alttext serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(true)
			if err != nil {
				return err
			}
			defer rt.Close()

			var converter handlers.Converter
			if rt.cfg.S3Bucket != "" {
				store, err := newObjectStore(cmd, rt.cfg)
				if err != nil {
					return err
				}
				converter = conversion.NewService(
					layout.NewClient(rt.cfg.LayoutURL),
					assembly.NewClient(rt.cfg.AssemblyURL),
					rt.pipeline,
					store,
					rt.cfg.PresignTTL,
				)
			} else {
				slog.Warn("AWS_S3_BUCKET not set, book conversion disabled")
			}

			handler := handlers.New(converter, rt.pipeline)

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Alttext API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
