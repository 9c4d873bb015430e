package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/alttext/internal/captioning"
	"github.com/lehigh-university-libraries/alttext/internal/epub"
	"github.com/lehigh-university-libraries/alttext/internal/ledger"
	"github.com/lehigh-university-libraries/alttext/internal/models"
)

func newAnnotateCmd() *cobra.Command {
	var (
		in, out        string
		title, author  string
		ledgerPath     string
		summaryPath    string
		skipFormatting bool
	)

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Caption every image in an EPUB and write alt text",
		Example: `  # Annotate a book and write book-accessible.epub
  alttext annotate --in book.epub

  # Keep a caption ledger and run summary
  alttext annotate --in book.epub --out out.epub --ledger captions.parquet --summary run.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in == "" {
				return fmt.Errorf("--in is required")
			}
			if out == "" {
				out = strings.TrimSuffix(in, filepath.Ext(in)) + "-accessible.epub"
			}

			data, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", in, err)
			}
			doc, err := epub.Parse(data)
			if err != nil {
				return err
			}

			rt, err := newRuntime(!skipFormatting)
			if err != nil {
				return err
			}
			defer rt.Close()

			if title == "" {
				title = doc.Title()
			}
			md := models.Metadata{Title: title, Author: author, CreatedAt: time.Now()}

			var res *captioning.Result
			if skipFormatting {
				md, res, err = rt.pipeline.RunForIntegration(cmd.Context(), doc, md)
			} else {
				md, res, err = rt.pipeline.Run(cmd.Context(), doc, md)
			}
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if _, err := doc.WriteTo(f); err != nil {
				f.Close()
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", out, err)
			}
			slog.Info("Wrote annotated book", "path", out, "images", len(res.Order), "cover_alt", md.CoverAlt)

			run := ledger.Run{
				Document: filepath.Base(in),
				Analyzer: rt.cfg.Analyzer,
				Refiner:  rt.cfg.Refiner,
				CoverAlt: md.CoverAlt,
				Time:     time.Now(),
			}
			return writeRunRecords(run, res, ledgerPath, summaryPath)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "EPUB to annotate")
	cmd.Flags().StringVar(&out, "out", "", "Output path (default <in>-accessible.epub)")
	cmd.Flags().StringVar(&title, "title", "", "Book title (default from the package document)")
	cmd.Flags().StringVar(&author, "author", "", "Book author")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Write captions to this parquet file")
	cmd.Flags().StringVar(&summaryPath, "summary", "", "Write a YAML run summary to this file")
	cmd.Flags().BoolVar(&skipFormatting, "no-format", false, "Only write alt text, skip the accessibility formatting pass")

	return cmd
}

func writeRunRecords(run ledger.Run, res *captioning.Result, ledgerPath, summaryPath string) error {
	if ledgerPath == "" && summaryPath == "" {
		return nil
	}
	rows := ledger.Rows(run, res)
	if ledgerPath != "" {
		if err := ledger.WriteParquet(ledgerPath, rows); err != nil {
			return err
		}
	}
	if summaryPath != "" {
		if err := ledger.WriteSummary(summaryPath, ledger.NewSummary(run, rows)); err != nil {
			return err
		}
	}
	return nil
}
