package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/alttext/internal/assembly"
	"github.com/lehigh-university-libraries/alttext/internal/config"
	"github.com/lehigh-university-libraries/alttext/internal/conversion"
	"github.com/lehigh-university-libraries/alttext/internal/layout"
	"github.com/lehigh-university-libraries/alttext/internal/ledger"
	"github.com/lehigh-university-libraries/alttext/internal/models"
	"github.com/lehigh-university-libraries/alttext/internal/objectstore"
)

func newConvertCmd() *cobra.Command {
	var (
		memberID      string
		title, author string
		coverPath     string
		ledgerPath    string
	)

	cmd := &cobra.Command{
		Use:   "convert [page images...]",
		Short: "Convert scanned pages into an accessible EPUB and upload it",
		Args:  cobra.MinimumNArgs(1),
		Example: `  alttext convert --member-id 7 --title "The Castle" --author "Franz Kafka" p1.png p2.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := readPageFiles(args)
			if err != nil {
				return err
			}

			var cover []byte
			var coverFilename string
			if coverPath != "" {
				cover, err = os.ReadFile(coverPath)
				if err != nil {
					return fmt.Errorf("failed to read cover: %w", err)
				}
				coverFilename = filepath.Base(coverPath)
			}
			md, err := models.NewMetadata(title, author, cover, coverFilename, time.Now())
			if err != nil {
				return err
			}

			rt, err := newRuntime(true)
			if err != nil {
				return err
			}
			defer rt.Close()

			store, err := newObjectStore(cmd, rt.cfg)
			if err != nil {
				return err
			}
			service := conversion.NewService(
				layout.NewClient(rt.cfg.LayoutURL),
				assembly.NewClient(rt.cfg.AssemblyURL),
				rt.pipeline,
				store,
				rt.cfg.PresignTTL,
			)

			out, err := service.Convert(cmd.Context(), conversion.Request{
				MemberID: memberID,
				Metadata: md,
				Pages:    pages,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Uploaded %s\nDownload: %s\n", out.StorageKey, out.DownloadURL)

			run := ledger.Run{
				Document: out.StorageKey,
				Analyzer: rt.cfg.Analyzer,
				Refiner:  rt.cfg.Refiner,
				CoverAlt: out.Metadata.CoverAlt,
				Time:     time.Now(),
			}
			return writeRunRecords(run, out.Result, ledgerPath, "")
		},
	}

	cmd.Flags().StringVar(&memberID, "member-id", "", "Member the book is registered to")
	cmd.Flags().StringVar(&title, "title", "", "Book title")
	cmd.Flags().StringVar(&author, "author", "", "Book author")
	cmd.Flags().StringVar(&coverPath, "cover", "", "Cover image uploaded next to the book")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Write captions to this parquet file")
	_ = cmd.MarkFlagRequired("member-id")

	return cmd
}

func readPageFiles(paths []string) ([]layout.Page, error) {
	pages := make([]layout.Page, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", p, err)
		}
		pages = append(pages, layout.Page{Filename: filepath.Base(p), Content: data})
	}
	return pages, nil
}

func newObjectStore(cmd *cobra.Command, cfg *config.Config) (*objectstore.Store, error) {
	return objectstore.New(cmd.Context(), objectstore.Config{
		Region:          cfg.AWSRegion,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Endpoint:        cfg.S3Endpoint,
	})
}
