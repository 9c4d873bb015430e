// Package ledger records caption runs as parquet rows and a YAML summary.
package ledger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/alttext/internal/captioning"
)

// Row is one captioned image
type Row struct {
	Document       string `parquet:"document"`
	Identifier     string `parquet:"identifier"`
	Position       int32  `parquet:"position"`
	DirectCaption  string `parquet:"direct_caption"`
	RefinedCaption string `parquet:"refined_caption"`
	Changed        bool   `parquet:"changed"`
	Analyzer       string `parquet:"analyzer"`
	Refiner        string `parquet:"refiner"`
	RecordedAt     int64  `parquet:"recorded_at"`
}

// Run identifies the captioning run a Result came from
type Run struct {
	Document string
	Analyzer string
	Refiner  string
	CoverAlt string
	Time     time.Time
}

// Rows flattens res into ledger rows in submission order
func Rows(run Run, res *captioning.Result) []Row {
	if res == nil {
		return nil
	}
	if run.Time.IsZero() {
		run.Time = time.Now()
	}
	rows := make([]Row, 0, len(res.Direct))
	for i, d := range res.Direct {
		refined := res.Refined[d.Identifier]
		rows = append(rows, Row{
			Document:       run.Document,
			Identifier:     d.Identifier,
			Position:       int32(i),
			DirectCaption:  d.Caption,
			RefinedCaption: refined,
			Changed:        refined != d.Caption,
			Analyzer:       run.Analyzer,
			Refiner:        run.Refiner,
			RecordedAt:     run.Time.UnixMilli(),
		})
	}
	return rows
}

// WriteParquet writes rows to path, creating parent directories
func WriteParquet(path string, rows []Row) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	slog.Info("Wrote caption ledger", "path", path, "rows", len(rows))
	return nil
}

// ReadParquet loads every row from path
func ReadParquet(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet: %w", err)
	}
	return rows, nil
}

// SummaryConfig is the run section of a summary
type SummaryConfig struct {
	Document  string `yaml:"document"`
	Analyzer  string `yaml:"analyzer"`
	Refiner   string `yaml:"refiner"`
	Timestamp string `yaml:"timestamp"`
}

// SummaryEntry is one image in a summary
type SummaryEntry struct {
	Identifier string `yaml:"identifier"`
	Direct     string `yaml:"direct"`
	Refined    string `yaml:"refined"`
}

// Summary is the YAML report for a run
type Summary struct {
	Config   SummaryConfig  `yaml:"config"`
	Images   int            `yaml:"images"`
	Changed  int            `yaml:"changed"`
	CoverAlt string         `yaml:"coveralt,omitempty"`
	Results  []SummaryEntry `yaml:"results"`
}

// NewSummary builds a Summary from ledger rows
func NewSummary(run Run, rows []Row) Summary {
	if run.Time.IsZero() {
		run.Time = time.Now()
	}
	s := Summary{
		Config: SummaryConfig{
			Document:  run.Document,
			Analyzer:  run.Analyzer,
			Refiner:   run.Refiner,
			Timestamp: run.Time.Format("2006-01-02_15-04-05"),
		},
		Images:   len(rows),
		CoverAlt: run.CoverAlt,
		Results:  make([]SummaryEntry, 0, len(rows)),
	}
	for _, r := range rows {
		if r.Changed {
			s.Changed++
		}
		s.Results = append(s.Results, SummaryEntry{
			Identifier: r.Identifier,
			Direct:     r.DirectCaption,
			Refined:    r.RefinedCaption,
		})
	}
	return s
}

// WriteSummary saves s as YAML at path
func WriteSummary(path string, s Summary) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	slog.Info("Wrote run summary", "path", path, "images", s.Images)
	return nil
}

// ReadSummary loads a YAML summary
func ReadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read summary: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse summary: %w", err)
	}
	return s, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
