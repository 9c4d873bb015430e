package providers

import (
	"context"

	"github.com/lehigh-university-libraries/alttext/internal/models"
)

// Config represents the configuration shared by description providers
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Analysis is the result of describing a single image
type Analysis struct {
	Caption    string
	Confidence float64
}

// Analyzer describes one image per call. Close releases the client's
// resources and is safe to call more than once.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (*Analysis, error)
	Name() string
	Close() error
}

// Refiner improves a whole batch of captions in a single call. The returned
// map is keyed by CaptionResult.Identifier.
type Refiner interface {
	Refine(ctx context.Context, results []models.CaptionResult) (map[string]string, error)
	Name() string
	Close() error
}

// AnalyzerFactory creates a fresh Analyzer for one captioning run
type AnalyzerFactory func(ctx context.Context) (Analyzer, error)

// RefinerFactory creates a fresh Refiner for one captioning run
type RefinerFactory func(ctx context.Context) (Refiner, error)
