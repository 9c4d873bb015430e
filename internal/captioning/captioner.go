// Package captioning describes every image of a document with a direct
// analyzer, refines the drafts with a batch refiner and writes the result
// back into the document.
package captioning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/alttext/internal/epub"
	"github.com/lehigh-university-libraries/alttext/internal/errors"
	"github.com/lehigh-university-libraries/alttext/internal/models"
	"github.com/lehigh-university-libraries/alttext/internal/providers"
	"github.com/lehigh-university-libraries/alttext/internal/ratelimit"
)

// Options tunes the direct analysis fan-out
type Options struct {
	// Concurrency bounds in-flight direct calls. Zero means unbounded.
	Concurrency int
	// Limiter throttles direct calls when set
	Limiter *ratelimit.Limiter
}

// Result holds both caption passes for one run
type Result struct {
	// Direct is in submission order: body images, then covers
	Direct []models.CaptionResult
	// Refined maps every identifier in Direct to its final caption
	Refined map[string]string
	// Order lists identifiers in submission order
	Order []string
}

// Empty reports whether no image was described
func (r *Result) Empty() bool {
	return len(r.Order) == 0
}

// Captioner runs the two caption passes. Each call creates its own provider
// clients and closes them before returning.
type Captioner struct {
	newAnalyzer providers.AnalyzerFactory
	newRefiner  providers.RefinerFactory
	opts        Options
}

// New returns a Captioner
func New(newAnalyzer providers.AnalyzerFactory, newRefiner providers.RefinerFactory, opts Options) *Captioner {
	return &Captioner{
		newAnalyzer: newAnalyzer,
		newRefiner:  newRefiner,
		opts:        opts,
	}
}

// Caption describes body and cover images. Any failed direct call fails the
// whole batch and the refiner is not invoked.
func (c *Captioner) Caption(ctx context.Context, body, cover []*epub.ImageResource) (*Result, error) {
	requests := workList(body, cover)
	if len(requests) == 0 {
		slog.Info("No images to caption")
		return &Result{Refined: map[string]string{}}, nil
	}

	start := time.Now()
	direct, err := c.describe(ctx, requests)
	if err != nil {
		return nil, err
	}
	slog.Info("Direct analysis complete", "images", len(direct), "elapsed", time.Since(start))

	refined, err := c.refine(ctx, direct)
	if err != nil {
		return nil, err
	}

	order := make([]string, len(direct))
	for i, r := range direct {
		order[i] = r.Identifier
	}
	slog.Info("Captioning complete", "images", len(direct), "elapsed", time.Since(start))

	return &Result{Direct: direct, Refined: refined, Order: order}, nil
}

// workList concatenates body and cover images, skipping identifiers already
// queued.
func workList(body, cover []*epub.ImageResource) []models.CaptionRequest {
	seen := make(map[string]bool, len(body)+len(cover))
	requests := make([]models.CaptionRequest, 0, len(body)+len(cover))
	for _, group := range [][]*epub.ImageResource{body, cover} {
		for _, img := range group {
			if seen[img.Identifier] {
				slog.Debug("Skipping duplicate image", "identifier", img.Identifier)
				continue
			}
			seen[img.Identifier] = true
			requests = append(requests, models.CaptionRequest{Identifier: img.Identifier, Content: img.Content})
		}
	}
	return requests
}

func (c *Captioner) describe(ctx context.Context, requests []models.CaptionRequest) ([]models.CaptionResult, error) {
	var results []models.CaptionResult

	err := withClient[providers.Analyzer](ctx, "analyzer", c.newAnalyzer, func(a providers.Analyzer) error {
		results = make([]models.CaptionResult, len(requests))

		g, gctx := errgroup.WithContext(ctx)
		if c.opts.Concurrency > 0 {
			g.SetLimit(c.opts.Concurrency)
		}
		for i, req := range requests {
			g.Go(func() error {
				if err := c.opts.Limiter.Wait(gctx); err != nil {
					return errors.NewProviderCallError(a.Name(), req.Identifier, err)
				}
				analysis, err := a.Analyze(gctx, req.Content)
				if err != nil {
					return errors.NewProviderCallError(a.Name(), req.Identifier, err)
				}
				slog.Debug("Described image", "provider", a.Name(), "identifier", req.Identifier, "confidence", analysis.Confidence)
				results[i] = models.CaptionResult{
					Identifier: req.Identifier,
					Caption:    analysis.Caption,
					Content:    req.Content,
				}
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Captioner) refine(ctx context.Context, direct []models.CaptionResult) (map[string]string, error) {
	out := make(map[string]string, len(direct))

	err := withClient[providers.Refiner](ctx, "refiner", c.newRefiner, func(r providers.Refiner) error {
		refined, err := r.Refine(ctx, direct)
		if err != nil {
			return errors.NewProviderCallError(r.Name(), "batch", err)
		}
		for _, d := range direct {
			caption, ok := refined[d.Identifier]
			if !ok || caption == "" {
				slog.Warn("Refiner returned no caption, keeping direct caption",
					"provider", r.Name(), "identifier", d.Identifier)
				caption = d.Caption
			}
			out[d.Identifier] = caption
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type client interface {
	Name() string
	Close() error
}

// withClient creates a client, hands it to fn and closes it on every exit
// path. A close failure is logged and never replaces fn's result.
func withClient[T client](ctx context.Context, kind string, create func(context.Context) (T, error), fn func(T) error) error {
	if create == nil {
		return errors.NewProviderClientError(kind, "create", fmt.Errorf("no %s configured", kind))
	}
	cl, err := create(ctx)
	if err != nil {
		return errors.NewProviderClientError(kind, "create", err)
	}
	defer func() {
		if cerr := cl.Close(); cerr != nil {
			slog.Error("Failed to release provider client",
				"err", errors.NewProviderClientError(cl.Name(), "close", cerr))
		}
	}()
	return fn(cl)
}
