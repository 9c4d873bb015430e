package captioning

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/alttext/internal/accessibility"
	"github.com/lehigh-university-libraries/alttext/internal/epub"
	"github.com/lehigh-university-libraries/alttext/internal/errors"
	"github.com/lehigh-university-libraries/alttext/internal/models"
)

// Pipeline captions a document, annotates it and hands back the updated
// metadata.
type Pipeline struct {
	captioner *Captioner
	formatter *accessibility.Formatter
}

// NewPipeline returns a Pipeline. A nil formatter skips the formatting pass
// in Run.
func NewPipeline(captioner *Captioner, formatter *accessibility.Formatter) *Pipeline {
	return &Pipeline{captioner: captioner, formatter: formatter}
}

// Run captions every image, writes the refined captions into doc, sets
// CoverAlt from the document and applies the accessibility formatter. doc is
// modified in place.
func (p *Pipeline) Run(ctx context.Context, doc *epub.Document, md models.Metadata) (models.Metadata, *Result, error) {
	res, err := p.caption(ctx, doc)
	if err != nil {
		return md, nil, err
	}

	coverAlt, err := accessibility.CoverAlt(doc, accessibility.CoverIdentifier(doc))
	switch {
	case stdErrors.Is(err, errors.ErrResourceNotFound):
		slog.Debug("Document has no cover image", "document", doc)
	case err != nil:
		return md, nil, err
	default:
		md.CoverAlt = coverAlt
	}

	if p.formatter != nil {
		if err := p.formatter.Format(doc); err != nil {
			return md, nil, fmt.Errorf("format document: %w", err)
		}
	}
	return md, res, nil
}

// RunForIntegration annotates doc without the formatting pass and takes
// CoverAlt straight from the refined captions.
func (p *Pipeline) RunForIntegration(ctx context.Context, doc *epub.Document, md models.Metadata) (models.Metadata, *Result, error) {
	res, err := p.caption(ctx, doc)
	if err != nil {
		return md, nil, err
	}
	if alt, ok := res.Refined[accessibility.CoverIdentifier(doc)]; ok {
		md.CoverAlt = alt
	}
	return md, res, nil
}

func (p *Pipeline) caption(ctx context.Context, doc *epub.Document) (*Result, error) {
	res, err := p.captioner.Caption(ctx, doc.BodyImages(), doc.CoverImages())
	if err != nil {
		return nil, fmt.Errorf("caption %s: %w", doc, err)
	}
	n := accessibility.Annotate(doc, res.Refined)
	slog.Info("Annotated document", "document", doc, "images", n)
	return res, nil
}
