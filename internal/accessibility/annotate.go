// Package accessibility writes image descriptions into an EPUB and applies
// the structural fixes screen readers rely on.
package accessibility

import (
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/alttext/internal/epub"
	"github.com/lehigh-university-libraries/alttext/internal/errors"
)

// DefaultCoverIdentifier is read back when a document declares no cover
const DefaultCoverIdentifier = "cover.jpg"

// Annotate sets the alt text of every image whose identifier has a caption.
// Images without a caption are left untouched. It returns the number of
// images annotated and is idempotent.
func Annotate(doc *epub.Document, captions map[string]string) int {
	if len(captions) == 0 {
		return 0
	}

	n := 0
	for _, img := range doc.Images() {
		caption, ok := captions[img.Identifier]
		if !ok {
			continue
		}
		img.SetAltText(caption)
		n++
	}
	slog.Debug("Annotated images", "document", doc, "annotated", n, "captions", len(captions))
	return n
}

// CoverAlt reads back the alt text of the named image resource
func CoverAlt(doc *epub.Document, coverIdentifier string) (string, error) {
	img, ok := doc.Image(coverIdentifier)
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrResourceNotFound, coverIdentifier)
	}
	return img.AltText(), nil
}

// CoverIdentifier returns the identifier of the first detected cover, or
// DefaultCoverIdentifier when the document declares none.
func CoverIdentifier(doc *epub.Document) string {
	if covers := doc.CoverImages(); len(covers) > 0 {
		return covers[0].Identifier
	}
	return DefaultCoverIdentifier
}
