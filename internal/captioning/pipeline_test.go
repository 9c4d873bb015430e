package captioning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/alttext/internal/accessibility"
	"github.com/lehigh-university-libraries/alttext/internal/epub"
	"github.com/lehigh-university-libraries/alttext/internal/epub/epubtest"
	"github.com/lehigh-university-libraries/alttext/internal/errors"
	"github.com/lehigh-university-libraries/alttext/internal/models"
	"github.com/lehigh-university-libraries/alttext/internal/providers"
)

// scenarioBook stores each image's href as its content, so fakeAnalyzer
// failures can be keyed by href.
func scenarioBook(t *testing.T) *epub.Document {
	t.Helper()
	doc, err := epub.Parse(epubtest.Build(t, epubtest.Book{Images: []epubtest.Image{
		{Href: "cover.jpg", Data: []byte("cover.jpg"), Cover: true},
		{Href: "p1.jpg", Data: []byte("p1.jpg")},
		{Href: "p2.jpg", Data: []byte("p2.jpg")},
		{Href: "p3.jpg", Data: []byte("p3.jpg")},
	}}))
	require.NoError(t, err)
	return doc
}

func scenarioMetadata(t *testing.T) models.Metadata {
	t.Helper()
	md, err := models.NewMetadata("The Castle", "Franz Kafka", nil, "cover.jpg", time.Now())
	require.NoError(t, err)
	return md
}

func TestPipeline_Run(t *testing.T) {
	h := newHarness()
	h.refiner.refine = func(results []models.CaptionResult) (map[string]string, error) {
		return map[string]string{
			"p1.jpg":    "A red door",
			"p2.jpg":    "A winding staircase",
			"p3.jpg":    "A village under snow",
			"cover.jpg": "Portrait of a castle",
		}, nil
	}
	doc := scenarioBook(t)

	md, res, err := NewPipeline(h.captioner(Options{}), accessibility.NewFormatter()).Run(t.Context(), doc, scenarioMetadata(t))
	require.NoError(t, err)

	assert.Len(t, h.analyzer.calls, 4)
	assert.Equal(t, []string{"p1.jpg", "p2.jpg", "p3.jpg", "cover.jpg"}, res.Order)
	for id, want := range res.Refined {
		img, ok := doc.Image(id)
		require.True(t, ok)
		assert.Equal(t, want, img.AltText(), id)
	}
	assert.Equal(t, "Portrait of a castle", md.CoverAlt)
	assert.Equal(t, "The Castle", md.Title)
	assert.Contains(t, string(doc.PackageXML()), "schema:accessibilityFeature")

	// the annotated document survives serialization
	out, err := doc.Bytes()
	require.NoError(t, err)
	reparsed, err := epub.Parse(out)
	require.NoError(t, err)
	alt, err := accessibility.CoverAlt(reparsed, "cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Portrait of a castle", alt)
}

func TestPipeline_RunForIntegration(t *testing.T) {
	h := newHarness()
	doc := scenarioBook(t)

	md, _, err := NewPipeline(h.captioner(Options{}), accessibility.NewFormatter()).RunForIntegration(t.Context(), doc, scenarioMetadata(t))
	require.NoError(t, err)

	assert.Equal(t, "refined:cover.jpg", md.CoverAlt)
	assert.NotContains(t, string(doc.PackageXML()), "schema:accessMode")
}

func TestPipeline_NoCover(t *testing.T) {
	h := newHarness()
	doc, err := epub.Parse(epubtest.Build(t, epubtest.Book{Images: []epubtest.Image{{Href: "p1.jpg"}}}))
	require.NoError(t, err)

	md, _, err := NewPipeline(h.captioner(Options{}), nil).Run(t.Context(), doc, scenarioMetadata(t))
	require.NoError(t, err)
	assert.Empty(t, md.CoverAlt)
}

func TestPipeline_FailureLeavesMetadata(t *testing.T) {
	h := newHarness()
	h.analyzer.fail = map[string]bool{"p3.jpg": true}
	doc := scenarioBook(t)
	in := scenarioMetadata(t)

	md, res, err := NewPipeline(h.captioner(Options{}), nil).Run(t.Context(), doc, in)
	require.Error(t, err)
	assert.True(t, errors.IsProviderCallError(err))
	assert.Equal(t, int32(0), h.refiner.calls.Load())
	assert.Equal(t, int32(1), h.analyzer.closed.Load())
	assert.Nil(t, res)
	assert.Equal(t, in, md)
	for _, img := range doc.Images() {
		assert.Empty(t, img.AltText())
	}
}

func TestPipeline_NoImages(t *testing.T) {
	doc, err := epub.Parse(epubtest.Build(t, epubtest.Book{}))
	require.NoError(t, err)

	created := 0
	c := New(
		func(context.Context) (providers.Analyzer, error) { created++; return &fakeAnalyzer{}, nil },
		func(context.Context) (providers.Refiner, error) { created++; return &fakeRefiner{}, nil },
		Options{},
	)
	md, res, err := NewPipeline(c, nil).Run(t.Context(), doc, scenarioMetadata(t))
	require.NoError(t, err)
	assert.Empty(t, res.Refined)
	assert.Empty(t, md.CoverAlt)
	assert.Equal(t, 0, created)
	for _, sec := range doc.Sections() {
		assert.False(t, sec.Modified())
	}
}
