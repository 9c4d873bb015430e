package epub

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/alttext/internal/epub/epubtest"
	"github.com/lehigh-university-libraries/alttext/internal/errors"
	"github.com/lehigh-university-libraries/alttext/internal/models"
)

func parseBook(t *testing.T, b epubtest.Book) *Document {
	t.Helper()
	doc, err := Parse(epubtest.Build(t, b))
	require.NoError(t, err)
	return doc
}

func identifiers(images []*ImageResource) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		out = append(out, img.Identifier)
	}
	return out
}

func TestParse_BodyAndCoverImages(t *testing.T) {
	tests := []struct {
		name      string
		book      epubtest.Book
		wantBody  []string
		wantCover []string
	}{
		{
			name: "epub3 cover-image property",
			book: epubtest.Book{Images: []epubtest.Image{
				{Href: "cover.jpg", Cover: true},
				{Href: "p1.jpg"}, {Href: "p2.jpg"}, {Href: "p3.jpg"},
			}},
			wantBody:  []string{"p1.jpg", "p2.jpg", "p3.jpg"},
			wantCover: []string{"cover.jpg"},
		},
		{
			name: "epub2 cover meta",
			book: epubtest.Book{CoverMeta: true, Images: []epubtest.Image{
				{Href: "images/front.png", ID: "front", Cover: true},
				{Href: "images/fig1.png"},
			}},
			wantBody:  []string{"images/fig1.png"},
			wantCover: []string{"images/front.png"},
		},
		{
			name: "cover found by name when undeclared",
			book: epubtest.Book{Images: []epubtest.Image{
				{Href: "a.jpg"}, {Href: "cover.jpg"},
			}},
			wantBody:  []string{"a.jpg"},
			wantCover: []string{"cover.jpg"},
		},
		{
			name: "cover word in base name",
			book: epubtest.Book{Images: []epubtest.Image{
				{Href: "images/p1.jpg"}, {Href: "images/book_cover.png"},
			}},
			wantBody:  []string{"images/p1.jpg"},
			wantCover: []string{"images/book_cover.png"},
		},
		{
			name: "cover substring is not a cover",
			book: epubtest.Book{Images: []epubtest.Image{
				{Href: "discover.png"}, {Href: "coverage-map.jpg"}, {Href: "covers/p1.jpg"},
			}},
			wantBody: []string{"discover.png", "coverage-map.jpg", "covers/p1.jpg"},
		},
		{
			name:      "no images",
			book:      epubtest.Book{},
			wantBody:  nil,
			wantCover: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseBook(t, tt.book)
			for _, img := range doc.CoverImages() {
				assert.Equal(t, models.RoleCover, img.Role)
			}
			assert.Equal(t, tt.wantBody, nilIfEmpty(identifiers(doc.BodyImages())))
			assert.Equal(t, tt.wantCover, nilIfEmpty(identifiers(doc.CoverImages())))
		})
	}
}

func TestNamedCover(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "cover.jpg", want: true},
		{name: "OEBPS/Images/Cover.JPG", want: true},
		{name: "front-cover.png", want: true},
		{name: "cover-image", want: true},
		{name: "discover.png"},
		{name: "coverage-map.jpg"},
		{name: "covers/p1.jpg"},
		{name: "img1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, namedCover(tt.name))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestParse_Malformed(t *testing.T) {
	noContainer := new(bytes.Buffer)
	zw := zip.NewWriter(noContainer)
	f, _ := zw.Create("mimetype")
	_, _ = f.Write([]byte("application/epub+zip"))
	require.NoError(t, zw.Close())

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not a zip", data: []byte("plain text")},
		{name: "missing container", data: noContainer.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			assert.True(t, errors.IsMalformedDocumentError(err), "got %v", err)
		})
	}
}

func TestImageResource_AltTextRoundTrip(t *testing.T) {
	doc := parseBook(t, epubtest.Book{Images: []epubtest.Image{{Href: "img1.jpg"}}})

	img, ok := doc.Image("img1.jpg")
	require.True(t, ok)
	assert.Equal(t, 1, img.References())
	assert.Equal(t, "", img.AltText())

	img.SetAltText("A red door")
	assert.Equal(t, "A red door", img.AltText())

	out, err := doc.Bytes()
	require.NoError(t, err)

	reparsed, err := Parse(out)
	require.NoError(t, err)
	img, ok = reparsed.Image("img1.jpg")
	require.True(t, ok)
	assert.Equal(t, "A red door", img.AltText())
}

func TestImageResource_SetAltTextUnreferenced(t *testing.T) {
	doc := parseBook(t, epubtest.Book{
		Images:   []epubtest.Image{{Href: "orphan.png"}},
		Sections: []epubtest.Section{{Href: "text.xhtml", Body: "<p>no images here</p>"}},
	})
	img, ok := doc.Image("orphan.png")
	require.True(t, ok)
	assert.Equal(t, 0, img.References())

	img.SetAltText("floating")
	assert.Equal(t, "floating", img.AltText())
	for _, sec := range doc.Sections() {
		assert.False(t, sec.Modified())
	}
}

func TestImageResource_ResolvesRelativeSources(t *testing.T) {
	doc := parseBook(t, epubtest.Book{
		Images: []epubtest.Image{{Href: "images/fig 1.png"}},
		Sections: []epubtest.Section{{
			Href: "text/ch1.xhtml",
			Body: `<figure><img src="../images/fig%201.png"/></figure><svg xmlns="http://www.w3.org/2000/svg"><image xlink:href="../images/fig%201.png" xmlns:xlink="http://www.w3.org/1999/xlink"/></svg>`,
		}},
	})
	img, ok := doc.Image("images/fig 1.png")
	require.True(t, ok)
	assert.Equal(t, 2, img.References())

	img.SetAltText("Figure one")
	assert.Equal(t, "Figure one", img.AltText())

	out, err := doc.Bytes()
	require.NoError(t, err)
	body := readEntries(t, out)["OEBPS/text/ch1.xhtml"]

	assert.Contains(t, openTag(t, body, "<img"), `alt="Figure one"`)
	svg := openTag(t, body, "<svg")
	assert.Contains(t, svg, `role="img"`)
	assert.Contains(t, svg, `aria-label="Figure one"`)
	assert.NotContains(t, openTag(t, body, "<image"), "alt=")

	again, err := Parse(out)
	require.NoError(t, err)
	reread, ok := again.Image("images/fig 1.png")
	require.True(t, ok)
	assert.Equal(t, "Figure one", reread.AltText())
}

// openTag returns the start tag beginning with prefix
func openTag(t *testing.T, doc, prefix string) string {
	t.Helper()
	i := strings.Index(doc, prefix+" ")
	require.GreaterOrEqual(t, i, 0, "no %s tag in %s", prefix, doc)
	end := strings.Index(doc[i:], ">")
	require.Greater(t, end, 0)
	return doc[i : i+end+1]
}

func TestWriteTo_MimetypeFirstAndStored(t *testing.T) {
	doc := parseBook(t, epubtest.Book{Images: []epubtest.Image{{Href: "p1.jpg"}}})
	doc.Images()[0].SetAltText("x")

	out, err := doc.Bytes()
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)
	assert.Equal(t, "mimetype", zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)
}

func TestWriteTo_UnmodifiedSectionsAreByteIdentical(t *testing.T) {
	book := epubtest.Book{Images: []epubtest.Image{{Href: "cover.jpg", Cover: true}, {Href: "p1.jpg"}}}
	raw := epubtest.Build(t, book)
	doc, err := Parse(raw)
	require.NoError(t, err)

	img, _ := doc.Image("p1.jpg")
	img.SetAltText("changed")

	out, err := doc.Bytes()
	require.NoError(t, err)

	before := readEntries(t, raw)
	after := readEntries(t, out)
	assert.Equal(t, before["OEBPS/cover.xhtml"], after["OEBPS/cover.xhtml"])
	assert.NotEqual(t, before["OEBPS/chapter.xhtml"], after["OEBPS/chapter.xhtml"])
	assert.True(t, strings.HasPrefix(after["OEBPS/chapter.xhtml"], `<?xml version="1.0" encoding="utf-8"?>`))
	assert.Contains(t, after["OEBPS/chapter.xhtml"], `alt="changed"`)
	assert.Contains(t, after["OEBPS/chapter.xhtml"], `/>`)
}

func TestExpandSelfClosing(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "void element kept", in: `<img src="a.jpg"/>`, want: `<img src="a.jpg"/>`},
		{name: "empty title expanded", in: `<title/>`, want: `<title></title>`},
		{name: "attributes kept", in: `<a id="p3" />`, want: `<a id="p3"></a>`},
		{name: "svg child kept", in: `<path d="M0 0"/>`, want: `<path d="M0 0"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandSelfClosing(tt.in))
		})
	}
}

func TestDocumentMetadata(t *testing.T) {
	doc := parseBook(t, epubtest.Book{Title: "The Castle", Language: "ko"})
	assert.Equal(t, "The Castle", doc.Title())
	assert.Equal(t, "ko", doc.Language())
	assert.Contains(t, string(doc.PackageXML()), "<dc:title>The Castle</dc:title>")
}

func readEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string)
	for _, f := range zr.File {
		b, err := readZipFile(f)
		require.NoError(t, err)
		out[f.Name] = string(b)
	}
	return out
}
