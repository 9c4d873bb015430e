// Package epubtest builds small EPUB archives in memory for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path"
	"strings"
	"testing"
)

// Image is an image manifest item
type Image struct {
	Href string
	ID   string
	Data []byte
	// Cover marks the image with properties="cover-image" (or the EPUB 2
	// cover meta when Book.CoverMeta is set).
	Cover bool
}

// Section is an XHTML content document
type Section struct {
	Href string
	Body string
}

// Book describes the archive to build. When Sections is empty, a cover.xhtml
// displaying cover images and a chapter.xhtml displaying the rest are
// generated.
type Book struct {
	Title     string
	Language  string
	Images    []Image
	Sections  []Section
	CoverMeta bool
	// Dir is the directory holding the package document, default "OEBPS"
	Dir string
}

// Build returns the EPUB archive bytes
func Build(t testing.TB, b Book) []byte {
	t.Helper()

	if b.Dir == "" {
		b.Dir = "OEBPS"
	}
	if b.Title == "" {
		b.Title = "Test Book"
	}
	for i := range b.Images {
		if b.Images[i].ID == "" {
			b.Images[i].ID = fmt.Sprintf("img%d", i+1)
		}
		if b.Images[i].Data == nil {
			b.Images[i].Data = PNG(t, 2, 2)
		}
	}
	if len(b.Sections) == 0 {
		b.Sections = defaultSections(b.Images)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	mt, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("create mimetype: %v", err)
	}
	_, _ = mt.Write([]byte("application/epub+zip"))

	write(t, w, "META-INF/container.xml", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`, b.Dir))

	write(t, w, path.Join(b.Dir, "content.opf"), packageDocument(b))
	for _, img := range b.Images {
		write(t, w, path.Join(b.Dir, img.Href), string(img.Data))
	}
	for _, sec := range b.Sections {
		write(t, w, path.Join(b.Dir, sec.Href), XHTML(sec.Body))
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// XHTML wraps body markup in an XHTML content document
func XHTML(body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Section</title></head>
<body>` + body + `</body>
</html>`
}

// PNG encodes a solid w×h image
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 20, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func defaultSections(images []Image) []Section {
	var cover, body strings.Builder
	for _, img := range images {
		tag := fmt.Sprintf(`<p><img src="%s"/></p>`, img.Href)
		if img.Cover {
			cover.WriteString(tag)
		} else {
			body.WriteString(tag)
		}
	}
	secs := []Section{}
	if cover.Len() > 0 {
		secs = append(secs, Section{Href: "cover.xhtml", Body: cover.String()})
	}
	secs = append(secs, Section{Href: "chapter.xhtml", Body: "<h1>Chapter</h1>" + body.String()})
	return secs
}

func packageDocument(b Book) string {
	var manifest, spine, meta strings.Builder
	for _, img := range b.Images {
		props := ""
		if img.Cover && !b.CoverMeta {
			props = ` properties="cover-image"`
		}
		if img.Cover && b.CoverMeta {
			fmt.Fprintf(&meta, `    <meta name="cover" content="%s"/>`+"\n", img.ID)
		}
		fmt.Fprintf(&manifest, `    <item id="%s" href="%s" media-type="%s"%s/>`+"\n",
			img.ID, img.Href, mediaType(img.Href), props)
	}
	for i, sec := range b.Sections {
		id := fmt.Sprintf("sec%d", i+1)
		fmt.Fprintf(&manifest, `    <item id="%s" href="%s" media-type="application/xhtml+xml"/>`+"\n", id, sec.Href)
		fmt.Fprintf(&spine, `    <itemref idref="%s"/>`+"\n", id)
	}
	lang := ""
	if b.Language != "" {
		lang = "    <dc:language>" + b.Language + "</dc:language>\n"
	}

	return `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">urn:uuid:test</dc:identifier>
    <dc:title>` + b.Title + `</dc:title>
` + lang + meta.String() + `  </metadata>
  <manifest>
` + manifest.String() + `  </manifest>
  <spine>
` + spine.String() + `  </spine>
</package>`
}

func mediaType(href string) string {
	switch strings.ToLower(path.Ext(href)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}

func write(t testing.TB, w *zip.Writer, name, content string) {
	t.Helper()
	f, err := w.Create(name)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
