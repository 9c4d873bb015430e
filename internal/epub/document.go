// Package epub reads an EPUB container into a mutable Document, exposes its
// image resources and XHTML sections, and writes it back out.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/lehigh-university-libraries/alttext/internal/errors"
	"github.com/lehigh-university-libraries/alttext/internal/models"
)

const (
	containerPath = "META-INF/container.xml"
	mimetypePath  = "mimetype"
	epubMimetype  = "application/epub+zip"
	xhtmlType     = "application/xhtml+xml"
)

// Document is a parsed EPUB package. Images and sections are shared
// pointers, so mutations through them are reflected when the document is
// written back out.
type Document struct {
	entries  []*entry
	byPath   map[string]*entry
	opfPath  string
	opf      []byte
	pkg      opfPackage
	language string

	items    []*manifestItem
	images   []*ImageResource
	byHref   map[string]*ImageResource
	sections []*Section
}

type entry struct {
	name   string
	data   []byte
	method uint16
}

type manifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
	path       string
}

// opfPackage is the subset of the OPF package document this package reads
type opfPackage struct {
	Metadata struct {
		Titles    []string  `xml:"title"`
		Creators  []string  `xml:"creator"`
		Languages []string  `xml:"language"`
		Metas     []opfMeta `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Itemrefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"`
	Property string `xml:"property,attr"`
	Value    string `xml:",chardata"`
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// Parse reads an EPUB archive. It fails with a MalformedDocumentError when
// the archive, container or package manifest cannot be read.
func Parse(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewMalformedDocumentError("not a zip archive", err)
	}

	doc := &Document{
		byPath: make(map[string]*entry, len(zr.File)),
		byHref: make(map[string]*ImageResource),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, errors.NewMalformedDocumentError("unreadable entry "+f.Name, err)
		}
		e := &entry{name: f.Name, data: content, method: f.Method}
		doc.entries = append(doc.entries, e)
		doc.byPath[f.Name] = e
	}

	if err := doc.readPackage(); err != nil {
		return nil, err
	}
	if err := doc.readManifest(); err != nil {
		return nil, err
	}
	if err := doc.readSections(); err != nil {
		return nil, err
	}
	doc.assignCoverRoles()

	slog.Debug("Parsed EPUB",
		"package", doc.opfPath,
		"items", len(doc.items),
		"images", len(doc.images),
		"sections", len(doc.sections))
	return doc, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (d *Document) readPackage() error {
	c, ok := d.byPath[containerPath]
	if !ok {
		return errors.NewMalformedDocumentError("missing "+containerPath, nil)
	}
	var ct container
	if err := xml.Unmarshal(c.data, &ct); err != nil {
		return errors.NewMalformedDocumentError("unreadable "+containerPath, err)
	}
	if len(ct.Rootfiles) == 0 || ct.Rootfiles[0].FullPath == "" {
		return errors.NewMalformedDocumentError("container lists no package document", nil)
	}

	d.opfPath = ct.Rootfiles[0].FullPath
	opf, ok := d.byPath[d.opfPath]
	if !ok {
		return errors.NewMalformedDocumentError("missing package document "+d.opfPath, nil)
	}
	if err := xml.Unmarshal(opf.data, &d.pkg); err != nil {
		return errors.NewMalformedDocumentError("unreadable package document", err)
	}
	d.opf = opf.data

	if len(d.pkg.Metadata.Languages) > 0 {
		d.language = strings.TrimSpace(d.pkg.Metadata.Languages[0])
	}
	return nil
}

func (d *Document) readManifest() error {
	if len(d.pkg.Manifest.Items) == 0 {
		return errors.NewMalformedDocumentError("package manifest has no items", nil)
	}

	opfDir := path.Dir(d.opfPath)
	for _, it := range d.pkg.Manifest.Items {
		item := &manifestItem{
			ID:         it.ID,
			Href:       it.Href,
			MediaType:  strings.ToLower(strings.TrimSpace(it.MediaType)),
			Properties: it.Properties,
			path:       resolve(opfDir, it.Href),
		}
		d.items = append(d.items, item)

		if !strings.HasPrefix(item.MediaType, "image/") {
			continue
		}
		e, ok := d.byPath[item.path]
		if !ok {
			return errors.NewMalformedDocumentError("manifest references missing image "+item.Href, nil)
		}
		if _, dup := d.byHref[item.Href]; dup {
			slog.Warn("Duplicate image href in manifest, keeping first", "href", item.Href)
			continue
		}
		img := &ImageResource{
			Identifier: item.Href,
			ID:         item.ID,
			MediaType:  item.MediaType,
			Content:    e.data,
			Role:       models.RoleBody,
			path:       item.path,
		}
		d.images = append(d.images, img)
		d.byHref[item.Href] = img
	}
	return nil
}

func (d *Document) readSections() error {
	byPath := make(map[string]*ImageResource, len(d.images))
	for _, img := range d.images {
		byPath[img.path] = img
	}

	for _, item := range d.items {
		if item.MediaType != xhtmlType {
			continue
		}
		e, ok := d.byPath[item.path]
		if !ok {
			slog.Warn("Manifest references missing section, skipping", "href", item.Href)
			continue
		}
		sec, err := parseSection(item, e.data)
		if err != nil {
			return errors.NewMalformedDocumentError("unreadable section "+item.Href, err)
		}
		d.sections = append(d.sections, sec)

		dir := path.Dir(item.path)
		Walk(sec.root, func(n *html.Node) {
			src := imageSource(n)
			if src == "" {
				return
			}
			if img, ok := byPath[resolve(dir, src)]; ok {
				img.refs = append(img.refs, imageRef{node: n, section: sec})
			}
		})
	}
	return nil
}

// resolve joins a manifest or src href onto a directory inside the archive
func resolve(dir, href string) string {
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if dir == "." {
		return path.Clean(href)
	}
	return path.Join(dir, href)
}

// Title returns the first dc:title of the package
func (d *Document) Title() string {
	if len(d.pkg.Metadata.Titles) == 0 {
		return ""
	}
	return strings.TrimSpace(d.pkg.Metadata.Titles[0])
}

// Language returns the first dc:language of the package, or "" if none
func (d *Document) Language() string {
	return d.language
}

// Images returns every image resource in manifest order
func (d *Document) Images() []*ImageResource {
	out := make([]*ImageResource, len(d.images))
	copy(out, d.images)
	return out
}

// BodyImages returns the image resources that are not the designated cover,
// in manifest order.
func (d *Document) BodyImages() []*ImageResource {
	var out []*ImageResource
	for _, img := range d.images {
		if img.Role == models.RoleBody {
			out = append(out, img)
		}
	}
	return out
}

// CoverImages returns the image resources designated as the cover
func (d *Document) CoverImages() []*ImageResource {
	var out []*ImageResource
	for _, img := range d.images {
		if img.Role == models.RoleCover {
			out = append(out, img)
		}
	}
	return out
}

// Image looks up an image resource by identifier
func (d *Document) Image(identifier string) (*ImageResource, bool) {
	img, ok := d.byHref[identifier]
	return img, ok
}

// Sections returns the XHTML content documents in manifest order
func (d *Document) Sections() []*Section {
	out := make([]*Section, len(d.sections))
	copy(out, d.sections)
	return out
}

// PackageXML returns the raw OPF package document
func (d *Document) PackageXML() []byte {
	return d.opf
}

// SetPackageXML replaces the raw OPF package document
func (d *Document) SetPackageXML(data []byte) {
	d.opf = data
}

// String is used by log lines
func (d *Document) String() string {
	return fmt.Sprintf("epub(%s, %d images, %d sections)", d.opfPath, len(d.images), len(d.sections))
}
