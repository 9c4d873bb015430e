package epub

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lehigh-university-libraries/alttext/internal/models"
)

// ImageResource is an image entry in the package manifest. Identifier is the
// manifest href and is unique within a document.
type ImageResource struct {
	Identifier string
	ID         string
	MediaType  string
	Content    []byte
	Role       models.ImageRole

	path string
	alt  string
	refs []imageRef
}

// imageRef is an <img> (or SVG <image>) element pointing at a resource
type imageRef struct {
	node    *html.Node
	section *Section
}

// label returns the element and attribute that carry the text for ref.
// SVG <image> has no alt attribute, so the enclosing <svg> is labelled with
// role="img" and aria-label instead.
func (ref imageRef) label() (*html.Node, string) {
	if ref.node.DataAtom == atom.Img {
		return ref.node, "alt"
	}
	for p := ref.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "svg" {
			return p, "aria-label"
		}
	}
	return ref.node, "aria-label"
}

// SetAltText writes the accessibility text onto every element in the
// document that displays this image.
func (r *ImageResource) SetAltText(text string) {
	r.alt = text
	for _, ref := range r.refs {
		node, key := ref.label()
		changed := false
		if v, ok := Attr(node, key); !ok || v != text {
			SetAttr(node, key, text)
			changed = true
		}
		if key == "aria-label" {
			if v, _ := Attr(node, "role"); v != "img" {
				SetAttr(node, "role", "img")
				changed = true
			}
		}
		if changed {
			ref.section.Touch()
		}
	}
}

// AltText returns the accessibility text currently on the document. When the
// image is displayed by an element, that element's label is authoritative.
func (r *ImageResource) AltText() string {
	for _, ref := range r.refs {
		node, key := ref.label()
		if v, ok := Attr(node, key); ok {
			return v
		}
	}
	return r.alt
}

// References returns how many elements in the document display this image
func (r *ImageResource) References() int {
	return len(r.refs)
}
