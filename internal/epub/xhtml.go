package epub

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Section is an XHTML content document from the manifest
type Section struct {
	Href string

	item     *manifestItem
	root     *html.Node
	xmlDecl  string
	modified bool
}

// Root returns the parsed document node. Callers that change the tree must
// call Touch so the section is re-rendered on write.
func (s *Section) Root() *html.Node {
	return s.root
}

// Touch marks the section as modified
func (s *Section) Touch() {
	s.modified = true
}

// Modified reports whether the section will be re-rendered on write
func (s *Section) Modified() bool {
	return s.modified
}

var (
	xmlDeclPattern = regexp.MustCompile(`^\s*<\?xml[^>]*\?>\s*`)
	// self-closing tags are only meaningful to an HTML parser for void elements
	selfClosingPattern = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9:_-]*)(\s[^<>]*?)?\s*/>`)
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

func parseSection(item *manifestItem, data []byte) (*Section, error) {
	src := string(data)
	decl := ""
	if m := xmlDeclPattern.FindString(src); m != "" {
		decl = strings.TrimSpace(m)
		src = src[len(m):]
	}
	src = expandSelfClosing(src)

	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse xhtml: %w", err)
	}
	return &Section{
		Href:    item.Href,
		item:    item,
		root:    root,
		xmlDecl: decl,
	}, nil
}

// expandSelfClosing rewrites <div/> style tags as <div></div> so the HTML
// parser does not treat them as unclosed start tags. Void elements and
// foreign (SVG/MathML) content are left alone.
func expandSelfClosing(src string) string {
	return selfClosingPattern.ReplaceAllStringFunc(src, func(tag string) string {
		m := selfClosingPattern.FindStringSubmatch(tag)
		name := strings.ToLower(m[1])
		if voidElements[name] || isForeign(name) {
			return tag
		}
		return "<" + m[1] + m[2] + "></" + m[1] + ">"
	})
}

func isForeign(name string) bool {
	switch name {
	case "path", "rect", "circle", "ellipse", "line", "polyline", "polygon",
		"image", "use", "stop", "mi", "mo", "mn", "mspace", "none", "mprescripts":
		return true
	}
	return strings.Contains(name, ":")
}

func (s *Section) render() ([]byte, error) {
	var buf bytes.Buffer
	if s.xmlDecl != "" {
		buf.WriteString(s.xmlDecl)
		buf.WriteString("\n")
	}
	if err := html.Render(&buf, s.root); err != nil {
		return nil, fmt.Errorf("render %s: %w", s.Href, err)
	}
	return buf.Bytes(), nil
}

// Walk visits n and its descendants depth first in document order
func Walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// imageSource returns the referenced href when n displays an image
func imageSource(n *html.Node) string {
	if n.Type != html.ElementNode {
		return ""
	}
	if n.DataAtom == atom.Img {
		v, _ := Attr(n, "src")
		return strings.TrimSpace(v)
	}
	if n.Data == "image" {
		for _, a := range n.Attr {
			if a.Key == "href" || a.Key == "xlink:href" {
				return strings.TrimSpace(a.Val)
			}
		}
	}
	return ""
}

// Attr returns the value of an un-namespaced attribute
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or adds an un-namespaced attribute
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
