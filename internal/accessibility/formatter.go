package accessibility

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lehigh-university-libraries/alttext/internal/epub"
)

const (
	defaultLanguage = "en"
	defaultSummary  = "This publication was converted from page scans. Images have text alternatives generated with machine assistance and reviewed for readability."
)

// Formatter applies document-wide accessibility fixes after annotation.
// Every operation is idempotent.
type Formatter struct {
	// DefaultLanguage is used when the package declares no dc:language
	DefaultLanguage string
	// Summary is written as schema:accessibilitySummary when absent
	Summary string
}

// NewFormatter returns a Formatter with default settings
func NewFormatter() *Formatter {
	return &Formatter{DefaultLanguage: defaultLanguage, Summary: defaultSummary}
}

// Stats counts the changes one Format call made
type Stats struct {
	DecorativeImages int
	LanguageTags     int
	Headings         int
	EmptyParagraphs  int
	PackageMetas     int
}

// Format rewrites doc in place
func (f *Formatter) Format(doc *epub.Document) error {
	_, err := f.FormatStats(doc)
	return err
}

// FormatStats is Format that also reports what changed
func (f *Formatter) FormatStats(doc *epub.Document) (Stats, error) {
	var stats Stats

	lang := doc.Language()
	if lang == "" {
		lang = f.DefaultLanguage
	}
	if lang == "" {
		lang = defaultLanguage
	}

	for _, sec := range doc.Sections() {
		root := sec.Root()
		n := markDecorative(root)
		n2 := setLanguage(root, lang)
		n3 := normalizeHeadings(root)
		n4 := removeEmptyParagraphs(root)
		if n+n2+n3+n4 > 0 {
			sec.Touch()
		}
		stats.DecorativeImages += n
		stats.LanguageTags += n2
		stats.Headings += n3
		stats.EmptyParagraphs += n4
	}

	opf, added, err := addAccessibilityMetadata(doc.PackageXML(), len(doc.Images()) > 0, f.summary())
	if err != nil {
		return stats, err
	}
	if added > 0 {
		doc.SetPackageXML(opf)
	}
	stats.PackageMetas = added

	slog.Info("Formatted document for accessibility",
		"document", doc,
		"decorative_images", stats.DecorativeImages,
		"language_tags", stats.LanguageTags,
		"headings", stats.Headings,
		"empty_paragraphs", stats.EmptyParagraphs,
		"package_metas", stats.PackageMetas)
	return stats, nil
}

func (f *Formatter) summary() string {
	if f.Summary == "" {
		return defaultSummary
	}
	return f.Summary
}

// markDecorative gives alt="" to images that have no alt attribute
func markDecorative(root *html.Node) int {
	n := 0
	epub.Walk(root, func(node *html.Node) {
		if node.Type != html.ElementNode || node.DataAtom != atom.Img {
			return
		}
		if _, ok := epub.Attr(node, "alt"); !ok {
			epub.SetAttr(node, "alt", "")
			n++
		}
	})
	return n
}

func setLanguage(root *html.Node, lang string) int {
	var htmlNode *html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			htmlNode = c
			break
		}
	}
	if htmlNode == nil {
		return 0
	}

	n := 0
	for _, key := range []string{"lang", "xml:lang"} {
		if v, ok := epub.Attr(htmlNode, key); ok && strings.TrimSpace(v) != "" {
			continue
		}
		epub.SetAttr(htmlNode, key, lang)
		n++
	}
	return n
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

var headingAtoms = [...]atom.Atom{0, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

// normalizeHeadings renumbers headings so no level is skipped. The shallowest
// level used in the body is kept; deeper headings sit exactly one level below
// the nearest shallower heading before them.
func normalizeHeadings(root *html.Node) int {
	var headings []*html.Node
	top := 7
	epub.Walk(root, func(node *html.Node) {
		if node.Type != html.ElementNode {
			return
		}
		if lvl, ok := headingLevels[node.DataAtom]; ok {
			headings = append(headings, node)
			top = min(top, lvl)
		}
	})

	type frame struct{ orig, out int }
	var stack []frame
	changed := 0
	for _, h := range headings {
		orig := headingLevels[h.DataAtom]
		for len(stack) > 0 && stack[len(stack)-1].orig >= orig {
			stack = stack[:len(stack)-1]
		}
		out := top
		if len(stack) > 0 {
			out = stack[len(stack)-1].out + 1
		}
		stack = append(stack, frame{orig: orig, out: out})

		if out != orig {
			h.DataAtom = headingAtoms[out]
			h.Data = headingAtoms[out].String()
			changed++
		}
	}
	return changed
}

// removeEmptyParagraphs drops <p> elements holding only whitespace text
func removeEmptyParagraphs(root *html.Node) int {
	var empty []*html.Node
	epub.Walk(root, func(node *html.Node) {
		if node.Type == html.ElementNode && node.DataAtom == atom.P && isBlank(node) {
			empty = append(empty, node)
		}
	})
	for _, p := range empty {
		if p.Parent != nil {
			p.Parent.RemoveChild(p)
		}
	}
	return len(empty)
}

func isBlank(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		case html.CommentNode:
		default:
			return false
		}
	}
	return true
}

var (
	metadataClose  = regexp.MustCompile(`</([A-Za-z_][\w.-]*:)?metadata\s*>`)
	packageVersion = regexp.MustCompile(`<([A-Za-z_][\w.-]*:)?package\b[^>]*\bversion\s*=\s*["']([^"']+)["']`)
)

// addAccessibilityMetadata inserts schema.org accessibility metadata into the
// OPF package document. Properties already present are left alone.
func addAccessibilityMetadata(opf []byte, hasImages bool, summary string) ([]byte, int, error) {
	src := string(opf)
	loc := metadataClose.FindStringIndex(src)
	if loc == nil {
		return opf, 0, fmt.Errorf("package document has no metadata element")
	}

	epub3 := true
	if m := packageVersion.FindStringSubmatch(src); m != nil {
		epub3 = strings.HasPrefix(strings.TrimSpace(m[2]), "3")
	}

	type prop struct{ name, value string }
	var want []prop
	if !hasSchemaProperty(src, "accessMode") {
		want = append(want, prop{"accessMode", "textual"})
		if hasImages {
			want = append(want, prop{"accessMode", "visual"})
		}
	}
	if !hasSchemaProperty(src, "accessModeSufficient") {
		want = append(want, prop{"accessModeSufficient", "textual"})
	}
	if hasImages && !hasSchemaValue(src, "accessibilityFeature", "alternativeText") {
		want = append(want, prop{"accessibilityFeature", "alternativeText"})
	}
	if !hasSchemaProperty(src, "accessibilitySummary") {
		want = append(want, prop{"accessibilitySummary", summary})
	}
	if len(want) == 0 {
		return opf, 0, nil
	}

	var b strings.Builder
	for _, p := range want {
		if epub3 {
			fmt.Fprintf(&b, "    <meta property=\"schema:%s\">%s</meta>\n", p.name, html.EscapeString(p.value))
		} else {
			fmt.Fprintf(&b, "    <meta name=\"schema:%s\" content=\"%s\"/>\n", p.name, html.EscapeString(p.value))
		}
	}

	var out strings.Builder
	out.WriteString(src[:loc[0]])
	out.WriteString(b.String())
	out.WriteString(src[loc[0]:])
	return []byte(out.String()), len(want), nil
}

func hasSchemaProperty(opf, name string) bool {
	re := regexp.MustCompile(`(property|name)\s*=\s*["']schema:` + regexp.QuoteMeta(name) + `["']`)
	return re.MatchString(opf)
}

func hasSchemaValue(opf, name, value string) bool {
	q := regexp.QuoteMeta
	property := regexp.MustCompile(`property\s*=\s*["']schema:` + q(name) + `["'][^>]*>\s*` + q(value) + `\s*<`)
	named := regexp.MustCompile(`name\s*=\s*["']schema:` + q(name) + `["'][^>]*content\s*=\s*["']` + q(value) + `["']`)
	return property.MatchString(opf) || named.MatchString(opf)
}
