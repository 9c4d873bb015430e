package epub

import (
	"log/slog"
	"path"
	"strings"

	"github.com/lehigh-university-libraries/alttext/internal/models"
)

// assignCoverRoles marks cover images. EPUB 3 cover-image properties and the
// EPUB 2 cover meta are authoritative; the id/href heuristic only applies
// when neither is present.
func (d *Document) assignCoverRoles() {
	byID := make(map[string]*ImageResource, len(d.images))
	for _, img := range d.images {
		byID[img.ID] = img
	}

	found := false
	for _, item := range d.items {
		if !hasProperty(item.Properties, "cover-image") {
			continue
		}
		if img, ok := byID[item.ID]; ok {
			img.Role = models.RoleCover
			found = true
		}
	}

	for _, meta := range d.pkg.Metadata.Metas {
		if !strings.EqualFold(meta.Name, "cover") {
			continue
		}
		if img, ok := byID[strings.TrimSpace(meta.Content)]; ok {
			img.Role = models.RoleCover
			found = true
		}
	}

	if found {
		return
	}
	for _, img := range d.images {
		if namedCover(img.ID) || namedCover(img.Identifier) {
			slog.Debug("Cover detected by name", "href", img.Identifier)
			img.Role = models.RoleCover
			return
		}
	}
}

// namedCover reports whether "cover" is a whole word of the file's base
// name, so cover.jpg and book_cover.png match but discover.png does not.
func namedCover(name string) bool {
	base := path.Base(strings.ToLower(name))
	base = strings.TrimSuffix(base, path.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' '
	})
	for _, w := range words {
		if w == "cover" {
			return true
		}
	}
	return false
}

func hasProperty(properties, want string) bool {
	for _, p := range strings.Fields(properties) {
		if p == want {
			return true
		}
	}
	return false
}
