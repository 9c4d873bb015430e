package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/alttext/internal/epub"
	"github.com/lehigh-university-libraries/alttext/internal/models"
)

// HandleAnnotate captions an uploaded EPUB and returns the annotated archive.
// The cover alt text is reported in the X-Cover-Alt header.
func (h *Handler) HandleAnnotate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := epub.Parse(data)
	if err != nil {
		h.writeError(w, err.Error(), statusForError(err))
		return
	}

	md := models.Metadata{
		Title:     firstNonEmpty(r.FormValue("title"), doc.Title()),
		Author:    r.FormValue("author"),
		CreatedAt: time.Now(),
	}
	md, res, err := h.annotator.Run(r.Context(), doc, md)
	if err != nil {
		h.writeError(w, err.Error(), statusForError(err))
		return
	}

	out, err := doc.Bytes()
	if err != nil {
		h.writeError(w, "Failed to write document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("Annotated upload", "filename", header.Filename, "images", len(res.Order), "bytes", len(out))

	name := strings.TrimSuffix(path.Base(header.Filename), path.Ext(header.Filename)) + "-accessible.epub"
	w.Header().Set("Content-Type", "application/epub+zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if md.CoverAlt != "" {
		w.Header().Set("X-Cover-Alt", md.CoverAlt)
	}
	_, _ = w.Write(out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
