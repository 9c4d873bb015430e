package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/alttext/internal/conversion"
	"github.com/lehigh-university-libraries/alttext/internal/layout"
	"github.com/lehigh-university-libraries/alttext/internal/models"
)

// HandleBooks converts uploaded page scans into an EPUB (POST) or lists
// conversion jobs (GET).
func (h *Handler) HandleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleConvert(w, r)
	case http.MethodGet:
		h.HandleJobs(w, r)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	if h.converter == nil {
		h.writeError(w, "Book conversion is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	memberID := strings.TrimSpace(r.FormValue("member_id"))
	if memberID == "" {
		h.writeError(w, "member_id is required", http.StatusBadRequest)
		return
	}

	pages, err := readPages(r.MultipartForm.File["files"])
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cover, coverFilename, err := readOptionalFile(r, "cover")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	md, err := models.NewMetadata(r.FormValue("title"), r.FormValue("author"), cover, coverFilename, time.Now())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := &models.ConversionJob{
		ID:        uuid.New().String(),
		MemberID:  memberID,
		Status:    models.JobProcessing,
		Metadata:  md,
		Pages:     len(pages),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	h.jobStore.Set(job.ID, job)
	slog.Info("Created conversion job", "job_id", job.ID, "member", memberID, "pages", len(pages))

	out, err := h.converter.Convert(r.Context(), conversion.Request{
		MemberID: memberID,
		Metadata: md,
		Pages:    pages,
	})
	if err != nil {
		h.jobStore.Update(job.ID, func(j *models.ConversionJob) {
			j.Status = models.JobFailed
			j.Error = err.Error()
		})
		h.writeError(w, fmt.Sprintf("Conversion %s failed: %v", job.ID, err), statusForError(err))
		return
	}

	h.jobStore.Update(job.ID, func(j *models.ConversionJob) {
		j.Status = models.JobCompleted
		j.Metadata = out.Metadata
		j.Images = out.Figures
		j.StorageKey = out.StorageKey
		j.DownloadURL = out.DownloadURL
	})
	job, _ = h.jobStore.Get(job.ID)
	h.writeJSONStatus(w, job, http.StatusCreated)
}

func readPages(headers []*multipart.FileHeader) ([]layout.Page, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("at least one page image is required in files")
	}
	pages := make([]layout.Page, 0, len(headers))
	for _, fh := range headers {
		data, err := readFileHeader(fh)
		if err != nil {
			return nil, err
		}
		pages = append(pages, layout.Page{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     data,
		})
	}
	return pages, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// readOptionalFile returns nil data when field was not sent
func readOptionalFile(r *http.Request, field string) ([]byte, string, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, "", nil
	}
	fh := r.MultipartForm.File[field][0]
	data, err := readFileHeader(fh)
	if err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}
