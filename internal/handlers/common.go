package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/alttext/internal/conversion"
	"github.com/lehigh-university-libraries/alttext/internal/errors"
	"github.com/lehigh-university-libraries/alttext/internal/models"
	"github.com/lehigh-university-libraries/alttext/internal/storage"
)

const maxUploadSize = 200 << 20

// Converter runs an end-to-end book conversion
type Converter interface {
	Convert(ctx context.Context, req conversion.Request) (*conversion.Output, error)
}

type Handler struct {
	jobStore  *storage.JobStore
	converter Converter
	annotator conversion.Annotator
}

// New returns a Handler. A nil converter disables /api/books, for servers
// started without object storage.
func New(converter Converter, annotator conversion.Annotator) *Handler {
	return &Handler{
		jobStore:  storage.New(),
		converter: converter,
		annotator: annotator,
	}
}

// Routes registers every endpoint on mux
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/books", h.HandleBooks)
	mux.HandleFunc("/api/annotate", h.HandleAnnotate)
	mux.HandleFunc("/api/jobs", h.HandleJobs)
	mux.HandleFunc("/api/jobs/", h.HandleJobDetail)
	mux.HandleFunc("/healthcheck", h.HandleHealthcheck)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, data, http.StatusOK)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message, "status", code)
	http.Error(w, message, code)
}

// statusForError maps pipeline failures onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.IsProviderCallError(err), errors.IsProviderClientError(err):
		return http.StatusBadGateway
	case errors.IsMalformedDocumentError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Job helpers
func (h *Handler) getJobOrError(w http.ResponseWriter, jobID string) (*models.ConversionJob, bool) {
	job, exists := h.jobStore.Get(jobID)
	if !exists {
		h.writeError(w, "Job not found", http.StatusNotFound)
		return nil, false
	}
	return job, true
}

func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
