// Package conversion turns scanned page images into an accessible EPUB and
// publishes it to object storage.
package conversion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/alttext/internal/captioning"
	"github.com/lehigh-university-libraries/alttext/internal/epub"
	"github.com/lehigh-university-libraries/alttext/internal/layout"
	"github.com/lehigh-university-libraries/alttext/internal/models"
	"github.com/lehigh-university-libraries/alttext/internal/objectstore"
)

const epubContentType = "application/epub+zip"

// LayoutAnalyzer segments page images into a layout payload
type LayoutAnalyzer interface {
	Analyze(ctx context.Context, pages []layout.Page) (*layout.Payload, error)
}

// Assembler builds the first EPUB from a layout payload
type Assembler interface {
	Assemble(ctx context.Context, md models.Metadata, payload *layout.Payload) ([]byte, error)
}

// Annotator captions and annotates an assembled document
type Annotator interface {
	Run(ctx context.Context, doc *epub.Document, md models.Metadata) (models.Metadata, *captioning.Result, error)
}

// ObjectStore persists converted output
type ObjectStore interface {
	Upload(ctx context.Context, r io.Reader, key, contentType string) error
	UploadArray(ctx context.Context, arr layout.Array, key string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Request is one book to convert
type Request struct {
	MemberID string
	Metadata models.Metadata
	Pages    []layout.Page
}

// Output describes a finished conversion
type Output struct {
	BookID      string
	StorageKey  string
	DownloadURL string
	CoverKey    string
	Figures     []string
	Metadata    models.Metadata
	Result      *captioning.Result
	// EPUB is the annotated archive that was uploaded
	EPUB []byte
}

// Service runs layout analysis, assembly, captioning and upload in order
type Service struct {
	layout    LayoutAnalyzer
	assembler Assembler
	annotator Annotator
	store     ObjectStore

	presignTTL time.Duration
	newID      func() string
}

// NewService returns a conversion Service
func NewService(analyzer LayoutAnalyzer, assembler Assembler, annotator Annotator, store ObjectStore, presignTTL time.Duration) *Service {
	return &Service{
		layout:     analyzer,
		assembler:  assembler,
		annotator:  annotator,
		store:      store,
		presignTTL: presignTTL,
		newID:      func() string { return uuid.New().String() },
	}
}

// Convert runs the whole conversion. Any step failing aborts the request;
// objects uploaded before the failure are left in place.
func (s *Service) Convert(ctx context.Context, req Request) (*Output, error) {
	if req.MemberID == "" {
		return nil, fmt.Errorf("member id is required")
	}
	if len(req.Pages) == 0 {
		return nil, fmt.Errorf("no pages to convert")
	}

	out := &Output{BookID: s.newID(), Metadata: req.Metadata}
	start := time.Now()
	slog.Info("Starting conversion", "book", out.BookID, "member", req.MemberID, "pages", len(req.Pages))

	payload, err := s.layout.Analyze(ctx, req.Pages)
	if err != nil {
		return nil, fmt.Errorf("layout analysis: %w", err)
	}

	out.Figures, err = s.uploadFigures(ctx, req.MemberID, out.BookID, payload)
	if err != nil {
		return nil, err
	}

	assembled, err := s.assembler.Assemble(ctx, req.Metadata, payload)
	if err != nil {
		return nil, fmt.Errorf("assembly: %w", err)
	}

	doc, err := epub.Parse(assembled)
	if err != nil {
		return nil, err
	}
	out.Metadata, out.Result, err = s.annotator.Run(ctx, doc, req.Metadata)
	if err != nil {
		return nil, err
	}
	out.EPUB, err = doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", doc, err)
	}

	out.StorageKey = objectstore.RegisteredKey(req.MemberID, out.BookID+".epub")
	if err := s.store.Upload(ctx, bytes.NewReader(out.EPUB), out.StorageKey, epubContentType); err != nil {
		return nil, err
	}

	if len(req.Metadata.Cover) > 0 {
		out.CoverKey = objectstore.RegisteredKey(req.MemberID, out.BookID+"-cover"+coverExtension(req.Metadata.CoverFilename))
		if err := s.store.Upload(ctx, bytes.NewReader(req.Metadata.Cover), out.CoverKey, http.DetectContentType(req.Metadata.Cover)); err != nil {
			return nil, err
		}
	}

	out.DownloadURL, err = s.store.PresignedURL(ctx, out.StorageKey, s.presignTTL)
	if err != nil {
		return nil, err
	}

	slog.Info("Conversion complete",
		"book", out.BookID,
		"key", out.StorageKey,
		"figures", len(out.Figures),
		"elapsed", time.Since(start))
	return out, nil
}

func (s *Service) uploadFigures(ctx context.Context, memberID, bookID string, payload *layout.Payload) ([]string, error) {
	arrays, err := payload.Arrays()
	if err != nil {
		return nil, fmt.Errorf("decode layout payload: %w", err)
	}
	keys := make([]string, 0, len(arrays))
	for _, a := range arrays {
		key, err := s.store.UploadArray(ctx, a.Array, objectstore.RegisteredKey(memberID, bookID+"-"+a.Name+".jpg"))
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func coverExtension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		return ".jpg"
	}
	return ext
}
