package models

import (
	"fmt"
	"strings"
	"time"
)

// ImageRole says where an image resource sits in a book
type ImageRole string

const (
	RoleBody  ImageRole = "body"
	RoleCover ImageRole = "cover"
)

// JobStatus tracks a conversion job through the pipeline
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ConversionJob represents a book conversion request
type ConversionJob struct {
	ID          string    `json:"id"`
	MemberID    string    `json:"member_id"`
	Status      JobStatus `json:"status"`
	Metadata    Metadata  `json:"metadata"`
	Pages       int       `json:"pages"`
	Images      []string  `json:"images,omitempty"`
	StorageKey  string    `json:"storage_key,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Metadata describes the book being converted. CoverAlt is filled in by the
// captioning pipeline.
type Metadata struct {
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	CoverAlt      string    `json:"cover_alt,omitempty"`
	Cover         []byte    `json:"-"`
	CoverFilename string    `json:"cover,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewMetadata validates the required fields and defaults CreatedAt to now
func NewMetadata(title, author string, cover []byte, coverFilename string, createdAt time.Time) (Metadata, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" {
		return Metadata{}, fmt.Errorf("metadata: title is required")
	}
	if author == "" {
		return Metadata{}, fmt.Errorf("metadata: author is required")
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return Metadata{
		Title:         title,
		Author:        author,
		Cover:         cover,
		CoverFilename: coverFilename,
		CreatedAt:     createdAt,
	}, nil
}

// CaptionRequest is one image queued for the direct-analysis provider
type CaptionRequest struct {
	Identifier string
	Content    []byte
}

// CaptionResult is a caption for one image. Content is carried along because
// the refinement pass sends the image bytes again.
type CaptionResult struct {
	Identifier string
	Caption    string
	Content    []byte
}
