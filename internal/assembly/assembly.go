// Package assembly calls the OCR and initial assembly service, which turns a
// layout payload into a first EPUB.
package assembly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/alttext/internal/layout"
	"github.com/lehigh-university-libraries/alttext/internal/models"
)

// Client calls POST {baseURL}/assemble
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns an assembly client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5001"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Minute},
	}
}

type metadataPart struct {
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// Assemble sends the book metadata and layout payload and returns the EPUB
// archive bytes.
func (c *Client) Assemble(ctx context.Context, md models.Metadata, payload *layout.Payload) ([]byte, error) {
	if payload == nil || len(payload.Data) == 0 {
		return nil, fmt.Errorf("empty layout payload")
	}

	meta, err := json.Marshal(metadataPart{Title: md.Title, Author: md.Author, CreatedAt: md.CreatedAt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("metadata", string(meta)); err != nil {
		return nil, fmt.Errorf("failed to write metadata field: %w", err)
	}
	part, err := mw.CreateFormFile("payload", "layout.npz")
	if err != nil {
		return nil, fmt.Errorf("failed to create payload part: %w", err)
	}
	if _, err := part.Write(payload.Data); err != nil {
		return nil, fmt.Errorf("failed to write payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assemble", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/epub+zip")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("assembly failed: %d - %s", resp.StatusCode, string(msg))
	}

	epub, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read assembled epub: %w", err)
	}
	if len(epub) == 0 {
		return nil, fmt.Errorf("assembly returned an empty document")
	}
	slog.Info("Assembled EPUB", "title", md.Title, "bytes", len(epub), "elapsed", time.Since(start))
	return epub, nil
}
