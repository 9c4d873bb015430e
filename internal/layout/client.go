// Package layout talks to the layout analysis service and decodes the NumPy
// archive it returns.
package layout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Minute

// Page is one scanned page image sent for analysis
type Page struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Payload is the raw .npz archive returned by the service
type Payload struct {
	Data []byte
}

// Arrays decodes the archive members
func (p *Payload) Arrays() ([]NamedArray, error) {
	return DecodeArrays(p.Data)
}

// Client calls POST {baseURL}/layout-analysis
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a layout analysis client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// Analyze uploads the pages as repeated multipart "files" fields. Any status
// other than 200 is an error.
func (c *Client) Analyze(ctx context.Context, pages []Page) (*Payload, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to analyze")
	}

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	for _, p := range pages {
		ct := p.ContentType
		if ct == "" {
			ct = http.DetectContentType(p.Content)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, p.Filename))
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create multipart part: %w", err)
		}
		if _, err := part.Write(p.Content); err != nil {
			return nil, fmt.Errorf("failed to write page %s: %w", p.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/layout-analysis", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("layout analysis failed: %d - %s", resp.StatusCode, string(msg))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout payload: %w", err)
	}
	slog.Info("Layout analysis complete", "pages", len(pages), "bytes", len(data), "elapsed", time.Since(start))
	return &Payload{Data: data}, nil
}
