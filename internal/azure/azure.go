// Package azure describes images with the Azure AI Vision Image Analysis API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/alttext/internal/providers"
)

const (
	analyzePath = "/computervision/imageanalysis:analyze"
	apiVersion  = "2024-02-01"
)

// Config holds the Azure Vision endpoint and credentials
type Config struct {
	Endpoint string
	Key      string
	Timeout  time.Duration
}

// Client is a direct analyzer backed by Azure AI Vision
type Client struct {
	endpoint string
	key      string
	http     *http.Client

	closeOnce sync.Once
}

// New returns a Client. Endpoint and Key are required.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("AZURE_VISION_ENDPOINT not set")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("AZURE_VISION_KEY not set")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		key:      cfg.Key,
		http:     &http.Client{Timeout: timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
	}, nil
}

// Name identifies the provider in logs and errors
func (c *Client) Name() string {
	return "azure"
}

// Analyze requests a gender-neutral caption for one image
func (c *Client) Analyze(ctx context.Context, image []byte) (*providers.Analysis, error) {
	url := fmt.Sprintf("%s%s?api-version=%s&features=caption&gender-neutral-caption=true", c.endpoint, analyzePath, apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		CaptionResult *struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captionResult"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	if response.CaptionResult == nil || strings.TrimSpace(response.CaptionResult.Text) == "" {
		return nil, fmt.Errorf("no caption returned from Azure Vision")
	}

	return &providers.Analysis{
		Caption:    providers.CleanCaption(response.CaptionResult.Text),
		Confidence: response.CaptionResult.Confidence,
	}, nil
}

// Close releases idle connections held by the client
func (c *Client) Close() error {
	c.closeOnce.Do(c.http.CloseIdleConnections)
	return nil
}
