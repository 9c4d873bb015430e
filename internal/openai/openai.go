package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/alttext/internal/models"
	"github.com/lehigh-university-libraries/alttext/internal/providers"
)

// Ensure OpenAI implements the interface.
var _ providers.Refiner = (*OpenAI)(nil)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
	DefaultTimeout = 180 * time.Second
)

// Config holds configuration for the OpenAI refiner
type Config struct {
	APIKey string
	// BaseURL can point at any chat completions compatible API
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAI is a batch refiner using the chat completions API
type OpenAI struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	http        *http.Client

	closeOnce sync.Once
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New returns a new OpenAI refiner
func New(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAI{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}, nil
}

// Name identifies the provider in logs and errors
func (o *OpenAI) Name() string {
	return "openai"
}

// Refine sends every image with its draft caption in one request
func (o *OpenAI) Refine(ctx context.Context, results []models.CaptionResult) (map[string]string, error) {
	parts := []contentPart{{Type: "text", Text: providers.RefinePrompt()}}
	for _, r := range results {
		parts = append(parts,
			contentPart{Type: "text", Text: providers.RefineItemText(r)},
			contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL(providers.Downscale(r.Content, providers.MaxImageSide)), Detail: "low"}},
		)
	}

	requestBody, err := json.Marshal(chatRequest{
		Model:          o.model,
		Messages:       []chatMessage{{Role: "user", Content: parts}},
		Temperature:    o.temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("openai: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}

	return providers.ParseRefined(response.Choices[0].Message.Content)
}

// Close releases idle connections held by the client
func (o *OpenAI) Close() error {
	o.closeOnce.Do(o.http.CloseIdleConnections)
	return nil
}

func dataURL(image []byte) string {
	return "data:" + providers.DetectMediaType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}
