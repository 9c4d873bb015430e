package ollama

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

	"github.com/lehigh-university-libraries/alttext/internal/providers"
)

const (
	defaultURL   = "http://localhost:11434"
	defaultModel = "llava"
)

// Ollama is a direct analyzer backed by a vision model served by Ollama
type Ollama struct {
	url    string
	config providers.Config
	http   *http.Client

	closeOnce sync.Once
}

// New returns a new Ollama analyzer. Empty fields fall back to a local
// server, the llava model and the default alt text prompt.
func New(baseURL string, config providers.Config) *Ollama {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Prompt == "" {
		config.Prompt = providers.AltTextPrompt
	}
	if config.Temperature == 0 {
		config.Temperature = 0.1
	}
	return &Ollama{
		url:    strings.TrimRight(baseURL, "/"),
		config: config,
		http:   &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
	}
}

// Name identifies the provider in logs and errors
func (o *Ollama) Name() string {
	return "ollama"
}

// Analyze asks the model for alt text describing one image
func (o *Ollama) Analyze(ctx context.Context, image []byte) (*providers.Analysis, error) {
	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  o.config.Model,
		"prompt": o.config.Prompt,
		"images": []string{base64.StdEncoding.EncodeToString(providers.Downscale(image, providers.MaxImageSide))},
		"stream": false,
		"options": map[string]interface{}{
			"temperature": o.config.Temperature,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	caption := providers.CleanCaption(response.Response)
	if caption == "" {
		return nil, fmt.Errorf("empty response from Ollama")
	}
	return &providers.Analysis{Caption: caption}, nil
}

// Close releases idle connections held by the client
func (o *Ollama) Close() error {
	o.closeOnce.Do(o.http.CloseIdleConnections)
	return nil
}
