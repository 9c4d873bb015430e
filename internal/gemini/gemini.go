package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/lehigh-university-libraries/alttext/internal/models"
	"github.com/lehigh-university-libraries/alttext/internal/providers"
)

const defaultModel = "gemini-1.5-flash"

// Gemini is a batch refiner backed by Google Gemini
type Gemini struct {
	client *genai.Client
	config providers.Config

	closeOnce sync.Once
	closeErr  error
}

// New creates the underlying genai client. The caller owns the returned
// refiner and must Close it.
func New(ctx context.Context, apiKey string, config providers.Config, opts ...option.ClientOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	if config.Model == "" {
		config.Model = defaultModel
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	return &Gemini{client: client, config: config}, nil
}

// Name identifies the provider in logs and errors
func (g *Gemini) Name() string {
	return "gemini"
}

// Refine sends every image with its draft caption in one request
func (g *Gemini) Refine(ctx context.Context, results []models.CaptionResult) (map[string]string, error) {
	model := g.client.GenerativeModel(g.config.Model)
	model.SetTemperature(float32(g.config.Temperature))
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, buildParts(results)...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return providers.ParseRefined(text)
}

// Close closes the genai client
func (g *Gemini) Close() error {
	g.closeOnce.Do(func() {
		g.closeErr = g.client.Close()
	})
	return g.closeErr
}

func buildParts(results []models.CaptionResult) []genai.Part {
	parts := []genai.Part{genai.Text(providers.RefinePrompt())}
	for _, r := range results {
		parts = append(parts,
			genai.Text(providers.RefineItemText(r)),
			genai.ImageData(imageFormat(r.Content), r.Content),
		)
	}
	return parts
}

// imageFormat returns the subtype genai.ImageData expects, e.g. "png"
func imageFormat(image []byte) string {
	return strings.TrimPrefix(providers.DetectMediaType(image), "image/")
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		if txt, ok := p.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return sb.String(), nil
}
