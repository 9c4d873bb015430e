package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/alttext/internal/models"
)

const (
	// AltTextPrompt is sent with a single image to direct analyzers that take a prompt
	AltTextPrompt = "Write alt text for this image from a book. Describe what is shown in one or two plain sentences, under 250 characters. Do not start with \"Image of\" or \"Picture of\". Respond with the alt text only."

	refinePrompt = `You are improving alt text for the images of an accessible EPUB.
Each image below is preceded by its id and a draft caption produced by an image analysis service.
For every image, write concise, specific alt text (at most 250 characters) that a screen reader user would find useful.
Correct the draft when it is wrong. Do not mention that it is an image unless that matters.
Respond with JSON only, in the form {"captions":[{"id":"<id>","caption":"<alt text>"}]}, with one entry per id.`
)

// RefinePrompt returns the instruction text sent ahead of the image parts
func RefinePrompt() string {
	return refinePrompt
}

// RefineItemText labels one image part in a refinement request
func RefineItemText(r models.CaptionResult) string {
	return fmt.Sprintf("id: %s\ndraft caption: %s", r.Identifier, r.Caption)
}

type refinedCaptions struct {
	Captions []struct {
		ID      string `json:"id"`
		Caption string `json:"caption"`
	} `json:"captions"`
}

// ParseRefined decodes a refinement response into an identifier keyed map.
// Markdown code fences around the JSON are tolerated.
func ParseRefined(raw string) (map[string]string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed refinedCaptions
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode refined captions: %w", err)
	}

	out := make(map[string]string, len(parsed.Captions))
	for _, c := range parsed.Captions {
		if c.ID == "" {
			continue
		}
		out[c.ID] = strings.TrimSpace(c.Caption)
	}
	return out, nil
}

// CleanCaption trims model output down to a single alt text string
func CleanCaption(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"")
	return strings.TrimSpace(s)
}

// DetectMediaType sniffs the content type of an image payload
func DetectMediaType(image []byte) string {
	ct := http.DetectContentType(image)
	if !strings.HasPrefix(ct, "image/") {
		return "image/jpeg"
	}
	return ct
}
