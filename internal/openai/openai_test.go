package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/alttext/internal/models"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRefine(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		content := `{"captions":[{"id":"p1.jpg","caption":"A red door"},{"id":"cover.jpg","caption":"Portrait of a castle"}]}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	}))
	defer srv.Close()

	o, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	defer o.Close()

	refined, err := o.Refine(t.Context(), []models.CaptionResult{
		{Identifier: "p1.jpg", Caption: "a door", Content: []byte("one")},
		{Identifier: "cover.jpg", Caption: "a castle", Content: []byte("two")},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"p1.jpg": "A red door", "cover.jpg": "Portrait of a castle"}, refined)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 1)
	parts := got.Messages[0].Content
	// prompt, then a text and image part per result
	require.Len(t, parts, 5)
	assert.Contains(t, parts[1].Text, "p1.jpg")
	require.NotNil(t, parts[2].ImageURL)
	assert.True(t, strings.HasPrefix(parts[2].ImageURL.URL, "data:image/jpeg;base64,"))
}

func TestRefine_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non-200", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"overloaded"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "unparseable content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"sorry"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			o, err := New(Config{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = o.Refine(t.Context(), []models.CaptionResult{{Identifier: "a", Caption: "b"}})
			assert.Error(t, err)
		})
	}
}
