package ollama

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/alttext/internal/providers"
)

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body struct {
			Model  string   `json:"model"`
			Prompt string   `json:"prompt"`
			Images []string `json:"images"`
			Stream bool     `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llava", body.Model)
		assert.Equal(t, providers.AltTextPrompt, body.Prompt)
		assert.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("img"))}, body.Images)
		assert.False(t, body.Stream)

		_, _ = w.Write([]byte(`{"response":" \"A castle on a hill.\"\n"}`))
	}))
	defer srv.Close()

	o := New(srv.URL, providers.Config{})
	defer o.Close()

	got, err := o.Analyze(t.Context(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "A castle on a hill.", got.Caption)
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "model not loaded"},
		{name: "empty response", status: http.StatusOK, body: `{"response":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, providers.Config{Model: "m"}).Analyze(t.Context(), []byte("x"))
			assert.Error(t, err)
		})
	}
}
