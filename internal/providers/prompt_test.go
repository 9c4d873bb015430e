package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/alttext/internal/models"
)

func TestParseRefined(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"captions":[{"id":"p1.jpg","caption":"A red door"},{"id":"cover.jpg","caption":" Portrait of a castle "}]}`,
			want: map[string]string{"p1.jpg": "A red door", "cover.jpg": "Portrait of a castle"},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"captions\":[{\"id\":\"a\",\"caption\":\"b\"}]}\n```",
			want: map[string]string{"a": "b"},
		},
		{
			name: "entries without id are dropped",
			raw:  `{"captions":[{"id":"","caption":"lost"},{"id":"x","caption":"kept"}]}`,
			want: map[string]string{"x": "kept"},
		},
		{
			name:    "not json",
			raw:     "I cannot help with that",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRefined(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRefineItemText(t *testing.T) {
	got := RefineItemText(models.CaptionResult{Identifier: "p1.jpg", Caption: "a door"})
	assert.Equal(t, "id: p1.jpg\ndraft caption: a door", got)
}

func TestCleanCaption(t *testing.T) {
	assert.Equal(t, "A red door", CleanCaption("  \"A red door\"\n"))
}

func TestDetectMediaType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, "image/png", DetectMediaType(png))
	assert.Equal(t, "image/jpeg", DetectMediaType([]byte("garbage")))
}
