package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetadata(t *testing.T) {
	created := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		title     string
		author    string
		createdAt time.Time
		wantErr   string
	}{
		{name: "valid", title: "The Castle", author: "Franz Kafka", createdAt: created},
		{name: "trims whitespace", title: "  The Castle ", author: " Franz Kafka", createdAt: created},
		{name: "missing title", title: " ", author: "Franz Kafka", wantErr: "title is required"},
		{name: "missing author", title: "The Castle", author: "", wantErr: "author is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := NewMetadata(tt.title, tt.author, nil, "", tt.createdAt)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "The Castle", md.Title)
			assert.Equal(t, "Franz Kafka", md.Author)
			assert.Equal(t, created, md.CreatedAt)
			assert.Empty(t, md.CoverAlt)
		})
	}
}

func TestNewMetadataDefaultsCreatedAt(t *testing.T) {
	before := time.Now()
	md, err := NewMetadata("Title", "Author", []byte{1}, "cover.jpg", time.Time{})
	require.NoError(t, err)
	assert.False(t, md.CreatedAt.Before(before))
	assert.Equal(t, "cover.jpg", md.CoverFilename)
}
