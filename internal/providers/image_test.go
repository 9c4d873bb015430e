package providers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 10, G: 200, B: 10, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		name      string
		w, h      int
		unchanged bool
		wantW     int
		wantH     int
	}{
		{name: "small image untouched", w: 20, h: 10, unchanged: true},
		{name: "wide image", w: 200, h: 100, wantW: 50, wantH: 25},
		{name: "tall image", w: 100, h: 400, wantW: 13, wantH: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := encodePNG(t, tt.w, tt.h)
			out := Downscale(in, 50)
			if tt.unchanged {
				assert.Equal(t, in, out)
				return
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, "jpeg", format)
			assert.Equal(t, tt.wantW, cfg.Width)
			assert.Equal(t, tt.wantH, cfg.Height)
		})
	}
}

func TestDownscale_Undecodable(t *testing.T) {
	in := []byte("not an image")
	assert.Equal(t, in, Downscale(in, 10))
}
