package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/lehigh-university-libraries/alttext/internal/layout"
)

const (
	pngType  = "image/png"
	jpegType = "image/jpeg"
)

// EncodeArray encodes an (H, W[, C]) uint8 array. Four channel arrays keep
// their alpha and become PNG; everything else is converted to RGB and
// becomes JPEG. It returns the encoded bytes, content type and extension.
func EncodeArray(arr layout.Array) ([]byte, string, string, error) {
	if len(arr.Shape) < 2 || len(arr.Shape) > 3 {
		return nil, "", "", fmt.Errorf("unsupported array shape %v", arr.Shape)
	}
	h, w, c := arr.Height(), arr.Width(), arr.Channels()
	if h == 0 || w == 0 {
		return nil, "", "", fmt.Errorf("empty array shape %v", arr.Shape)
	}
	if c <= 0 || w > len(arr.Data)/h || c > len(arr.Data)/(h*w) {
		return nil, "", "", fmt.Errorf("array data has %d bytes, too short for shape %v", len(arr.Data), arr.Shape)
	}

	var buf bytes.Buffer
	if c == 4 {
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		copy(img.Pix, arr.Data[:h*w*4])
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, "", "", fmt.Errorf("failed to encode png: %w", err)
		}
		return buf.Bytes(), pngType, ".png", nil
	}

	img, err := toRGB(arr, h, w, c)
	if err != nil {
		return nil, "", "", err
	}
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, "", "", fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), jpegType, ".jpg", nil
}

func toRGB(arr layout.Array, h, w, c int) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * c
			var px color.NRGBA
			switch c {
			case 1, 2:
				// gray, or gray plus a dropped alpha channel
				v := arr.Data[i]
				px = color.NRGBA{R: v, G: v, B: v, A: 255}
			case 3:
				px = color.NRGBA{R: arr.Data[i], G: arr.Data[i+1], B: arr.Data[i+2], A: 255}
			default:
				return nil, fmt.Errorf("unsupported channel count %d", c)
			}
			img.SetNRGBA(x, y, px)
		}
	}
	return img, nil
}

// UploadArray encodes arr and uploads it under key, with the extension
// rewritten to match the encoding. It returns the key actually written.
func (s *Store) UploadArray(ctx context.Context, arr layout.Array, key string) (string, error) {
	data, contentType, ext, err := EncodeArray(arr)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	finalKey := withExtension(key, ext)
	if err := s.Upload(ctx, bytes.NewReader(data), finalKey, contentType); err != nil {
		return "", err
	}
	return finalKey, nil
}
