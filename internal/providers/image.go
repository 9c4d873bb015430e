package providers

import (
	"bytes"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
)

// MaxImageSide is the longest edge sent to vision models
const MaxImageSide = 1568

// Downscale shrinks an image so its longest side is at most maxSide and
// re-encodes it as JPEG. Images that are already small enough, or that cannot
// be decoded, are returned unchanged.
func Downscale(data []byte, maxSide int) []byte {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		slog.Debug("Sending image without downscaling", "err", err)
		return data
	}

	b := img.Bounds()
	if b.Dx() <= maxSide && b.Dy() <= maxSide {
		return data
	}

	var resized image.Image
	if b.Dx() >= b.Dy() {
		resized = imaging.Resize(img, maxSide, 0, imaging.Lanczos)
	} else {
		resized = imaging.Resize(img, 0, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flatten(resized), imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		slog.Warn("Failed to re-encode downscaled image", "err", err)
		return data
	}
	return buf.Bytes()
}

// flatten composites transparent pixels onto white before JPEG encoding
func flatten(img image.Image) image.Image {
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), image.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
