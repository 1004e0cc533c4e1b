package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"
)

const (
	maxImageDimension = 1600
	webpQuality       = 85
)

// NormalizeImage decodes a JPEG or PNG, caps its largest dimension and
// re-encodes as WebP. Evidence photos arrive straight from phone cameras,
// so this keeps stored objects small without visible loss.
func NormalizeImage(r io.Reader) (io.Reader, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageDimension || h > maxImageDimension {
		if w >= h {
			h = h * maxImageDimension / w
			w = maxImageDimension
		} else {
			w = w * maxImageDimension / h
			h = maxImageDimension
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, src, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, fmt.Errorf("encoding webp: %w", err)
	}
	return &buf, nil
}

// IsImageContentType reports whether the upload should go through image
// normalization.
func IsImageContentType(ct string) bool {
	switch ct {
	case "image/jpeg", "image/png":
		return true
	}
	return false
}
