// Package imaging normalizes arbitrary input images into bounded-size JPEG
// artifacts before storage and upload.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/starford/stacks/internal/apperr"
)

// Compress decodes src, scales it down to at most maxWidth pixels wide
// (never upscaling, aspect ratio preserved), and re-encodes it as JPEG at the
// given quality in (0, 1]. Deterministic for identical inputs.
//
// A source that cannot be decoded returns an error wrapping
// apperr.ErrImageDecode; the fallback-to-original policy is the caller's.
func Compress(src []byte, maxWidth int, quality float64) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("imaging: %w: %v", apperr.ErrImageDecode, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxWidth > 0 && w > maxWidth {
		scale := float64(maxWidth) / float64(w)
		w = maxWidth
		h = int(float64(h)*scale + 0.5)
		if h < 1 {
			h = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	q := int(quality*100 + 0.5)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Dimensions returns the pixel width and height of an encoded image.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("imaging: %w: %v", apperr.ErrImageDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}
