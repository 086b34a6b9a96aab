// Package imaging normalizes downloaded cover art to JPEG for templates and
// chat previews.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"sync"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 85

// ToJPEG decodes PNG/GIF/WebP/JPEG bytes, flattens any transparency onto a
// white background and re-encodes as JPEG.
func ToJPEG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format == "jpeg" {
		return data, nil
	}

	return encodeJPEG(flatten(img))
}

// Thumbnail scales the image down so its longer side is at most maxSide,
// returning JPEG bytes. Used for disambiguation preview nodes.
func Thumbnail(data []byte, maxSide int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return encodeJPEG(flatten(img))
	}

	scale := float64(maxSide) / float64(max(w, h))
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return encodeJPEG(flatten(dst))
}

func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Over)
	return out
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	placeholderOnce sync.Once
	placeholderJPEG []byte
)

// Placeholder is the gray "image unavailable" stand-in used when a cover
// download fails. Generated once.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 240, 180))
		draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0xcc, 0xcc, 0xcc, 0xff}), image.Point{}, draw.Src)
		placeholderJPEG, _ = encodeJPEG(img)
	})
	return placeholderJPEG
}
