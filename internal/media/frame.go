// Package media renders camera frames onto offscreen canvases and encodes them.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// MIME type constants.
const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
)

// Default canvas and encoding values.
const (
	FallbackWidth  = 640
	FallbackHeight = 480
	DefaultQuality = 60
)

var ErrEmptyFrame = errors.New("empty frame")

// CanvasSize resolves the offscreen canvas size for a source resolution,
// falling back to 640x480 when it is unknown and applying an optional width cap.
func CanvasSize(width, height, maxWidth int) (int, int) {
	if width <= 0 || height <= 0 {
		width, height = FallbackWidth, FallbackHeight
	}
	if maxWidth > 0 && width > maxWidth {
		ratio := float64(maxWidth) / float64(width)
		height = int(float64(height) * ratio)
		if height < 1 {
			height = 1
		}
		width = maxWidth
	}
	return width, height
}

// Render draws src onto a fresh RGBA canvas of the given size. The canvas
// starts from an identity transform, so nothing applied to a preview carries
// over. Sources of a different size are scaled bilinearly.
func Render(src image.Image, width, height int) (*image.RGBA, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		draw.Copy(canvas, image.Point{}, src, bounds, draw.Src, nil)
		return canvas, nil
	}
	draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), src, bounds, draw.Src, nil)
	return canvas, nil
}

// EncodeJPEGBase64 encodes img as JPEG at the given quality and returns the
// standard base64 payload without a data URL prefix.
func EncodeJPEGBase64(img image.Image, quality int) (string, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// PNGDataURL encodes img losslessly as a data URL.
func PNGDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode png: %w", err)
	}
	return DataURL(MIMETypePNG, base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// DataURL wraps a base64 payload.
func DataURL(mimeType string, payload string) string {
	return "data:" + mimeType + ";base64," + payload
}
