// Package imageprep turns admitted image bytes into the canonical image the
// recognition engines consume: decoded, upright, opaque RGB and bounded in
// size.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders used by imaging.Decode
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultMaxSide is the default ceiling for the longer image side in pixels.
const DefaultMaxSide = 2000

// ErrDecode marks an undecodable image. It is fatal to the request.
var ErrDecode = errors.New("image decode failed")

// ProcessingError reports which normalization step failed.
type ProcessingError struct {
	Operation string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Options controls normalization.
type Options struct {
	// MaxSide bounds the longer side. Values <= 0 use DefaultMaxSide.
	MaxSide int
}

// DefaultOptions returns the default normalization options.
func DefaultOptions() Options {
	return Options{MaxSide: DefaultMaxSide}
}

// NormalizedImage is an upright, opaque RGB image whose longer side is at
// most the configured ceiling. It is owned by a single request.
type NormalizedImage struct {
	img *image.NRGBA
}

// NewNormalizedImage wraps an already-canonical image. It is intended for
// engines and tests that build pixels directly.
func NewNormalizedImage(img image.Image) *NormalizedImage {
	return &NormalizedImage{img: ToRGB(img)}
}

// Image returns the underlying pixel grid. Alpha is always opaque.
func (n *NormalizedImage) Image() *image.NRGBA { return n.img }

// Width returns the image width in pixels.
func (n *NormalizedImage) Width() int { return n.img.Bounds().Dx() }

// Height returns the image height in pixels.
func (n *NormalizedImage) Height() int { return n.img.Bounds().Dy() }

// RGB returns the pixels as a packed height×width×3 byte array, the layout
// array-based recognition engines expect.
func (n *NormalizedImage) RGB() []uint8 {
	b := n.img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]uint8, 0, w*h*3)
	for y := range h {
		row := n.img.Pix[y*n.img.Stride : y*n.img.Stride+w*4]
		for x := range w {
			out = append(out, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return out
}

// EncodePNG serializes the image losslessly for transport to remote engines.
func (n *NormalizedImage) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, n.img, imaging.PNG); err != nil {
		return nil, &ProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// Normalize decodes data, applies EXIF orientation, converts to RGB and
// downsamples when the longer side exceeds opts.MaxSide.
func Normalize(data []byte, opts Options) (*NormalizedImage, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	rgb := ToRGB(img)
	return &NormalizedImage{img: Downscale(rgb, opts.MaxSide)}, nil
}

// Decode decodes JPEG, PNG or WEBP bytes. Camera orientation metadata is
// applied when present; missing or unreadable metadata leaves pixels as-is.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ProcessingError{Operation: "decode", Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}
	return img, nil
}

// ToRGB converts any color model (paletted, gray, alpha-bearing) to an
// opaque NRGBA image anchored at the origin. Alpha is discarded, not
// composited.
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// TargetSize returns the dimensions after bounding the longer side to
// maxSide. Each side is floored and never drops below one pixel.
func TargetSize(width, height, maxSide int) (int, int) {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	longest := max(width, height)
	if longest <= maxSide {
		return width, height
	}
	// Integer arithmetic keeps the longer side exactly at maxSide.
	w := max(1, width*maxSide/longest)
	h := max(1, height*maxSide/longest)
	return w, h
}

// Downscale bounds the longer side of img using Lanczos resampling, which
// keeps thin glyph strokes intact. Images already within bounds are
// returned unchanged.
func Downscale(img *image.NRGBA, maxSide int) *image.NRGBA {
	b := img.Bounds()
	w, h := TargetSize(b.Dx(), b.Dy(), maxSide)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}
