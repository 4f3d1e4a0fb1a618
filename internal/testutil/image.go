// Package testutil provides image and recognition-output fixtures shared by
// package tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabelLines is a short ingredient panel used by text image fixtures.
var LabelLines = []string{
	"INGREDIENTS: WHEAT FLOUR, SUGAR,",
	"PALM OIL, SALT, GARLIC POWDER.",
	"SODIUM 920MG  SUGAR 12G",
}

// TextImageConfig holds configuration for generating label-like images.
type TextImageConfig struct {
	Width      int
	Height     int
	Lines      []string
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
}

// DefaultTextImageConfig returns a white 640×240 panel with LabelLines.
func DefaultTextImageConfig() TextImageConfig {
	return TextImageConfig{
		Width:      640,
		Height:     240,
		Lines:      LabelLines,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// GenerateTextImage draws the configured lines top to bottom with a fixed
// left margin.
func GenerateTextImage(cfg TextImageConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{cfg.Foreground},
		Face: cfg.FontFace,
	}
	lineHeight := cfg.FontFace.Metrics().Height.Ceil() * 2
	for i, line := range cfg.Lines {
		drawer.Dot = fixed.P(16, (i+1)*lineHeight)
		drawer.DrawString(line)
	}
	return img
}

// BlankImage returns a uniform image of the given size.
func BlankImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "encode PNG")
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG at quality 90.
func EncodeJPEG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}), "encode JPEG")
	return buf.Bytes()
}

// WithEXIFOrientation inserts an APP1 segment carrying the given EXIF
// orientation tag (1-8) directly after the JPEG SOI marker.
func WithEXIFOrientation(t testing.TB, jpg []byte, orientation uint16) []byte {
	t.Helper()

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	_ = binary.Write(&tiff, binary.BigEndian, uint16(42))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(8))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(1)) // one IFD entry
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x0112))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(3)) // SHORT
	_ = binary.Write(&tiff, binary.BigEndian, uint32(1))
	_ = binary.Write(&tiff, binary.BigEndian, orientation)
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(0)) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	return insertAPP1(t, jpg, payload)
}

// WithCorruptEXIF inserts an APP1 segment whose EXIF body is garbage.
func WithCorruptEXIF(t testing.TB, jpg []byte) []byte {
	t.Helper()
	payload := append([]byte("Exif\x00\x00"), []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}...)
	return insertAPP1(t, jpg, payload)
}

func insertAPP1(t testing.TB, jpg, payload []byte) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(jpg), 2)
	require.Equal(t, []byte{0xff, 0xd8}, jpg[:2], "not a JPEG")

	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xff, 0xe1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpg[2:])
	return out.Bytes()
}
