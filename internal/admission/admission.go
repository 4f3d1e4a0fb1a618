// Package admission decides whether an uploaded byte stream may enter the
// pipeline. The decision only looks at the bytes themselves: file names and
// client-declared content types are never consulted.
package admission

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MIME is the sniffed classification of an upload.
type MIME string

// Admitted image types. Anything else classifies as Unrecognized.
const (
	MIMEJPEG     MIME = "image/jpeg"
	MIMEPNG      MIME = "image/png"
	MIMEWEBP     MIME = "image/webp"
	Unrecognized MIME = ""
)

// DefaultMaxBytes is the default upload ceiling (10 MiB).
const DefaultMaxBytes int64 = 10 * 1024 * 1024

var allowed = []MIME{MIMEJPEG, MIMEPNG, MIMEWEBP}

var (
	// ErrTooLarge is returned when the byte count exceeds the ceiling.
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrUnsupportedType is returned when the signature is not JPEG, PNG or WEBP.
	ErrUnsupportedType = errors.New("unsupported image type")
)

// Error describes a rejected upload.
type Error struct {
	Err      error
	Size     int64
	MaxBytes int64
	Detected string
}

func (e *Error) Error() string {
	if errors.Is(e.Err, ErrTooLarge) {
		return fmt.Sprintf("%v: %d bytes > %d bytes", e.Err, e.Size, e.MaxBytes)
	}
	return fmt.Sprintf("%v: detected %q", e.Err, e.Detected)
}

func (e *Error) Unwrap() error { return e.Err }

// ImageBlob is an admitted upload. It lives for one request only.
type ImageBlob struct {
	Data []byte
	MIME MIME
}

// Sniff classifies data by its magic-number signature. Subtypes such as APNG
// resolve to their admitted parent type.
func Sniff(data []byte) MIME {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		for _, a := range allowed {
			if m.Is(string(a)) {
				return a
			}
		}
	}
	return Unrecognized
}

// Admit validates size and type. Both checks must pass; a maxBytes <= 0
// falls back to DefaultMaxBytes.
func Admit(data []byte, maxBytes int64) (ImageBlob, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	size := int64(len(data))
	if size > maxBytes {
		return ImageBlob{}, &Error{Err: ErrTooLarge, Size: size, MaxBytes: maxBytes}
	}

	mime := Sniff(data)
	if mime == Unrecognized {
		return ImageBlob{}, &Error{
			Err:      ErrUnsupportedType,
			Size:     size,
			MaxBytes: maxBytes,
			Detected: mimetype.Detect(data).String(),
		}
	}

	return ImageBlob{Data: data, MIME: mime}, nil
}
