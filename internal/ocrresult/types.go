// Package ocrresult normalizes the heterogeneous raw outputs of recognition
// engines into uniform line records and a reading-order transcript.
package ocrresult

import (
	"encoding/json"
	"strings"
)

// Point is an (x, y) pixel coordinate. It serializes as [x, y].
type Point [2]float64

// Polygon is an ordered list of points, usually the four corners of a text
// line. A nil Polygon means the geometry could not be recovered.
type Polygon []Point

// LineRecord is one recognized line. Text is never empty or whitespace-only.
type LineRecord struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	BBox       Polygon  `json:"bbox"`
}

// OCRResult is an ordered set of line records together with the transcript
// derived from them. The transcript cannot be set independently.
type OCRResult struct {
	lines    []LineRecord
	fullText string
}

// NewOCRResult builds a result from lines, deriving the full text.
func NewOCRResult(lines []LineRecord) *OCRResult {
	kept := make([]LineRecord, 0, len(lines))
	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		t := strings.TrimSpace(l.Text)
		if t == "" {
			continue
		}
		l.Text = t
		kept = append(kept, l)
		texts = append(texts, t)
	}
	return &OCRResult{
		lines:    kept,
		fullText: strings.TrimSpace(strings.Join(texts, "\n")),
	}
}

// Lines returns a copy of the line records in recognition order.
func (r *OCRResult) Lines() []LineRecord {
	out := make([]LineRecord, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of lines.
func (r *OCRResult) Len() int { return len(r.lines) }

// FullText returns the newline-joined transcript.
func (r *OCRResult) FullText() string { return r.fullText }

type ocrResultJSON struct {
	FullText string       `json:"full_text"`
	Lines    []LineRecord `json:"lines"`
}

// MarshalJSON renders {"full_text": ..., "lines": [...]}; lines is never null.
func (r *OCRResult) MarshalJSON() ([]byte, error) {
	lines := r.lines
	if lines == nil {
		lines = []LineRecord{}
	}
	return json.Marshal(ocrResultJSON{FullText: r.fullText, Lines: lines})
}

// UnmarshalJSON restores a result; the transcript is re-derived from lines.
func (r *OCRResult) UnmarshalJSON(data []byte) error {
	var v ocrResultJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = *NewOCRResult(v.Lines)
	return nil
}
