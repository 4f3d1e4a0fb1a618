package ocrresult

import "strings"

// Normalize converts raw engine output of any known layout into an
// OCRResult. Unknown or empty input yields zero lines and an empty
// transcript; it never fails.
func Normalize(raw any) *OCRResult {
	return NewOCRResult(Classify(raw).Lines())
}

// NormalizePolygon converts a raw geometry value to a polygon. A flat
// sequence of exactly four numbers is a box and is expanded to its corners.
// Otherwise every element must be a point with at least two numeric
// coordinates; any violation, or an empty sequence, yields nil.
func NormalizePolygon(v any) Polygon {
	items, ok := seq(v)
	if !ok || len(items) == 0 {
		return nil
	}
	if p := ExpandBox(items); p != nil {
		return p
	}
	poly := make(Polygon, 0, len(items))
	for _, it := range items {
		pt, ok := seq(it)
		if !ok || len(pt) < 2 {
			return nil
		}
		x, okX := Float(pt[0])
		y, okY := Float(pt[1])
		if !okX || !okY {
			return nil
		}
		poly = append(poly, Point{x, y})
	}
	return poly
}

// ExpandBox turns [x1, y1, x2, y2] into the rectangle
// [[x1,y1],[x2,y1],[x2,y2],[x1,y2]]. Anything else yields nil.
func ExpandBox(v any) Polygon {
	items, ok := seq(v)
	if !ok || len(items) != 4 {
		return nil
	}
	var c [4]float64
	for i, it := range items {
		// Nested sequences are points, never box coordinates.
		if _, nested := seq(it); nested {
			return nil
		}
		f, ok := Float(it)
		if !ok {
			return nil
		}
		c[i] = f
	}
	x1, y1, x2, y2 := c[0], c[1], c[2], c[3]
	return Polygon{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}}
}

func appendLine(lines []LineRecord, text string, conf any, bbox Polygon) []LineRecord {
	text = strings.TrimSpace(text)
	if text == "" {
		return lines
	}
	return append(lines, LineRecord{Text: text, Confidence: confidence(conf), BBox: bbox})
}
