package ocrresult

import "fmt"

// ShapeKind identifies which raw output layout an engine produced.
type ShapeKind int

const (
	// ShapeUnrecognized is anything that is not a sequence.
	ShapeUnrecognized ShapeKind = iota
	// ShapePages is a sequence of page records with parallel rec_* fields.
	ShapePages
	// ShapeLegacy is nested sequences of [polygon, [text, score]] entries.
	ShapeLegacy
)

func (k ShapeKind) String() string {
	switch k {
	case ShapePages:
		return "pages"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unrecognized"
	}
}

// Shape is a classified raw recognition output. Lines is total and has no
// side effects.
type Shape interface {
	Kind() ShapeKind
	Lines() []LineRecord
}

// maxLegacyDepth bounds descent into nested legacy sequences.
const maxLegacyDepth = 8

// PagesShape holds page records, each carrying rec_texts, rec_scores,
// rec_polys and optionally rec_boxes.
type PagesShape struct {
	Pages []map[string]any
}

func (PagesShape) Kind() ShapeKind { return ShapePages }

// Lines walks rec_texts of every page in order. Scores and geometry are
// looked up by index; a missing index yields nil.
func (s PagesShape) Lines() []LineRecord {
	var lines []LineRecord
	for _, page := range s.Pages {
		texts := listField(page, "rec_texts")
		scores := listField(page, "rec_scores")
		polys := listField(page, "rec_polys")
		boxes := listField(page, "rec_boxes")

		for i, t := range texts {
			var conf any
			if i < len(scores) {
				conf = scores[i]
			}
			var bbox Polygon
			switch {
			case i < len(polys):
				bbox = NormalizePolygon(polys[i])
			case i < len(boxes):
				bbox = ExpandBox(boxes[i])
			}
			lines = appendLine(lines, textOf(t), conf, bbox)
		}
	}
	return lines
}

// LegacyShape holds the top-level sequence of a legacy output.
type LegacyShape struct {
	Items []any
}

func (LegacyShape) Kind() ShapeKind { return ShapeLegacy }

// Lines unwraps singleton and per-page wrappers and collects every
// [polygon, [text, score?]] entry. Malformed entries are skipped.
func (s LegacyShape) Lines() []LineRecord {
	var lines []LineRecord
	var walk func(items []any, depth int)
	walk = func(items []any, depth int) {
		for _, item := range items {
			if text, conf, poly, ok := legacyEntry(item); ok {
				lines = appendLine(lines, text, conf, NormalizePolygon(poly))
				continue
			}
			if depth >= maxLegacyDepth {
				continue
			}
			if inner, ok := seq(item); ok {
				walk(inner, depth+1)
			}
		}
	}
	walk(s.Items, 0)
	return lines
}

// legacyEntry reports whether item is [polygon, [text, score?], ...] with a
// string text.
func legacyEntry(item any) (text string, conf any, poly any, ok bool) {
	entry, isSeq := seq(item)
	if !isSeq || len(entry) < 2 {
		return "", nil, nil, false
	}
	if _, isPoly := seq(entry[0]); !isPoly {
		return "", nil, nil, false
	}
	pair, isPair := seq(entry[1])
	if !isPair || len(pair) < 1 {
		return "", nil, nil, false
	}
	text, isText := pair[0].(string)
	if !isText {
		return "", nil, nil, false
	}
	if len(pair) > 1 {
		conf = pair[1]
	}
	return text, conf, entry[0], true
}

// UnrecognizedShape is raw output in no known layout. It yields no lines.
type UnrecognizedShape struct {
	Raw any
}

func (UnrecognizedShape) Kind() ShapeKind { return ShapeUnrecognized }

func (UnrecognizedShape) Lines() []LineRecord { return nil }

// Classify inspects raw output. A non-empty sequence whose first element is
// a string-keyed record is the pages layout; any other sequence is treated
// as the legacy layout.
func Classify(raw any) Shape {
	items, ok := seq(raw)
	if !ok {
		if page, isRecord := record(raw); isRecord {
			return PagesShape{Pages: []map[string]any{page}}
		}
		return UnrecognizedShape{Raw: raw}
	}
	if len(items) > 0 {
		if _, isRecord := record(items[0]); isRecord {
			pages := make([]map[string]any, 0, len(items))
			for _, it := range items {
				if page, ok := record(it); ok {
					pages = append(pages, page)
				}
			}
			return PagesShape{Pages: pages}
		}
	}
	return LegacyShape{Items: items}
}

// ShapeInfo summarizes raw output for debug logging.
type ShapeInfo struct {
	Type      string
	Kind      ShapeKind
	Len       int
	FirstKeys []string
}

// Describe reports the Go type, length and first-page keys of raw output.
func Describe(raw any) ShapeInfo {
	info := ShapeInfo{Type: fmt.Sprintf("%T", raw), Kind: Classify(raw).Kind(), Len: -1}
	if items, ok := seq(raw); ok {
		info.Len = len(items)
		if len(items) > 0 {
			if page, ok := record(items[0]); ok {
				info.FirstKeys = sortedKeys(page)
			}
		}
	} else if page, ok := record(raw); ok {
		info.FirstKeys = sortedKeys(page)
	}
	return info
}
