package testutil

import (
	"encoding/json"
	"strings"
)

// PagesOutput returns a pages-layout raw output with engine-native typed
// arrays: float32 scores and int32 polygons, as an in-process engine emits.
func PagesOutput() []any {
	return []any{
		map[string]any{
			"input_path": nil,
			"rec_texts":  []string{"INGREDIENTS: WHEAT FLOUR", "  ", "SUGAR, SALT"},
			"rec_scores": []float32{0.98, 0.10, 0.5},
			"rec_polys": [][][2]int32{
				{{10, 10}, {200, 10}, {200, 30}, {10, 30}},
				{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
				{{10, 40}, {150, 40}, {150, 60}, {10, 60}},
			},
			"rec_boxes": [][4]int32{
				{10, 10, 200, 30},
				{0, 0, 1, 1},
				{10, 40, 150, 60},
			},
		},
	}
}

// PagesOutputBoxesOnly returns a pages-layout output carrying rec_boxes but no
// rec_polys, and fewer scores than texts.
func PagesOutputBoxesOnly() []any {
	return []any{
		map[string]any{
			"rec_texts":  []any{"Net Wt 100g", "Made in Taiwan"},
			"rec_scores": []any{0.9},
			"rec_boxes":  []any{[]any{1.0, 2.0, 3.0, 4.0}},
		},
	}
}

// LegacyOutput returns a legacy nested output for one page, wrapped in the
// per-image singleton list engines emit.
func LegacyOutput() []any {
	return []any{LegacyEntries()}
}

// LegacyEntries returns unwrapped legacy entries, including malformed ones
// that must be skipped.
func LegacyEntries() []any {
	return []any{
		[]any{
			[]any{[]any{1.0, 1.0}, []any{9.0, 1.0}, []any{9.0, 5.0}, []any{1.0, 5.0}},
			[]any{"Contains: soy", 0.93},
		},
		[]any{
			[]any{[]any{1.0, 6.0}, []any{9.0, 6.0}, []any{9.0, 9.0}, []any{1.0, 9.0}},
			[]any{"", 0.5},
		},
		[]any{"not an entry"},
		"stray",
		[]any{
			[]any{[]any{1.0, 10.0}, []any{9.0, 10.0}, []any{9.0, 14.0}, []any{1.0, 14.0}},
			[]any{"Best before 2026"},
		},
	}
}

// PaddleXReply is a serving-endpoint reply body as returned by a PaddleX OCR
// pipeline. Numbers stay textual so decoders can choose json.Number.
const PaddleXReply = `{
  "logId": "b2f1",
  "errorCode": 0,
  "errorMsg": "Success",
  "result": {
    "ocrResults": [
      {
        "prunedResult": {
          "rec_texts": ["配料：小麥粉、砂糖", "明膠"],
          "rec_scores": [0.991, 0.87],
          "rec_polys": [[[3, 4], [120, 4], [120, 22], [3, 22]], [[3, 30], [60, 30], [60, 48], [3, 48]]],
          "rec_boxes": [[3, 4, 120, 22], [3, 30, 60, 48]]
        },
        "ocrImage": null
      }
    ],
    "dataInfo": {"width": 128, "height": 64, "type": "image"}
  }
}`

// DecodeJSON decodes s with json.Number preserved, the way remote engine
// replies are decoded.
func DecodeJSON(s string) any {
	var v any
	d := json.NewDecoder(strings.NewReader(s))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		panic(err)
	}
	return v
}
