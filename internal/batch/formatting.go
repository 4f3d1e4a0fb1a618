package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

// record is the serialized form of one item.
type record struct {
	File  string `json:"file"`
	*pipeline.Response
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func toRecord(it Item) record {
	r := record{File: it.File, Response: it.Response}
	if it.Err != nil {
		r.Error = it.Err.Error()
		r.Kind = string(pipeline.KindOf(it.Err))
	}
	return r
}

// WriteResults writes items to w in the given format.
func WriteResults(w io.Writer, items []Item, format string) error {
	switch format {
	case FormatJSONL:
		return writeJSONL(w, items)
	case FormatJSON:
		return writeJSON(w, items)
	case FormatText:
		return writeText(w, items)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// writeJSONL writes one JSON object per line.
func writeJSONL(w io.Writer, items []Item) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, it := range items {
		if err := enc.Encode(toRecord(it)); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, items []Item) error {
	out := struct {
		Images []record `json:"images"`
	}{Images: make([]record, 0, len(items))}
	for _, it := range items {
		out.Images = append(out.Images, toRecord(it))
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// writeText writes each file's transcript under a "# file" heading, followed
// by the analysis summary when one is available.
func writeText(w io.Writer, items []Item) error {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# %s\n", it.File)
		if it.Err != nil {
			fmt.Fprintf(&b, "error: %v\n", it.Err)
			continue
		}
		if text := it.Response.OCR.FullText(); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
		if res := it.Response.LLM.Result; res != nil {
			if res.DietaryCategory != "" {
				fmt.Fprintf(&b, "dietary: %s\n", res.DietaryCategory)
			}
			if res.OverallSummary != "" {
				fmt.Fprintf(&b, "summary: %s\n", res.OverallSummary)
			}
		} else if it.Response.LLM.Reason != "" {
			fmt.Fprintf(&b, "analysis: %s\n", it.Response.LLM.Reason)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
