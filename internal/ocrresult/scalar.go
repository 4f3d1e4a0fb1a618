package ocrresult

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Float coerces an engine-native numeric scalar to float64. It accepts every
// Go integer and float kind (including named types), json.Number, and a
// single-element sequence wrapping one of those. Strings and booleans are not
// numbers. NaN and infinities are rejected.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.Slice, reflect.Array:
		if rv.Len() == 1 {
			return Float(rv.Index(0).Interface())
		}
	case reflect.Pointer, reflect.Interface:
		if !rv.IsNil() {
			return Float(rv.Elem().Interface())
		}
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// seq returns v as a []any when it is any slice or array other than a string.
func seq(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// record returns v as a string-keyed map when it is one.
func record(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// listField reads a per-page field as a sequence. Missing fields are empty
// and a bare scalar is treated as a one-element sequence.
func listField(page map[string]any, key string) []any {
	v, ok := page[key]
	if !ok || v == nil {
		return nil
	}
	if s, ok := seq(v); ok {
		return s
	}
	return []any{v}
}

// textOf renders a recognized text value. Non-string scalars are formatted;
// nil yields "".
func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case []byte:
		return string(x)
	}
	if f, ok := Float(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// confidence converts a raw score to a clamped [0,1] value or nil.
func confidence(v any) *float64 {
	f, ok := Float(v)
	if !ok {
		return nil
	}
	f = math.Max(0, math.Min(1, f))
	return &f
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
