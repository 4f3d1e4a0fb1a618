package analysis

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNotObject is returned when a reply is not a single JSON object.
var ErrNotObject = errors.New("reply is not a JSON object")

// DietaryCategory is the vegetarian classification of a product.
type DietaryCategory string

const (
	DietVegan         DietaryCategory = "全素"
	DietLactoOvo      DietaryCategory = "蛋奶素"
	DietFivePungent   DietaryCategory = "五辛素"
	DietNonVegetarian DietaryCategory = "葷食"
	DietUnknown       DietaryCategory = "未知"
)

// Known reports whether c is one of the five defined categories.
func (c DietaryCategory) Known() bool {
	switch c {
	case DietVegan, DietLactoOvo, DietFivePungent, DietNonVegetarian, DietUnknown:
		return true
	}
	return false
}

// RiskTier is the traffic-light rating of an additive.
type RiskTier string

const (
	RiskHigh    RiskTier = "High"
	RiskMedium  RiskTier = "Medium"
	RiskLow     RiskTier = "Low"
	RiskUnrated RiskTier = ""
)

// ParseRiskTier accepts "High", "High (紅燈)", "紅燈" and similar spellings.
func ParseRiskTier(s string) RiskTier {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "high"), strings.Contains(s, "紅"):
		return RiskHigh
	case strings.Contains(l, "medium"), strings.Contains(s, "黃"):
		return RiskMedium
	case strings.Contains(l, "low"), strings.Contains(s, "綠"):
		return RiskLow
	}
	return RiskUnrated
}

// AdditiveAlert is one flagged additive. RiskLevel keeps the backend's
// spelling; use Tier for comparisons.
type AdditiveAlert struct {
	Name        string `json:"name"`
	RiskLevel   string `json:"risk_level"`
	Description string `json:"description"`
	Purpose     string `json:"purpose,omitempty"`
}

// Tier parses RiskLevel.
func (a AdditiveAlert) Tier() RiskTier { return ParseRiskTier(a.RiskLevel) }

// Calories is calories_per_serving, which backends emit as either a number
// or free text such as "350大卡".
type Calories struct {
	Number *float64
	Text   string
}

// MarshalJSON renders a number, a string, or null.
func (c Calories) MarshalJSON() ([]byte, error) {
	switch {
	case c.Number != nil:
		return json.Marshal(*c.Number)
	case c.Text != "":
		return json.Marshal(c.Text)
	}
	return []byte("null"), nil
}

// String renders the value for display.
func (c Calories) String() string {
	if c.Number != nil {
		return strconv.FormatFloat(*c.Number, 'f', -1, 64)
	}
	return c.Text
}

// NutritionAnalysis summarizes the nutrition facts panel.
type NutritionAnalysis struct {
	Detected           bool     `json:"detected"`
	CaloriesPerServing Calories `json:"calories_per_serving"`
	SodiumWarning      bool     `json:"sodium_warning"`
	SugarWarning       bool     `json:"sugar_warning"`
	Advice             string   `json:"advice"`
}

// Analysis is the structured interpretation of a label transcript. The legacy
// "additives" field is folded into AdditivesAlerts.
type Analysis struct {
	Ingredients       []string          `json:"ingredients"`
	Allergens         []string          `json:"allergens"`
	AdditivesAlerts   []AdditiveAlert   `json:"additives_alerts"`
	DietaryCategory   DietaryCategory   `json:"dietary_category"`
	DietaryReason     string            `json:"dietary_reason"`
	NutritionAnalysis NutritionAnalysis `json:"nutrition_analysis"`
	OverallSummary    string            `json:"overall_summary"`
	Notes             []string          `json:"notes"`
}

// ParseAnalysis reads a backend reply. Any JSON object is accepted: fields
// are extracted leniently and missing or mistyped fields take zero values.
func ParseAnalysis(text string) (*Analysis, error) {
	if !gjson.Valid(text) {
		return nil, ErrNotObject
	}
	root := gjson.Parse(text)
	if !root.IsObject() {
		return nil, ErrNotObject
	}

	a := &Analysis{
		Ingredients:     stringList(root.Get("ingredients")),
		Allergens:       stringList(root.Get("allergens")),
		DietaryCategory: DietaryCategory(strings.TrimSpace(root.Get("dietary_category").String())),
		DietaryReason:   root.Get("dietary_reason").String(),
		OverallSummary:  root.Get("overall_summary").String(),
		Notes:           stringList(root.Get("notes")),
	}
	a.AdditivesAlerts = mergeAdditives(root.Get("additives_alerts"), root.Get("additives"))

	n := root.Get("nutrition_analysis")
	a.NutritionAnalysis = NutritionAnalysis{
		Detected:      n.Get("detected").Bool(),
		SodiumWarning: n.Get("sodium_warning").Bool(),
		SugarWarning:  n.Get("sugar_warning").Bool(),
		Advice:        n.Get("advice").String(),
	}
	switch cal := n.Get("calories_per_serving"); cal.Type {
	case gjson.Number:
		f := cal.Float()
		a.NutritionAnalysis.CaloriesPerServing.Number = &f
	case gjson.String:
		a.NutritionAnalysis.CaloriesPerServing.Text = cal.Str
	}
	return a, nil
}

// stringList reads an array of scalars, or a single string, as a list.
func stringList(r gjson.Result) []string {
	out := []string{}
	if !r.Exists() || r.Type == gjson.Null {
		return out
	}
	if !r.IsArray() {
		if s := strings.TrimSpace(r.String()); s != "" && !r.IsObject() {
			out = append(out, s)
		}
		return out
	}
	for _, v := range r.Array() {
		if v.IsObject() || v.IsArray() || v.Type == gjson.Null {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// mergeAdditives combines additives_alerts with the legacy additives list.
// Legacy entries may be bare names or alert objects. Later entries with a
// name already seen only fill in missing details.
func mergeAdditives(lists ...gjson.Result) []AdditiveAlert {
	out := []AdditiveAlert{}
	index := map[string]int{}
	for _, list := range lists {
		for _, v := range list.Array() {
			var alert AdditiveAlert
			switch {
			case v.IsObject():
				alert = AdditiveAlert{
					Name:        strings.TrimSpace(v.Get("name").String()),
					RiskLevel:   v.Get("risk_level").String(),
					Description: v.Get("description").String(),
					Purpose:     v.Get("purpose").String(),
				}
			case v.Type == gjson.String:
				alert = AdditiveAlert{Name: strings.TrimSpace(v.Str)}
			default:
				continue
			}
			if alert.Name == "" {
				continue
			}
			if i, ok := index[alert.Name]; ok {
				fillAlert(&out[i], alert)
				continue
			}
			index[alert.Name] = len(out)
			out = append(out, alert)
		}
	}
	return out
}

func fillAlert(dst *AdditiveAlert, src AdditiveAlert) {
	if dst.RiskLevel == "" {
		dst.RiskLevel = src.RiskLevel
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Purpose == "" {
		dst.Purpose = src.Purpose
	}
}
