package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullReply = `{
  "dietary_category": "葷食",
  "dietary_reason": "含有明膠",
  "additives_alerts": [
    {"name": "亞硝酸鈉", "risk_level": "High (紅燈)", "description": "保色劑"},
    {"name": "檸檬酸", "risk_level": "Low (綠燈)", "description": "酸味劑", "purpose": "調味"}
  ],
  "additives": ["亞硝酸鈉", {"name": "紅色40號", "risk_level": "Medium (黃燈)"}, "", 7],
  "nutrition_analysis": {
    "detected": true,
    "calories_per_serving": 350,
    "sodium_warning": true,
    "sugar_warning": "false",
    "advice": "一天最多兩份"
  },
  "overall_summary": "偶爾食用",
  "ingredients": ["小麥粉", " 砂糖 ", "明膠"],
  "allergens": ["小麥"],
  "notes": "「蛋臼質」已更正為「蛋白質」"
}`

func TestParseAnalysis_Full(t *testing.T) {
	a, err := ParseAnalysis(fullReply)
	require.NoError(t, err)

	assert.Equal(t, DietNonVegetarian, a.DietaryCategory)
	assert.True(t, a.DietaryCategory.Known())
	assert.Equal(t, []string{"小麥粉", "砂糖", "明膠"}, a.Ingredients)
	assert.Equal(t, []string{"小麥"}, a.Allergens)
	assert.Equal(t, []string{"「蛋臼質」已更正為「蛋白質」"}, a.Notes, "a bare string becomes a one-item list")

	require.Len(t, a.AdditivesAlerts, 3)
	assert.Equal(t, "亞硝酸鈉", a.AdditivesAlerts[0].Name)
	assert.Equal(t, RiskHigh, a.AdditivesAlerts[0].Tier())
	assert.Equal(t, "調味", a.AdditivesAlerts[1].Purpose)
	assert.Equal(t, "紅色40號", a.AdditivesAlerts[2].Name)
	assert.Equal(t, RiskMedium, a.AdditivesAlerts[2].Tier())

	n := a.NutritionAnalysis
	assert.True(t, n.Detected)
	require.NotNil(t, n.CaloriesPerServing.Number)
	assert.Equal(t, 350.0, *n.CaloriesPerServing.Number)
	assert.True(t, n.SodiumWarning)
	assert.False(t, n.SugarWarning)
}

func TestParseAnalysis_Lenient(t *testing.T) {
	a, err := ParseAnalysis(`{"nutrition_analysis": {"calories_per_serving": "350大卡"}}`)
	require.NoError(t, err)
	assert.Equal(t, "350大卡", a.NutritionAnalysis.CaloriesPerServing.Text)
	assert.Equal(t, "350大卡", a.NutritionAnalysis.CaloriesPerServing.String())
	assert.Empty(t, a.Ingredients)
	assert.NotNil(t, a.Ingredients)
	assert.False(t, a.DietaryCategory.Known())

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"calories_per_serving":"350大卡"`)
	assert.Contains(t, string(data), `"ingredients":[]`)
}

func TestParseAnalysis_NotObject(t *testing.T) {
	for name, reply := range map[string]string{
		"prose":      "這個產品含有明膠",
		"fenced":     "```json\n{\"ingredients\": []}\n```",
		"array":      `["小麥粉"]`,
		"null":       "null",
		"string":     `"ok"`,
		"truncated":  `{"ingredients": ["小麥粉"`,
		"two values": `{} {}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAnalysis(reply)
			assert.ErrorIs(t, err, ErrNotObject)
		})
	}
}

func TestParseRiskTier(t *testing.T) {
	tests := map[string]RiskTier{
		"High":          RiskHigh,
		"High (紅燈)":     RiskHigh,
		"紅燈":            RiskHigh,
		"medium":        RiskMedium,
		"Medium (黃燈)":   RiskMedium,
		"Low (綠燈)":      RiskLow,
		"綠":             RiskLow,
		"":              RiskUnrated,
		"somewhat risky": RiskUnrated,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseRiskTier(in), in)
	}
}

func TestCalories_MarshalJSON(t *testing.T) {
	n := 120.5
	for want, c := range map[string]Calories{
		"120.5":  {Number: &n},
		`"未知"`: {Text: "未知"},
		"null":   {},
	} {
		data, err := json.Marshal(c)
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}
