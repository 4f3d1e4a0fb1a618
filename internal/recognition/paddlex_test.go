package recognition

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/ocrresult"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

func paddleXServer(t *testing.T, status int, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPaddleXEngine_Predict(t *testing.T) {
	var seen map[string]any
	srv := paddleXServer(t, http.StatusOK, testutil.PaddleXReply, &seen)

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	eng, err := NewPaddleXEngine(cfg)
	require.NoError(t, err)

	raw, err := eng.Predict(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, false, seen["useDocOrientationClassify"])
	assert.Equal(t, false, seen["useDocUnwarping"])
	assert.Equal(t, false, seen["useTextlineOrientation"])
	assert.Equal(t, "ch", seen["lang"])
	assert.NotEmpty(t, seen["file"])

	pages, ok := raw.([]any)
	require.True(t, ok)
	require.Len(t, pages, 1)
	page := pages[0].(map[string]any)
	scores := page["rec_scores"].([]any)
	assert.Equal(t, json.Number("0.991"), scores[0])

	res := ocrresult.Normalize(raw)
	assert.Equal(t, "配料：小麥粉、砂糖\n明膠", res.FullText())
}

func TestPaddleXEngine_LegacyResultPath(t *testing.T) {
	srv := paddleXServer(t, http.StatusOK,
		`{"result": [[[[1,1],[5,1],[5,3],[1,3]], ["Salt", 0.9]]]}`, nil)

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.ResultPath = "result"
	eng, err := NewPaddleXEngine(cfg)
	require.NoError(t, err)

	raw, err := eng.Predict(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, ocrresult.ShapeLegacy, ocrresult.Classify(raw).Kind())
	assert.Equal(t, "Salt", ocrresult.Normalize(raw).FullText())
}

func TestPaddleXEngine_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
		want   string
	}{
		{"http error", http.StatusInternalServerError, `{"errorCode":500,"errorMsg":"boom"}`, "boom"},
		{"error code", http.StatusOK, `{"errorCode":422,"errorMsg":"bad image"}`, "bad image"},
		{"invalid json", http.StatusOK, `not json`, "not valid JSON"},
		{"missing path", http.StatusOK, `{"errorCode":0,"result":{}}`, "no value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := paddleXServer(t, tt.status, tt.reply, nil)
			cfg := DefaultConfig()
			cfg.Endpoint = srv.URL
			eng, err := NewPaddleXEngine(cfg)
			require.NoError(t, err)

			_, err = eng.Predict(context.Background(), testImage())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPaddleXEngine_EmptyPages(t *testing.T) {
	srv := paddleXServer(t, http.StatusOK, `{"errorCode":0,"result":{"ocrResults":[{"prunedResult":{"rec_texts":[],"rec_scores":[]}}]}}`, nil)
	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	eng, err := NewPaddleXEngine(cfg)
	require.NoError(t, err)

	raw, err := eng.Predict(context.Background(), testImage())
	require.NoError(t, err)
	res := ocrresult.Normalize(raw)
	assert.Equal(t, "", res.FullText())
	assert.Zero(t, res.Len())
}
