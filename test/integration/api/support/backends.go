package support

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

// SampleAnalysis is a well-formed analysis reply.
const SampleAnalysis = `{
  "ingredients": ["小麥粉", "砂糖", "明膠"],
  "allergens": ["麩質"],
  "additives": [{"name": "明膠", "risk_level": "Low (綠燈)", "description": "動物性膠質"}],
  "dietary_category": "葷食",
  "dietary_reason": "含明膠",
  "nutrition_analysis": {"detected": false, "calories_per_serving": "350大卡"},
  "overall_summary": "含動物性成分",
  "notes": []
}`

// FakeEngine is a PaddleX serving endpoint stand-in.
type FakeEngine struct {
	Server *httptest.Server
	Reply  atomic.Value // string
	Status atomic.Int64
	Calls  atomic.Int64
}

// NewFakeEngine starts an engine replying with the sample label.
func NewFakeEngine() *FakeEngine {
	e := &FakeEngine{}
	e.Reply.Store(testutil.PaddleXReply)
	e.Status.Store(http.StatusOK)
	e.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.Calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(e.Status.Load()))
		_, _ = io.WriteString(w, e.Reply.Load().(string))
	}))
	return e
}

// FakeChat is an OpenAI-compatible chat completions stand-in.
type FakeChat struct {
	Server  *httptest.Server
	Content atomic.Value // string
	Status  atomic.Int64
	Calls   atomic.Int64
}

// NewFakeChat starts a backend replying with SampleAnalysis.
func NewFakeChat() *FakeChat {
	c := &FakeChat{}
	c.Content.Store(SampleAnalysis)
	c.Status.Store(http.StatusOK)
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		status := int(c.Status.Load())
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"error":{"message":"backend unavailable","type":"server_error"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": c.Content.Load().(string)},
			}},
		})
	}))
	return c
}

// closeAll stops the given servers.
func closeAll(servers ...*httptest.Server) {
	for _, s := range servers {
		if s != nil {
			s.Close()
		}
	}
}
