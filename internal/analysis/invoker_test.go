package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	reply      string
	err        error
	calls      atomic.Int32
	lastSystem string
	lastUser   string
}

func (s *stubCompleter) Complete(_ context.Context, system, user string) (string, error) {
	s.calls.Add(1)
	s.lastSystem, s.lastUser = system, user
	return s.reply, s.err
}

func (s *stubCompleter) Name() string { return "stub" }

func newStubInvoker(t *testing.T, stub *stubCompleter) *Invoker {
	t.Helper()
	inv, err := NewInvoker(context.Background(), DefaultConfig(), WithCompleter(stub))
	require.NoError(t, err)
	return inv
}

func TestInvoker_MissingCredential(t *testing.T) {
	inv, err := NewInvoker(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, inv.Configured())

	out := inv.Analyze(context.Background(), "小麥粉")
	assert.Nil(t, out.Result)
	assert.Equal(t, ReasonMissingCredential, out.Reason)
	assert.Empty(t, out.Raw)
}

func TestInvoker_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		err        error
		wantOK     bool
		wantRaw    string
		wantReason Reason
	}{
		{"valid object", "  {\"ingredients\":[\"糖\"]}\n", nil, true, `{"ingredients":["糖"]}`, ReasonNone},
		{"prose", "Sorry, I cannot help.", nil, false, "Sorry, I cannot help.", ReasonInvalidOutput},
		{"empty", "   \n", nil, false, "", ReasonEmptyResponse},
		{"transport failure", "", errors.New("connection reset"), false, "", ReasonRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompleter{reply: tt.reply, err: tt.err}
			out := newStubInvoker(t, stub).Analyze(context.Background(), "糖")

			assert.Equal(t, tt.wantOK, out.OK())
			assert.Equal(t, tt.wantRaw, out.Raw)
			assert.Equal(t, tt.wantReason, out.Reason)
			assert.NotEqual(t, out.OK(), out.Reason != ReasonNone, "exactly one of result and reason")
			assert.Equal(t, int32(1), stub.calls.Load(), "no retries")
		})
	}
}

func TestInvoker_SendsInstructionAndNFCTranscript(t *testing.T) {
	stub := &stubCompleter{reply: "{}"}
	inv := newStubInvoker(t, stub)

	decomposed := "cafe\u0301 糖"
	inv.Analyze(context.Background(), decomposed)

	assert.Equal(t, SystemInstruction, stub.lastSystem)
	assert.Equal(t, "caf\u00e9 糖", stub.lastUser)
}

func TestOutcome_JSON(t *testing.T) {
	data, err := json.Marshal(Outcome{Reason: ReasonMissingCredential})
	require.NoError(t, err)
	assert.JSONEq(t, `{"json":null,"raw":"","reason":"missing_credential"}`, string(data))

	a, err := ParseAnalysis(`{"dietary_category":"全素"}`)
	require.NoError(t, err)
	data, err = json.Marshal(Outcome{Result: a, Raw: `{"dietary_category":"全素"}`})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "reason")
	assert.Contains(t, string(data), `"dietary_category":"全素"`)

	var back Outcome
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Result)
	assert.Equal(t, DietVegan, back.Result.DietaryCategory)
}

func openAIServer(t *testing.T, status int, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"error":{"message":"upstream unavailable","type":"server_error"}}`)
			return
		}
		msg, _ := json.Marshal(content)
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":`+string(msg)+`}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInvoker_OpenAICompatibleEndpoint(t *testing.T) {
	var seen map[string]any
	srv := openAIServer(t, http.StatusOK, `{"dietary_category":"五辛素","ingredients":["蒜粉"]}`, &seen)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL + "/v1/"
	inv, err := NewInvoker(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = inv.Close() }()

	out := inv.Analyze(context.Background(), "蒜粉")
	require.True(t, out.OK(), "reason: %s", out.Reason)
	assert.Equal(t, DietFivePungent, out.Result.DietaryCategory)

	assert.Equal(t, "gpt-4o-mini", seen["model"])
	assert.InDelta(t, 0.2, seen["temperature"], 1e-9)
	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "蒜粉", msgs[1].(map[string]any)["content"])
}

func TestInvoker_OpenAIFailureIsLabeled(t *testing.T) {
	srv := openAIServer(t, http.StatusInternalServerError, "", nil)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL + "/v1/"
	cfg.Timeout = 5 * time.Second
	inv, err := NewInvoker(context.Background(), cfg)
	require.NoError(t, err)

	out := inv.Analyze(context.Background(), "糖")
	assert.Nil(t, out.Result)
	assert.Equal(t, ReasonRequestFailed, out.Reason)
}

func TestInvoker_AnthropicEndpoint(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &seen)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",`+
			`"content":[{"type":"text","text":"{\"dietary_category\":\"蛋奶素\"}"}],`+
			`"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":5}}`)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Provider = ProviderAnthropic
	cfg.Model = ""
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	inv, err := NewInvoker(context.Background(), cfg)
	require.NoError(t, err)

	out := inv.Analyze(context.Background(), "牛奶、蛋")
	require.True(t, out.OK(), "reason: %s", out.Reason)
	assert.Equal(t, DietLactoOvo, out.Result.DietaryCategory)
	assert.Equal(t, "claude-3-5-haiku-latest", seen["model"])
	assert.NotEmpty(t, seen["system"])
}

func TestNewCompleter_Validation(t *testing.T) {
	_, err := NewCompleter(context.Background(), Config{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = NewCompleter(context.Background(), Config{Provider: "ollama", APIKey: "k"})
	assert.ErrorContains(t, err, "unsupported provider")

	assert.Equal(t, "gpt-4o-mini", DefaultModel(""))
	assert.Equal(t, "gemini-1.5-flash", DefaultModel(ProviderGemini))
}
