package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

// mockWebSocketConn records written messages.
type mockWebSocketConn struct {
	sent []WSMessage
	err  error
}

func (m *mockWebSocketConn) WriteMessage(_ int, data []byte) error {
	if m.err != nil {
		return m.err
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestServer_ProcessWebSocketImage(t *testing.T) {
	server := newTestServer(t, DefaultConfig(), nil)
	conn := &mockWebSocketConn{}

	server.processWebSocketImage(context.Background(), conn, pngBytes(t, 32, 16), "req-9")

	require.Len(t, conn.sent, len(pipeline.Stages)+1)
	for i, stage := range pipeline.Stages {
		assert.Equal(t, "stage", conn.sent[i].Type)
		assert.Equal(t, stage, conn.sent[i].Stage)
		assert.Equal(t, "req-9", conn.sent[i].RequestID)
	}
	last := conn.sent[len(conn.sent)-1]
	assert.Equal(t, "result", last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, "INGREDIENTS: WHEAT FLOUR\nSUGAR, SALT", last.Result.OCR.FullText())
	assert.Equal(t, 32, last.Result.Meta.Width)
}

func TestServer_ProcessWebSocketImage_Error(t *testing.T) {
	server := newTestServer(t, DefaultConfig(), &mockRecognizer{err: errors.New("down")})
	conn := &mockWebSocketConn{}

	server.processWebSocketImage(context.Background(), conn, pngBytes(t, 8, 8), "req-1")

	require.NotEmpty(t, conn.sent)
	last := conn.sent[len(conn.sent)-1]
	assert.Equal(t, "error", last.Type)
	assert.Equal(t, "recognition_failed", last.Kind)
	assert.Nil(t, last.Result)

	// Admission and preprocessing completed before the failure.
	assert.Equal(t, pipeline.StageAdmitted, conn.sent[0].Stage)
	assert.Equal(t, pipeline.StagePreprocessed, conn.sent[1].Stage)
	assert.Len(t, conn.sent, 3)
}

func TestServer_SendWS_WriteFailure(t *testing.T) {
	server := newTestServer(t, DefaultConfig(), nil)
	conn := &mockWebSocketConn{err: errors.New("closed")}

	assert.NotPanics(t, func() {
		server.sendWS(conn, WSMessage{Type: "error", Error: "x"})
	})
	assert.Empty(t, conn.sent)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/analyze"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_WebSocket_StreamsStages(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, DefaultConfig(), nil).Handler())
	defer srv.Close()
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pngBytes(t, 20, 10)))

	var stages []pipeline.Stage
	var requestID string
	for {
		msg := readWS(t, conn)
		if requestID == "" {
			requestID = msg.RequestID
		}
		assert.Equal(t, requestID, msg.RequestID)
		if msg.Type == "stage" {
			stages = append(stages, msg.Stage)
			continue
		}
		require.Equal(t, "result", msg.Type, msg.Error)
		require.NotNil(t, msg.Result)
		assert.Equal(t, "image/png", msg.Result.Meta.MIME)
		break
	}
	assert.Equal(t, pipeline.Stages, stages)
	assert.NotEmpty(t, requestID)
}

func TestServer_WebSocket_RejectsTextAndBadImages(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, DefaultConfig(), nil).Handler())
	defer srv.Close()
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	msg := readWS(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Empty(t, msg.Kind)

	// The connection stays usable after an error.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, gifBytes(t)))
	msg = readWS(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "unsupported_type", msg.Kind)
}

// readResult skips stage messages and returns the final message.
func readResult(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	for {
		msg := readWS(t, conn)
		if msg.Type != "stage" {
			return msg
		}
	}
}

func TestServer_WebSocket_SlowRequestKeepsConnection(t *testing.T) {
	prev := wsReadWait
	wsReadWait = 300 * time.Millisecond
	t.Cleanup(func() { wsReadWait = prev })

	rec := &mockRecognizer{raw: testutil.PagesOutput(), delay: 600 * time.Millisecond}
	srv := httptest.NewServer(newTestServer(t, DefaultConfig(), rec).Handler())
	defer srv.Close()
	conn := dialWS(t, srv)

	for i := range 2 {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pngBytes(t, 20, 10)))
		msg := readResult(t, conn)
		require.Equal(t, "result", msg.Type, "request %d: %s", i, msg.Error)
	}
}
