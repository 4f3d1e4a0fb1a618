package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

const (
	wsPingEvery = 30 * time.Second
	wsWriteWait = 10 * time.Second
)

// wsReadWait bounds the idle time between client messages.
var wsReadWait = 60 * time.Second

// WebSocket upgrader with reasonable defaults. Origin checks are left to the
// CORS configuration.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSMessage is a server-to-client message on /ws/analyze.
type WSMessage struct {
	Type      string             `json:"type"` // stage, result or error
	Stage     pipeline.Stage     `json:"stage,omitempty"`
	Result    *pipeline.Response `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Kind      string             `json:"kind,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
}

// wsConnWriter is the part of a connection used to send messages.
type wsConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// analyzeWebSocketHandler accepts binary image messages and streams stage
// transitions followed by a result or error message for each.
func (s *Server) analyzeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	// Twice the ceiling so oversized images still get a labeled error
	// instead of a dropped connection.
	conn.SetReadLimit(2*s.cfg.MaxUploadBytes + 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))

		requestID := uuid.NewString()
		if messageType != websocket.BinaryMessage {
			s.sendWS(conn, WSMessage{Type: "error", Error: "send the image as a binary message", RequestID: requestID})
			continue
		}
		s.processWebSocketImage(r.Context(), conn, data, requestID)
		// Pongs are only consumed by ReadMessage, so a long request must not
		// count against the idle deadline.
		_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
	}
}

func (s *Server) processWebSocketImage(ctx context.Context, conn wsConnWriter, data []byte, requestID string) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	uploadSizeBytes.Observe(float64(len(data)))

	resp, err := s.processor.Process(ctx, pipeline.Request{
		Data:      data,
		RequestID: requestID,
		Observer: func(stage pipeline.Stage, elapsed time.Duration) {
			observeStage(stage, elapsed)
			s.sendWS(conn, WSMessage{Type: "stage", Stage: stage, RequestID: requestID})
		},
	})
	recordResult("websocket", resp, err)
	if err != nil {
		_, msg := errorStatus(err)
		s.sendWS(conn, WSMessage{Type: "error", Error: msg, Kind: string(pipeline.KindOf(err)), RequestID: requestID})
		return
	}
	s.sendWS(conn, WSMessage{Type: "result", Result: resp, RequestID: requestID})
}

// sendWS sends a message over WebSocket.
func (s *Server) sendWS(conn wsConnWriter, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
