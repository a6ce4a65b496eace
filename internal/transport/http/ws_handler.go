package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-agent-service/internal/app"
)

// WSHandler serves the realtime channel of one session: turns in, turn
// results and scoreboards out.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(service *app.QuizService, checkOrigin func(r *http.Request) bool, logger *zap.Logger) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type inputPayload struct {
	Text string `json:"text"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

// ServeWS upgrades /ws?sessionId=&participantId= and runs the session loop.
func (h *WSHandler) ServeWS(c *gin.Context) {
	sessionID := c.Query("sessionId")
	participantID := c.Query("participantId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing sessionId"})
		return
	}
	ctx := c.Request.Context()

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", zap.String("session_id", sessionID), zap.Error(err))
				// unblocks ReadJSON in the loop below
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case sb, ok := <-updates:
				if !ok {
					// session deleted
					_ = conn.Close()
					return
				}
				select {
				case send <- outboundMessage{Type: "scoreboard", Payload: sb}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			case <-writerDone:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !enqueue(send, writerDone, h.handleInbound(ctx, sessionID, participantID, inbound)) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleInbound(ctx context.Context, sessionID, participantID string, inbound inboundMessage) outboundMessage {
	var (
		res any
		err error
	)
	switch inbound.Type {
	case "input":
		var payload inputPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid input payload"}}
		}
		res, err = h.service.SubmitInput(ctx, sessionID, payload.Text, participantID)
	case "start":
		res, err = h.service.Start(ctx, sessionID)
	default:
		return outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
	if err != nil {
		return wsError(err)
	}
	return outboundMessage{Type: "turn", Payload: res}
}

// enqueue hands msg to the writer. It reports false once the writer has
// stopped, so callers never block on a dead connection.
func enqueue(send chan<- outboundMessage, writerDone <-chan struct{}, msg outboundMessage) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func wsError(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error(), Status: statusFor(err)}}
}
