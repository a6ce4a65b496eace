package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-agent-service/internal/domain"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readNext(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	var msg wsMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

func dialSession(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestWebSocketTurnFlow(t *testing.T) {
	srv := newTestServer(t, "")
	server := httptest.NewServer(srv.router)
	defer server.Close()

	session := srv.createSession(t, map[string]any{"maxQuestions": 2, "userId": "alice"})
	host := session.Participants[0].ID

	conn := dialSession(t, server, "sessionId="+session.ID+"&participantId="+host)
	defer conn.Close()

	if first := readNext(t, conn); first.Type != "scoreboard" {
		t.Fatalf("expected initial scoreboard, got %s", first.Type)
	}

	if err := conn.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	var questionID string
	for questionID == "" {
		msg := readNext(t, conn)
		if msg.Type != "turn" {
			continue
		}
		var turn struct {
			Question *domain.PublicQuestion `json:"question"`
		}
		if err := json.Unmarshal(msg.Payload, &turn); err != nil || turn.Question == nil {
			t.Fatalf("expected a question in %s (%v)", msg.Payload, err)
		}
		questionID = turn.Question.ID
	}

	q, err := srv.questions.Get(context.Background(), questionID)
	if err != nil {
		t.Fatalf("lookup question: %v", err)
	}
	answer := map[string]any{"type": "input", "payload": map[string]any{"text": q.CorrectAnswer.Canonical()}}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	turnSeen, leaderSeen := false, false
	for i := 0; i < 4 && !(turnSeen && leaderSeen); i++ {
		msg := readNext(t, conn)
		switch msg.Type {
		case "turn":
			var turn struct {
				Score string `json:"score"`
			}
			if err := json.Unmarshal(msg.Payload, &turn); err != nil {
				t.Fatalf("decode turn: %v", err)
			}
			if turn.Score != "1.0/1" {
				t.Fatalf("expected 1.0/1, got %q", turn.Score)
			}
			turnSeen = true
		case "scoreboard":
			var sb domain.Scoreboard
			if err := json.Unmarshal(msg.Payload, &sb); err != nil {
				t.Fatalf("decode scoreboard: %v", err)
			}
			if len(sb.Entries) == 1 && sb.Entries[0].Score == 1 {
				leaderSeen = true
			}
		}
	}
	if !turnSeen || !leaderSeen {
		t.Fatalf("expected turn and updated scoreboard, got turn=%v scoreboard=%v", turnSeen, leaderSeen)
	}
}

func TestWebSocketReportsServiceErrors(t *testing.T) {
	srv := newTestServer(t, "")
	server := httptest.NewServer(srv.router)
	defer server.Close()

	session := srv.createSession(t, map[string]any{})
	conn := dialSession(t, server, "sessionId="+session.ID)
	defer conn.Close()
	readNext(t, conn)

	if err := conn.WriteJSON(map[string]any{"type": "input", "payload": map[string]any{"text": "Paris"}}); err != nil {
		t.Fatalf("write input: %v", err)
	}
	msg := readNext(t, conn)
	if msg.Type != "error" {
		t.Fatalf("expected error for answer before start, got %s", msg.Type)
	}
	var payload errorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Status != http.StatusConflict {
		t.Fatalf("expected 409 status, got %d", payload.Status)
	}
}

func TestWebSocketClosesWhenSessionDeleted(t *testing.T) {
	srv := newTestServer(t, "")
	server := httptest.NewServer(srv.router)
	defer server.Close()

	session := srv.createSession(t, map[string]any{})
	conn := dialSession(t, server, "sessionId="+session.ID)
	defer conn.Close()
	readNext(t, conn)

	if rec := srv.do(t, http.MethodDelete, "/api/v1/sessions/"+session.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("expected connection to close, got %s", msg.Type)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv := newTestServer(t, "")
	server := httptest.NewServer(srv.router)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?sessionId=sess_missing"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %v", resp)
	}
}

func TestEnqueueStopsOnceWriterIsGone(t *testing.T) {
	send := make(chan outboundMessage, 1)
	writerDone := make(chan struct{})
	if !enqueue(send, writerDone, outboundMessage{Type: "turn"}) {
		t.Fatalf("expected first message to be queued")
	}

	close(writerDone)
	result := make(chan bool, 1)
	go func() { result <- enqueue(send, writerDone, outboundMessage{Type: "turn"}) }()
	select {
	case ok := <-result:
		if ok {
			t.Fatalf("expected enqueue to report a stopped writer")
		}
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked on a full buffer after the writer stopped")
	}
}
