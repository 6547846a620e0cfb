package webchat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/clearhealth/clearhealth-ai/internal/gateway"
	"github.com/clearhealth/clearhealth-ai/internal/session"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

type stubGateway struct {
	reply string
}

func (s *stubGateway) Analyze(context.Context, gateway.StagedFile, gateway.AnalysisMode) (*gateway.AnalysisResult, error) {
	return &gateway.AnalysisResult{
		Title:             "Metabolic Panel",
		Summary:           "All clear",
		Severity:          gateway.SeverityLow,
		Findings:          []gateway.Finding{},
		Recommendations:   []string{},
		MedicalDisclaimer: "Not medical advice.",
	}, nil
}

func (s *stubGateway) SynthesizeSpeech(context.Context, string) ([]byte, error) {
	return nil, nil
}

func (s *stubGateway) Converse(context.Context, []gateway.ChatTurn, string, *gateway.AnalysisResult) (string, error) {
	return s.reply, nil
}

func (s *stubGateway) FindSpecialists(context.Context, string, float64, float64) (*gateway.SpecialistLookup, error) {
	return nil, nil
}

func newCompletedSession(t *testing.T) (*session.Manager, string) {
	t.Helper()
	manager := session.NewManager(session.ManagerConfig{
		MaxSessions: 10,
		Settle:      time.Millisecond,
		Timeout:     time.Second,
	}, &stubGateway{reply: "The glucose value is mildly elevated."}, logging.New("error"), nil)

	machine, err := manager.Create()
	require.NoError(t, err)
	require.NoError(t, machine.SelectMode(gateway.ModeDocumentAnalysis))
	require.NoError(t, machine.LoadSample())
	require.Eventually(t, func() bool {
		return machine.Snapshot().Phase == session.PhaseComplete
	}, 2*time.Second, time.Millisecond)
	return manager, machine.ID()
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws" + query
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var msg OutboundMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestWebSocketChatRoundTrip(t *testing.T) {
	manager, sessionID := newCompletedSession(t)
	h := NewHandler(manager, logging.New("error"))
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, conn.Request())
	}))
	defer srv.Close()

	conn := dial(t, srv, "?session="+sessionID)

	history := receive(t, conn)
	require.Equal(t, "history", history.Type)
	require.Len(t, history.Messages, 1, "log starts with the greeting")
	assert.Equal(t, "assistant", history.Messages[0].Role)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "What about my glucose?"}))

	typing := receive(t, conn)
	assert.Equal(t, "typing", typing.Type)

	reply := receive(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "assistant", reply.Role)
	assert.Contains(t, reply.Text, "mildly elevated")
}

func TestWebSocketPing(t *testing.T) {
	manager, sessionID := newCompletedSession(t)
	h := NewHandler(manager, logging.New("error"))
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, conn.Request())
	}))
	defer srv.Close()

	conn := dial(t, srv, "?session="+sessionID)
	receive(t, conn) // history

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", receive(t, conn).Type)
}

func TestWebSocketRejectsUnknownSession(t *testing.T) {
	manager, _ := newCompletedSession(t)
	h := NewHandler(manager, logging.New("error"))
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, conn.Request())
	}))
	defer srv.Close()

	conn := dial(t, srv, "?session=nope")
	errMsg := receive(t, conn)
	assert.Equal(t, "error", errMsg.Type)
	assert.Equal(t, "unknown session", errMsg.Text)
}

func TestWebSocketRejectsIncompleteSession(t *testing.T) {
	manager := session.NewManager(session.ManagerConfig{
		MaxSessions: 10,
		Settle:      time.Millisecond,
		Timeout:     time.Second,
	}, &stubGateway{}, logging.New("error"), nil)
	machine, err := manager.Create()
	require.NoError(t, err)

	h := NewHandler(manager, logging.New("error"))
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, conn.Request())
	}))
	defer srv.Close()

	conn := dial(t, srv, "?session="+machine.ID())
	errMsg := receive(t, conn)
	assert.Equal(t, "error", errMsg.Type)
	assert.Equal(t, "analysis is not complete", errMsg.Text)
}
