package webchat

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/clearhealth/clearhealth-ai/internal/chat"
	"github.com/clearhealth/clearhealth-ai/internal/session"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

// Handler streams the follow-up chat over a WebSocket. The widget
// connects once per completed analysis; the message log itself lives in
// the session's chat controller, so an HTTP client and a socket client
// see the same conversation.
type Handler struct {
	manager *session.Manager
	logger  *logging.Logger

	mu    sync.RWMutex
	conns map[string]*wsConn // session ID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "typing", "history", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history frames.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a web chat handler backed by the session manager.
func NewHandler(manager *session.Manager, logger *logging.Logger) *Handler {
	if manager == nil {
		panic("webchat: session manager is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		manager: manager,
		logger:  logger,
		conns:   make(map[string]*wsConn),
	}
}

// HandleWebSocket upgrades to WebSocket and handles real-time chat.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "missing session parameter"})
		return
	}

	machine, ok := h.manager.Get(sessionID)
	if !ok {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "unknown session"})
		return
	}
	ctrl, err := machine.Report()
	if err != nil {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "analysis is not complete"})
		return
	}
	chatSession := ctrl.OpenChat()

	// Send the accumulated log, greeting included.
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: historyFrames(chatSession.Messages())})

	// Register connection; a newer socket for the same session wins.
	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	h.mu.Lock()
	h.conns[sessionID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.conns[sessionID] == wsc {
			delete(h.conns, sessionID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}

		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})

		reply, err := chatSession.Send(r.Context(), msg.Text)
		if err != nil {
			if errors.Is(err, chat.ErrReplyPending) {
				_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "a reply is already pending"})
				continue
			}
			h.logger.Error("webchat: send failed", "session_id", sessionID, "error", err)
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type:      "message",
			Role:      reply.Role,
			Text:      reply.Text,
			Timestamp: reply.CreatedAt.Format(time.RFC3339),
		})
	}
}

func historyFrames(messages []chat.Message) []HistoryMessage {
	frames := make([]HistoryMessage, 0, len(messages))
	for _, m := range messages {
		frames = append(frames, HistoryMessage{
			Role:      m.Role,
			Text:      m.Text,
			Timestamp: m.CreatedAt.Format(time.RFC3339),
		})
	}
	return frames
}
