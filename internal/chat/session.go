package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearhealth/clearhealth-ai/internal/compliance"
	"github.com/clearhealth/clearhealth-ai/internal/gateway"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

// ErrReplyPending indicates a send was attempted while a reply is still
// outstanding. At most one send is in flight per session.
var ErrReplyPending = errors.New("chat: a reply is already pending")

const (
	contextGreeting = "Hello! I've reviewed your results. I can explain the findings or answer specific questions. What would you like to know?"
	generalGreeting = "Hello! I am your AI Medical Assistant. I can answer general health questions or explain medical concepts. How can I help you today?"
	apologyText     = "I'm sorry, I couldn't process that."
)

// Message is one turn in the conversation log. Messages are never
// mutated or reordered after insertion.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Session maintains an append-only conversation log seeded from the
// analysis context. Each user turn is serialized through the gateway
// before the reply is appended; gateway failures are absorbed as a fixed
// apology and never abort the session.
type Session struct {
	mu        sync.Mutex
	converser gateway.Converser
	context   *gateway.AnalysisResult
	messages  []Message
	pending   bool
	timeout   time.Duration
	logger    *logging.Logger
}

// NewSession creates a chat session seeded with one assistant greeting.
// analysisContext may be nil for general health Q&A.
func NewSession(converser gateway.Converser, analysisContext *gateway.AnalysisResult, timeout time.Duration, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Session{
		converser: converser,
		context:   analysisContext,
		timeout:   timeout,
		logger:    logger.Component("chat"),
	}
	s.seed()
	return s
}

func (s *Session) seed() {
	greeting := generalGreeting
	if s.context != nil {
		greeting = contextGreeting
	}
	s.messages = []Message{{
		ID:        uuid.NewString(),
		Role:      gateway.RoleAssistant,
		Text:      compliance.Append(greeting, compliance.DisclaimerShort),
		CreatedAt: time.Now().UTC(),
	}}
}

// Reseed discards the log and starts over against a new analysis
// context. The old log is dropped, not merged.
func (s *Session) Reseed(analysisContext *gateway.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = analysisContext
	s.pending = false
	s.seed()
}

// Pending reports whether a reply is currently outstanding.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Messages returns a copy of the log.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send appends the user message immediately, serializes the prior log
// plus the new message through the gateway, and appends the assistant
// reply. On gateway failure or an empty reply the fixed apology is
// appended instead; the error is logged and swallowed. The returned
// message is the assistant turn.
func (s *Session) Send(ctx context.Context, text string) (Message, error) {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return Message{}, ErrReplyPending
	}
	s.pending = true

	userMsg := Message{
		ID:        uuid.NewString(),
		Role:      gateway.RoleUser,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	s.messages = append(s.messages, userMsg)

	history := make([]gateway.ChatTurn, 0, len(s.messages)-1)
	for _, m := range s.messages[:len(s.messages)-1] {
		history = append(history, gateway.ChatTurn{Role: m.Role, Text: m.Text})
	}
	analysisContext := s.context
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	reply, err := s.converser.Converse(callCtx, history, text, analysisContext)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false

	if err != nil {
		s.logger.Warn("chat send failed, substituting apology", "error", err)
		reply = apologyText
	} else if reply == "" {
		reply = apologyText
	}

	botMsg := Message{
		ID:        uuid.NewString(),
		Role:      gateway.RoleAssistant,
		Text:      reply,
		CreatedAt: time.Now().UTC(),
	}
	s.messages = append(s.messages, botMsg)
	return botMsg, nil
}
