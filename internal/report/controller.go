package report

import (
	"sync"
	"time"

	"github.com/clearhealth/clearhealth-ai/internal/chat"
	"github.com/clearhealth/clearhealth-ai/internal/gateway"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

// Controller owns everything layered on top of one completed analysis:
// audio playback, nearby-care lookup, and the attached chat session. It
// lives exactly as long as the Complete state that produced it.
type Controller struct {
	result *gateway.AnalysisResult
	audio  *AudioPlayer
	lookup *SpecialistLookup

	mu       sync.Mutex
	chat     *chat.Session
	chatOpen bool
}

// NewController builds the presentation layer for a completed result.
func NewController(gw gateway.Client, result *gateway.AnalysisResult, timeout time.Duration, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger = logger.Component("report")
	return &Controller{
		result: result,
		audio:  newAudioPlayer(gw, result, timeout, logger),
		lookup: newSpecialistLookup(gw, result, timeout, logger),
		chat:   chat.NewSession(gw, result, timeout, logger),
	}
}

// Result returns the analysis this controller presents.
func (c *Controller) Result() *gateway.AnalysisResult {
	return c.result
}

// Audio returns the playback controller.
func (c *Controller) Audio() *AudioPlayer {
	return c.audio
}

// Lookup returns the specialist lookup controller.
func (c *Controller) Lookup() *SpecialistLookup {
	return c.lookup
}

// Urgent reports whether the result warrants the urgent-care framing.
// Presentation-only: high and unknown severities escalate.
func (c *Controller) Urgent() bool {
	return c.result.Severity == gateway.SeverityHigh || c.result.Severity == gateway.SeverityUnknown
}

// OpenChat attaches the chat widget and returns its session. The log
// survives close/open cycles for the lifetime of the result.
func (c *Controller) OpenChat() *chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatOpen = true
	return c.chat
}

// CloseChat detaches the widget without discarding the message log.
func (c *Controller) CloseChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatOpen = false
}

// ChatOpen reports whether the chat widget is attached.
func (c *Controller) ChatOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatOpen
}

// Chat returns the session regardless of open state. Used by transports
// that need the log while the widget is closed.
func (c *Controller) Chat() *chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat
}
