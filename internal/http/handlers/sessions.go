package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clearhealth/clearhealth-ai/internal/chat"
	"github.com/clearhealth/clearhealth-ai/internal/gateway"
	"github.com/clearhealth/clearhealth-ai/internal/observability/metrics"
	"github.com/clearhealth/clearhealth-ai/internal/report"
	"github.com/clearhealth/clearhealth-ai/internal/session"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

// maxUploadBytes caps a staged document after base64 decoding.
const maxUploadBytes = 20 << 20

// SessionHandler exposes the session lifecycle over HTTP. Each session
// is a server-side state machine; handlers translate its errors into
// status codes and never hold state of their own.
type SessionHandler struct {
	manager *session.Manager
	logger  *logging.Logger
	metrics *metrics.AnalysisMetrics
}

func NewSessionHandler(manager *session.Manager, logger *logging.Logger, m *metrics.AnalysisMetrics) *SessionHandler {
	if manager == nil {
		panic("handlers: session manager is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{manager: manager, logger: logger, metrics: m}
}

// Create starts a new idle session.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	machine, err := h.manager.Create()
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, machine.Snapshot())
}

// Get returns the phase snapshot.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, machine.Snapshot())
}

type selectModeRequest struct {
	Mode string `json:"mode"`
}

// SelectMode picks the analysis mode for an idle session.
func (h *SessionHandler) SelectMode(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	mode, err := gateway.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := machine.SelectMode(mode); err != nil {
		h.writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, machine.Snapshot())
}

// Back deselects the mode.
func (h *SessionHandler) Back(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := machine.Back(); err != nil {
		h.writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, machine.Snapshot())
}

type selectFileRequest struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// SelectFile stages an uploaded document and starts analysis.
func (h *SessionHandler) SelectFile(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "file name is required")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "data must be base64")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "file is empty")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}
	if err := machine.SelectFile(gateway.NewStagedFile(req.Name, req.MediaType, data)); err != nil {
		h.writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, machine.Snapshot())
}

// LoadSample runs the built-in demo report.
func (h *SessionHandler) LoadSample(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := machine.LoadSample(); err != nil {
		h.writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, machine.Snapshot())
}

// Reset returns the session to idle from any phase.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.session(w, r)
	if !ok {
		return
	}
	machine.Reset()
	writeJSON(w, http.StatusOK, machine.Snapshot())
}

// Result returns the structured analysis once complete.
func (h *SessionHandler) Result(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": ctrl.Result(),
		"urgent": ctrl.Urgent(),
	})
}

// AudioPlay synthesizes (or replays) the spoken summary and returns the
// raw audio bytes. Synthesis failure is a notice, not a phase change.
func (h *SessionHandler) AudioPlay(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.report(w, r)
	if !ok {
		return
	}
	buf, cached, err := ctrl.Audio().Play(r.Context())
	if err != nil {
		if errors.Is(err, report.ErrSynthesisInFlight) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.metrics.ObserveSpeech("error", false)
		writeError(w, http.StatusBadGateway, "audio synthesis failed")
		return
	}
	h.metrics.ObserveSpeech("ok", cached)

	w.Header().Set("Content-Type", "audio/pcm")
	if cached {
		w.Header().Set("X-Audio-Cached", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
}

// AudioStop halts playback, keeping the synthesized audio cached.
func (h *SessionHandler) AudioStop(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.report(w, r)
	if !ok {
		return
	}
	ctrl.Audio().Stop()
	writeJSON(w, http.StatusOK, map[string]any{"playing": false})
}

type specialistRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// FindSpecialists runs the location-grounded specialist lookup with the
// coordinates supplied by the client.
func (h *SessionHandler) FindSpecialists(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.report(w, r)
	if !ok {
		return
	}
	var req specialistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	location := report.LocationFunc(func(context.Context) (report.Coordinates, error) {
		if req.Latitude == nil || req.Longitude == nil {
			return report.Coordinates{}, errors.New("no coordinates provided")
		}
		return report.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}, nil
	})

	result, err := ctrl.Lookup().Find(r.Context(), location)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrLookupDenied):
			h.metrics.ObserveLookup("denied")
			writeError(w, http.StatusUnprocessableEntity, "location unavailable")
		case errors.Is(err, report.ErrLookupInFlight):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.metrics.ObserveLookup("error")
			writeError(w, http.StatusBadGateway, "specialist lookup failed")
		}
		return
	}
	h.metrics.ObserveLookup("ok")
	writeJSON(w, http.StatusOK, result)
}

// ClearSpecialists discards the stored lookup result.
func (h *SessionHandler) ClearSpecialists(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.report(w, r)
	if !ok {
		return
	}
	ctrl.Lookup().Clear()
	w.WriteHeader(http.StatusNoContent)
}

// OpenChat attaches the chat widget, seeding or resuming the log.
func (h *SessionHandler) OpenChat(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.report(w, r)
	if !ok {
		return
	}
	chatSession := ctrl.OpenChat()
	writeJSON(w, http.StatusOK, map[string]any{"messages": chatSession.Messages()})
}

// CloseChat detaches the chat widget. The log is retained.
func (h *SessionHandler) CloseChat(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.report(w, r)
	if !ok {
		return
	}
	ctrl.CloseChat()
	w.WriteHeader(http.StatusNoContent)
}

// ChatLog returns the full message log.
func (h *SessionHandler) ChatLog(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": ctrl.Chat().Messages()})
}

type chatSendRequest struct {
	Text string `json:"text"`
}

// ChatSend appends a user message and returns the assistant reply.
func (h *SessionHandler) ChatSend(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.report(w, r)
	if !ok {
		return
	}
	var req chatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	reply, err := ctrl.Chat().Send(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, chat.ErrReplyPending) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.metrics.ObserveChatSend("error")
		writeError(w, http.StatusInternalServerError, "chat send failed")
		return
	}
	h.metrics.ObserveChatSend("ok")
	writeJSON(w, http.StatusOK, reply)
}

// session resolves the {sessionID} URL parameter, writing a 404 when it
// does not name a live session.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Machine, bool) {
	id := chi.URLParam(r, "sessionID")
	machine, ok := h.manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	return machine, true
}

// report resolves the session and requires it to be complete.
func (h *SessionHandler) report(w http.ResponseWriter, r *http.Request) (*report.Controller, bool) {
	machine, ok := h.session(w, r)
	if !ok {
		return nil, false
	}
	ctrl, err := machine.Report()
	if err != nil {
		h.writeMachineError(w, err)
		return nil, false
	}
	return ctrl, true
}

func (h *SessionHandler) writeMachineError(w http.ResponseWriter, err error) {
	var phaseErr *session.InvalidPhaseError
	switch {
	case errors.Is(err, session.ErrAnalysisInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &phaseErr):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
