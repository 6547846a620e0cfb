package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clearhealth/clearhealth-ai/internal/gateway"
	"github.com/clearhealth/clearhealth-ai/internal/observability/metrics"
	"github.com/clearhealth/clearhealth-ai/internal/report"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

// Phase is the session's single authoritative state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
	PhaseAnalyzing Phase = "analyzing"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// ErrAnalysisInFlight is returned when a file is selected while an
// earlier upload or analysis has not finished.
var ErrAnalysisInFlight = errors.New("session: analysis already in flight")

// InvalidPhaseError reports an operation attempted in a phase that
// does not permit it.
type InvalidPhaseError struct {
	Op    string
	Phase Phase
}

func (e *InvalidPhaseError) Error() string {
	return fmt.Sprintf("session: cannot %s while %s", e.Op, e.Phase)
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID       string               `json:"id"`
	Phase    Phase                `json:"phase"`
	Mode     gateway.AnalysisMode `json:"mode,omitempty"`
	FileName string               `json:"file_name,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// Machine drives one session through
// idle -> uploading -> analyzing -> complete | error.
//
// The zero value is not usable; construct with NewMachine. All
// transitions happen under the mutex. The generation counter fences
// out responses that arrive after a Reset: a transition goroutine
// carries the generation it was started with and abandons its result
// if the machine has moved on.
type Machine struct {
	id      string
	gw      gateway.Client
	settle  time.Duration
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.AnalysisMetrics

	mu     sync.Mutex
	phase  Phase
	mode   gateway.AnalysisMode
	file   *gateway.StagedFile
	report *report.Controller
	errMsg string
	gen    uint64
	cancel context.CancelFunc
}

func NewMachine(id string, gw gateway.Client, settle, timeout time.Duration, logger *logging.Logger, m *metrics.AnalysisMetrics) *Machine {
	if gw == nil {
		panic("session: gateway client is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{
		id:      id,
		gw:      gw,
		settle:  settle,
		timeout: timeout,
		logger:  logger.Component("session"),
		metrics: m,
		phase:   PhaseIdle,
	}
}

// ID returns the session identifier.
func (m *Machine) ID() string { return m.id }

// SelectMode picks the analysis mode. Only valid while idle.
func (m *Machine) SelectMode(mode gateway.AnalysisMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return &InvalidPhaseError{Op: "select mode", Phase: m.phase}
	}
	m.mode = mode
	return nil
}

// Back deselects the mode without touching anything else.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return &InvalidPhaseError{Op: "go back", Phase: m.phase}
	}
	m.mode = ""
	return nil
}

// SelectFile stages a file and starts the upload/analysis sequence.
// A second selection while one is in flight is rejected outright.
func (m *Machine) SelectFile(file gateway.StagedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseUploading, PhaseAnalyzing:
		return ErrAnalysisInFlight
	case PhaseIdle:
	default:
		return &InvalidPhaseError{Op: "select file", Phase: m.phase}
	}
	if m.mode == "" {
		return &InvalidPhaseError{Op: "select file without a mode", Phase: m.phase}
	}

	m.phase = PhaseUploading
	m.file = &file
	m.errMsg = ""
	m.gen++

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.analyze(ctx, m.gen, file, m.mode)
	return nil
}

// LoadSample runs the built-in demo report through the same path as a
// user upload.
func (m *Machine) LoadSample() error {
	return m.SelectFile(SampleReport())
}

func (m *Machine) analyze(ctx context.Context, gen uint64, file gateway.StagedFile, mode gateway.AnalysisMode) {
	// Short settle so the staged file is visible before the network
	// call starts.
	if m.settle > 0 {
		timer := time.NewTimer(m.settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}

	m.mu.Lock()
	if m.gen != gen || m.phase != PhaseUploading {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseAnalyzing
	m.mu.Unlock()

	callCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := m.gw.Analyze(callCtx, file, mode)
	elapsed := time.Since(start)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		m.logger.Info("discarding analysis response for reset session",
			"session_id", m.id, "mode", string(mode))
		return
	}
	m.cancel = nil

	if err != nil {
		m.phase = PhaseError
		m.errMsg = err.Error()
		m.metrics.ObserveAnalysis(string(mode), "error", elapsed)
		m.logger.Error("analysis failed",
			"session_id", m.id, "mode", string(mode), "file", file.Name, "error", err)
		return
	}

	m.phase = PhaseComplete
	m.report = report.NewController(m.gw, result, m.timeout, m.logger)
	m.metrics.ObserveAnalysis(string(mode), "ok", elapsed)
	m.logger.Info("analysis complete",
		"session_id", m.id, "mode", string(mode), "file", file.Name,
		"severity", string(result.Severity), "elapsed_ms", elapsed.Milliseconds())
}

// Reset returns the session to idle from any phase. An in-flight
// gateway call is cancelled and its eventual response discarded.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.phase = PhaseIdle
	m.mode = ""
	m.file = nil
	m.report = nil
	m.errMsg = ""
}

// Snapshot reports the current phase and its attendant data.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{ID: m.id, Phase: m.phase, Mode: m.mode, Error: m.errMsg}
	if m.file != nil {
		s.FileName = m.file.Name
	}
	return s
}

// Report returns the presentation controller. Only valid once complete.
func (m *Machine) Report() (*report.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseComplete {
		return nil, &InvalidPhaseError{Op: "read result", Phase: m.phase}
	}
	return m.report, nil
}
