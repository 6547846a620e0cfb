package gateway

import (
	"context"
	"fmt"
	"strings"
)

// AnalysisMode selects which interpretation the model is asked to perform.
type AnalysisMode string

const (
	// ModeDocumentAnalysis covers lab reports, clinical notes, and other
	// medical paperwork.
	ModeDocumentAnalysis AnalysisMode = "document_analysis"
	// ModeSymptomPhotoAnalysis covers photos of visible symptoms.
	ModeSymptomPhotoAnalysis AnalysisMode = "symptom_photo_analysis"
)

// ParseMode converts a wire value to an AnalysisMode.
func ParseMode(raw string) (AnalysisMode, error) {
	switch AnalysisMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeDocumentAnalysis:
		return ModeDocumentAnalysis, nil
	case ModeSymptomPhotoAnalysis:
		return ModeSymptomPhotoAnalysis, nil
	default:
		return "", fmt.Errorf("gateway: unknown analysis mode %q", raw)
	}
}

// StagedFile is a user-selected file awaiting analysis. Immutable once
// created; discarded on session reset.
type StagedFile struct {
	Name      string
	MediaType string
	Data      []byte
}

// NewStagedFile builds a StagedFile, defaulting the media type when the
// client did not declare one.
func NewStagedFile(name, mediaType string, data []byte) StagedFile {
	if strings.TrimSpace(mediaType) == "" {
		mediaType = "application/octet-stream"
	}
	return StagedFile{Name: name, MediaType: mediaType, Data: data}
}

// Severity is the overall risk classification of an analysis.
type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityUnknown Severity = "unknown"
)

func (s Severity) valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityUnknown:
		return true
	}
	return false
}

// FindingStatus classifies a single finding.
type FindingStatus string

const (
	StatusNormal        FindingStatus = "normal"
	StatusAbnormal      FindingStatus = "abnormal"
	StatusCritical      FindingStatus = "critical"
	StatusInformational FindingStatus = "informational"
)

func (s FindingStatus) valid() bool {
	switch s {
	case StatusNormal, StatusAbnormal, StatusCritical, StatusInformational:
		return true
	}
	return false
}

// Finding is one extracted biomarker, observation, or symptom
// characteristic.
type Finding struct {
	Name        string        `json:"name"`
	Value       string        `json:"value,omitempty"`
	Status      FindingStatus `json:"status"`
	Explanation string        `json:"explanation"`
}

// TrendPoint is one dated measurement in a trend series.
type TrendPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Trend is a historical series for a single metric.
type Trend struct {
	Metric string       `json:"metric"`
	Data   []TrendPoint `json:"data"`
	Unit   string       `json:"unit,omitempty"`
}

// AnalysisResult is the structured output of a completed analysis.
type AnalysisResult struct {
	Title             string    `json:"title"`
	Summary           string    `json:"summary"`
	Severity          Severity  `json:"severity"`
	Findings          []Finding `json:"findings"`
	Trends            []Trend   `json:"trends,omitempty"`
	Recommendations   []string  `json:"recommendations"`
	MedicalDisclaimer string    `json:"medicalDisclaimer"`
}

// Validate checks the result against the response contract. A violation
// means the remote gateway broke its schema; the caller must treat it as
// a gateway failure, never coerce values to defaults.
func (r *AnalysisResult) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.Summary) == "" {
		return &ValidationError{Field: "summary", Reason: "must not be empty"}
	}
	if !r.Severity.valid() {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unexpected value %q", r.Severity)}
	}
	if r.Findings == nil {
		return &ValidationError{Field: "findings", Reason: "sequence missing"}
	}
	for i, f := range r.Findings {
		if strings.TrimSpace(f.Name) == "" {
			return &ValidationError{Field: fmt.Sprintf("findings[%d].name", i), Reason: "must not be empty"}
		}
		if !f.Status.valid() {
			return &ValidationError{Field: fmt.Sprintf("findings[%d].status", i), Reason: fmt.Sprintf("unexpected value %q", f.Status)}
		}
	}
	if r.Recommendations == nil {
		return &ValidationError{Field: "recommendations", Reason: "sequence missing"}
	}
	if strings.TrimSpace(r.MedicalDisclaimer) == "" {
		return &ValidationError{Field: "medicalDisclaimer", Reason: "must not be empty"}
	}
	return nil
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one prior exchange replayed to the model.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Reference is a normalized grounding chunk: a display title plus a
// target URI.
type Reference struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// SpecialistLookup is the outcome of a location-grounded provider query.
type SpecialistLookup struct {
	Narrative  string      `json:"narrative"`
	References []Reference `json:"references"`
}

// Analyzer converts a staged file into a structured analysis.
type Analyzer interface {
	Analyze(ctx context.Context, file StagedFile, mode AnalysisMode) (*AnalysisResult, error)
}

// Synthesizer converts text into audio bytes.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

// Converser replays a conversation history and returns the model reply.
type Converser interface {
	Converse(ctx context.Context, history []ChatTurn, message string, analysisContext *AnalysisResult) (string, error)
}

// SpecialistFinder issues a location-grounded specialist query.
type SpecialistFinder interface {
	FindSpecialists(ctx context.Context, contextText string, lat, lng float64) (*SpecialistLookup, error)
}

// Client is the full remote analysis gateway. All operations are
// request/response with no caching or retry at this layer.
type Client interface {
	Analyzer
	Synthesizer
	Converser
	SpecialistFinder
}
