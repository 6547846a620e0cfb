package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validResult() *AnalysisResult {
	return &AnalysisResult{
		Title:    "Metabolic Panel Review",
		Summary:  "Mostly normal values with mildly elevated glucose.",
		Severity: SeverityMedium,
		Findings: []Finding{
			{Name: "Glucose", Value: "108 mg/dL", Status: StatusAbnormal, Explanation: "Slightly above the reference range."},
		},
		Recommendations:   []string{"Discuss with your primary care physician."},
		MedicalDisclaimer: "Informational only, not medical advice.",
	}
}

func TestAnalysisResultValidate(t *testing.T) {
	t.Run("valid result passes", func(t *testing.T) {
		require.NoError(t, validResult().Validate())
	})

	t.Run("empty sequences are allowed when present", func(t *testing.T) {
		r := validResult()
		r.Findings = []Finding{}
		r.Recommendations = []string{}
		require.NoError(t, r.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*AnalysisResult)
		field  string
	}{
		{"missing title", func(r *AnalysisResult) { r.Title = " " }, "title"},
		{"missing summary", func(r *AnalysisResult) { r.Summary = "" }, "summary"},
		{"unknown severity value", func(r *AnalysisResult) { r.Severity = "catastrophic" }, "severity"},
		{"nil findings", func(r *AnalysisResult) { r.Findings = nil }, "findings"},
		{"finding without name", func(r *AnalysisResult) { r.Findings[0].Name = "" }, "findings[0].name"},
		{"finding with bad status", func(r *AnalysisResult) { r.Findings[0].Status = "weird" }, "findings[0].status"},
		{"nil recommendations", func(r *AnalysisResult) { r.Recommendations = nil }, "recommendations"},
		{"missing disclaimer", func(r *AnalysisResult) { r.MedicalDisclaimer = "" }, "medicalDisclaimer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validResult()
			tt.mutate(r)
			err := r.Validate()
			require.Error(t, err)
			verr, ok := err.(*ValidationError)
			require.True(t, ok, "expected *ValidationError, got %T", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("document_analysis")
	require.NoError(t, err)
	assert.Equal(t, ModeDocumentAnalysis, mode)

	mode, err = ParseMode("  SYMPTOM_PHOTO_ANALYSIS  ")
	require.NoError(t, err)
	assert.Equal(t, ModeSymptomPhotoAnalysis, mode)

	_, err = ParseMode("palm_reading")
	assert.Error(t, err)
}

func TestNewStagedFileDefaultsMediaType(t *testing.T) {
	f := NewStagedFile("scan.bin", "", []byte{0x1})
	assert.Equal(t, "application/octet-stream", f.MediaType)

	f = NewStagedFile("report.txt", "text/plain", []byte("GLUCOSE 108"))
	assert.Equal(t, "text/plain", f.MediaType)
}
