package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingCredentialFailsEveryOperation(t *testing.T) {
	g, err := New(context.Background(), Config{APIKey: ""})
	require.NoError(t, err)
	defer g.Close()

	_, err = g.Analyze(context.Background(), NewStagedFile("r.txt", "text/plain", []byte("x")), ModeDocumentAnalysis)
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = g.Converse(context.Background(), nil, "hello", nil)
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = g.SynthesizeSpeech(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = g.FindSpecialists(context.Background(), "context", 40.7, -74.0)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestBuildAnalysisParts(t *testing.T) {
	t.Run("text payload is inlined as context", func(t *testing.T) {
		file := NewStagedFile("labs.txt", "text/plain", []byte("GLUCOSE 108 mg/dL"))
		parts, inlined := buildAnalysisParts(file, ModeDocumentAnalysis)
		require.True(t, inlined)
		require.Len(t, parts, 2)

		prompt, ok := parts[0].(genai.Text)
		require.True(t, ok)
		assert.Contains(t, string(prompt), "medical document")

		doc, ok := parts[1].(genai.Text)
		require.True(t, ok)
		assert.Contains(t, string(doc), "GLUCOSE 108 mg/dL")
		assert.Contains(t, string(doc), "--- DOCUMENT CONTENT ---")
	})

	t.Run("undecodable text payload falls back to attachment", func(t *testing.T) {
		file := NewStagedFile("labs.txt", "text/plain", []byte{0xff, 0xfe, 0xfd})
		parts, inlined := buildAnalysisParts(file, ModeDocumentAnalysis)
		require.False(t, inlined)
		require.Len(t, parts, 2)

		blob, ok := parts[1].(genai.Blob)
		require.True(t, ok)
		assert.Equal(t, "text/plain", blob.MIMEType)
		assert.Equal(t, []byte{0xff, 0xfe, 0xfd}, blob.Data)
	})

	t.Run("binary payload is attached with its declared media type", func(t *testing.T) {
		file := NewStagedFile("rash.jpg", "image/jpeg", []byte{0xff, 0xd8})
		parts, inlined := buildAnalysisParts(file, ModeSymptomPhotoAnalysis)
		require.True(t, inlined)
		require.Len(t, parts, 2)

		prompt, ok := parts[0].(genai.Text)
		require.True(t, ok)
		assert.Contains(t, string(prompt), "physical symptom")

		blob, ok := parts[1].(genai.Blob)
		require.True(t, ok)
		assert.Equal(t, "image/jpeg", blob.MIMEType)
	})
}

func TestChatSystemInstruction(t *testing.T) {
	general := chatSystemInstruction(nil)
	assert.Contains(t, general, "general medical health questions")
	assert.Contains(t, general, "see a doctor")

	withContext := chatSystemInstruction(validResult())
	assert.Contains(t, withContext, "Current Analysis Context")
	assert.Contains(t, withContext, "Metabolic Panel Review")
	assert.NotContains(t, withContext, "general medical health questions")
}

func TestAnalysisPromptByMode(t *testing.T) {
	assert.True(t, strings.Contains(analysisPrompt(ModeDocumentAnalysis), "lab report"))
	assert.True(t, strings.Contains(analysisPrompt(ModeSymptomPhotoAnalysis), "medical attention"))
}

func TestResponseTextEmptyCases(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: nil}},
	}))
}
