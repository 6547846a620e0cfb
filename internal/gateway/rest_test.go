package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := New(context.Background(), Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestSynthesizeSpeech(t *testing.T) {
	audio := []byte{0x52, 0x49, 0x46, 0x46, 0x01, 0x02}

	t.Run("decodes inline audio payload", func(t *testing.T) {
		var captured generateRequest
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			assert.Contains(t, r.URL.Path, "gemini-2.5-flash-preview-tts:generateContent")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			resp := generateResponse{Candidates: []restCandidate{{
				Content: &restContent{Parts: []restPart{{
					InlineData: &restInlineData{
						MIMEType: "audio/pcm",
						Data:     base64.StdEncoding.EncodeToString(audio),
					},
				}}},
			}}}
			_ = json.NewEncoder(w).Encode(resp)
		})

		got, err := g.SynthesizeSpeech(context.Background(), "Glucose is mildly elevated.")
		require.NoError(t, err)
		assert.Equal(t, audio, got)

		require.Len(t, captured.Contents, 1)
		assert.Contains(t, captured.Contents[0].Parts[0].Text, "Here is your Clear Health summary.")
		require.NotNil(t, captured.GenerationConfig)
		assert.Equal(t, []string{"AUDIO"}, captured.GenerationConfig.ResponseModalities)
		assert.Equal(t, "Kore", captured.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	})

	t.Run("missing audio payload is a gateway error", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(generateResponse{Candidates: []restCandidate{{
				Content: &restContent{Parts: []restPart{{Text: "no audio here"}}},
			}}})
		})

		_, err := g.SynthesizeSpeech(context.Background(), "text")
		require.Error(t, err)
		assert.True(t, IsGatewayError(err))
	})

	t.Run("http failure is a gateway error", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
		})

		_, err := g.SynthesizeSpeech(context.Background(), "text")
		require.Error(t, err)
		assert.True(t, IsGatewayError(err))
		assert.Contains(t, err.Error(), "429")
	})
}

func TestFindSpecialists(t *testing.T) {
	t.Run("normalizes maps and web chunks, drops partial entries", func(t *testing.T) {
		var captured generateRequest
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			chunks := []json.RawMessage{
				json.RawMessage(`{"maps":{"title":"Dr. Reyes Endocrinology","uri":"https://maps.example/reyes"}}`),
				json.RawMessage(`{"web":{"title":"City Diabetes Clinic","uri":"https://clinic.example"}}`),
				json.RawMessage(`{"maps":{"title":"Missing URI Practice"}}`),
				json.RawMessage(`{"retrieval":{"id":"opaque"}}`),
			}
			resp := generateResponse{Candidates: []restCandidate{{
				Content:           &restContent{Parts: []restPart{{Text: "Consider an endocrinologist."}}},
				GroundingMetadata: &restGroundingMetadata{GroundingChunks: chunks},
			}}}
			_ = json.NewEncoder(w).Encode(resp)
		})

		lookup, err := g.FindSpecialists(context.Background(), "Metabolic Panel Review. Severity: high", 40.71, -74.0)
		require.NoError(t, err)
		assert.Equal(t, "Consider an endocrinologist.", lookup.Narrative)
		require.Len(t, lookup.References, 2)
		assert.Equal(t, "Dr. Reyes Endocrinology", lookup.References[0].Title)
		assert.Equal(t, "https://clinic.example", lookup.References[1].URI)

		require.Len(t, captured.Tools, 1)
		require.NotNil(t, captured.Tools[0].GoogleMaps)
		require.NotNil(t, captured.ToolConfig)
		assert.InDelta(t, 40.71, captured.ToolConfig.RetrievalConfig.LatLng.Latitude, 0.001)
		assert.InDelta(t, -74.0, captured.ToolConfig.RetrievalConfig.LatLng.Longitude, 0.001)
		assert.Contains(t, captured.Contents[0].Parts[0].Text, "medical specialist")
	})

	t.Run("empty narrative gets fallback text", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(generateResponse{})
		})

		lookup, err := g.FindSpecialists(context.Background(), "ctx", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, "No specialists found nearby.", lookup.Narrative)
		assert.Empty(t, lookup.References)
	})

	t.Run("transport failure is a gateway error", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		})

		_, err := g.FindSpecialists(context.Background(), "ctx", 1, 2)
		require.Error(t, err)
		assert.True(t, IsGatewayError(err))
	})
}
