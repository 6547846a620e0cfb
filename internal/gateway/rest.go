package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// The speech-synthesis and maps-grounding surfaces are not exposed by the
// Go SDK, so these operations talk to the generateContent REST endpoint
// directly.

type restContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []restPart `json:"parts"`
}

type restPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *restInlineData `json:"inlineData,omitempty"`
}

type restInlineData struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type restGenerationConfig struct {
	ResponseModalities []string          `json:"responseModalities,omitempty"`
	SpeechConfig       *restSpeechConfig `json:"speechConfig,omitempty"`
}

type restSpeechConfig struct {
	VoiceConfig restVoiceConfig `json:"voiceConfig"`
}

type restVoiceConfig struct {
	PrebuiltVoiceConfig restPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type restPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type restTool struct {
	GoogleMaps *struct{} `json:"googleMaps,omitempty"`
}

type restToolConfig struct {
	RetrievalConfig *restRetrievalConfig `json:"retrievalConfig,omitempty"`
}

type restRetrievalConfig struct {
	LatLng restLatLng `json:"latLng"`
}

type restLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type generateRequest struct {
	Contents         []restContent         `json:"contents"`
	GenerationConfig *restGenerationConfig `json:"generationConfig,omitempty"`
	Tools            []restTool            `json:"tools,omitempty"`
	ToolConfig       *restToolConfig       `json:"toolConfig,omitempty"`
}

type generateResponse struct {
	Candidates []restCandidate `json:"candidates"`
}

type restCandidate struct {
	Content           *restContent           `json:"content"`
	GroundingMetadata *restGroundingMetadata `json:"groundingMetadata"`
}

type restGroundingMetadata struct {
	GroundingChunks []json.RawMessage `json:"groundingChunks"`
}

// groundingChunk is a tagged union over provider-specific source types.
// The API does not document which provider yields which shape, so both
// are treated as equivalent.
type groundingChunk struct {
	Maps *chunkSource `json:"maps"`
	Web  *chunkSource `json:"web"`
}

type chunkSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// SynthesizeSpeech converts text into raw audio bytes.
func (g *Gemini) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	if g.apiKey == "" {
		return nil, ErrMissingCredential
	}

	ctx, span := g.tracer.Start(ctx, "gateway.synthesize_speech")
	defer span.End()

	req := generateRequest{
		Contents: []restContent{{
			Parts: []restPart{{Text: speechPreamble + text}},
		}},
		GenerationConfig: &restGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &restSpeechConfig{
				VoiceConfig: restVoiceConfig{
					PrebuiltVoiceConfig: restPrebuiltVoice{VoiceName: g.speechVoice},
				},
			},
		},
	}

	var resp generateResponse
	if err := g.generateContent(ctx, g.speechModel, req, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	encoded := firstInlineAudio(resp)
	if encoded == "" {
		return nil, gatewayErrf("synthesize_speech", "no audio payload in response")
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		span.RecordError(err)
		return nil, gatewayErrf("synthesize_speech", "failed to decode audio payload: %w", err)
	}
	return audio, nil
}

// FindSpecialists issues a location-grounded specialist query and
// normalizes the grounding chunks to (title, uri) references. Entries
// missing either field are dropped; unrecognized chunk shapes are
// logged, not fatal.
func (g *Gemini) FindSpecialists(ctx context.Context, contextText string, lat, lng float64) (*SpecialistLookup, error) {
	if g.apiKey == "" {
		return nil, ErrMissingCredential
	}

	ctx, span := g.tracer.Start(ctx, "gateway.find_specialists")
	defer span.End()

	req := generateRequest{
		Contents: []restContent{{
			Parts: []restPart{{Text: specialistPrompt(contextText)}},
		}},
		Tools: []restTool{{GoogleMaps: &struct{}{}}},
		ToolConfig: &restToolConfig{
			RetrievalConfig: &restRetrievalConfig{
				LatLng: restLatLng{Latitude: lat, Longitude: lng},
			},
		},
	}

	var resp generateResponse
	if err := g.generateContent(ctx, g.chatModel, req, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	lookup := &SpecialistLookup{
		Narrative:  candidateText(resp),
		References: []Reference{},
	}
	if lookup.Narrative == "" {
		lookup.Narrative = "No specialists found nearby."
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, raw := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if ref, ok := g.normalizeChunk(raw); ok {
				lookup.References = append(lookup.References, ref)
			}
		}
	}
	return lookup, nil
}

func (g *Gemini) normalizeChunk(raw json.RawMessage) (Reference, bool) {
	var chunk groundingChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		g.logger.Warn("unrecognized grounding chunk", "error", err)
		return Reference{}, false
	}
	src := chunk.Maps
	if src == nil {
		src = chunk.Web
	}
	if src == nil {
		g.logger.Warn("grounding chunk carries neither maps nor web source", "chunk", string(raw))
		return Reference{}, false
	}
	if strings.TrimSpace(src.Title) == "" || strings.TrimSpace(src.URI) == "" {
		return Reference{}, false
	}
	return Reference{Title: src.Title, URI: src.URI}, true
}

func (g *Gemini) generateContent(ctx context.Context, model string, payload generateRequest, out *generateResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return gatewayErrf("generate_content", "failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return gatewayErrf("generate_content", "failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return gatewayErr("generate_content", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gatewayErrf("generate_content", "failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return gatewayErrf("generate_content", "model %s returned status %d: %s", model, resp.StatusCode, truncate(data, 256))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return gatewayErrf("generate_content", "failed to decode response: %w", err)
	}
	return nil
}

func firstInlineAudio(resp generateResponse) string {
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return p.InlineData.Data
			}
		}
	}
	return ""
}

func candidateText(resp generateResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
