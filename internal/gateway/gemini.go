package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"

	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Config configures the Gemini-backed gateway.
type Config struct {
	APIKey        string
	BaseURL       string
	AnalysisModel string
	ChatModel     string
	SpeechModel   string
	SpeechVoice   string
	HTTPClient    *http.Client
	Logger        *logging.Logger
	Tracer        trace.Tracer
}

// Gemini implements Client against the Gemini API. Structured analysis
// and chat go through the official SDK; speech synthesis and
// maps-grounded lookup use the REST surface directly, which the SDK does
// not expose.
type Gemini struct {
	apiKey        string
	client        *genai.Client
	httpClient    *http.Client
	baseURL       string
	analysisModel string
	chatModel     string
	speechModel   string
	speechVoice   string
	logger        *logging.Logger
	tracer        trace.Tracer
}

var _ Client = (*Gemini)(nil)

// New creates a Gemini gateway. An empty API key is not an error here:
// every operation fails fast with ErrMissingCredential instead, so a
// misconfigured process still boots and reports cleanly per call.
func New(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AnalysisModel == "" {
		cfg.AnalysisModel = "gemini-3-pro-preview"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.5-flash"
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = "gemini-2.5-flash-preview-tts"
	}
	if cfg.SpeechVoice == "" {
		cfg.SpeechVoice = "Kore"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("clearhealth.internal.gateway")
	}

	g := &Gemini{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		httpClient:    cfg.HTTPClient,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		analysisModel: cfg.AnalysisModel,
		chatModel:     cfg.ChatModel,
		speechModel:   cfg.SpeechModel,
		speechVoice:   cfg.SpeechVoice,
		logger:        cfg.Logger.Component("gateway"),
		tracer:        cfg.Tracer,
	}

	if g.apiKey != "" {
		client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
		if err != nil {
			return nil, fmt.Errorf("gateway: failed to create gemini client: %w", err)
		}
		g.client = client
	}
	return g, nil
}

// Close releases resources held by the underlying SDK client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// analysisResultSchema constrains the model to the AnalysisResult shape.
var analysisResultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":   {Type: genai.TypeString, Description: "A short, descriptive title of the analysis"},
		"summary": {Type: genai.TypeString, Description: "A simple, easy-to-understand summary of the findings in 2-3 sentences."},
		"severity": {
			Type:        genai.TypeString,
			Enum:        []string{"low", "medium", "high", "unknown"},
			Description: "Estimated severity level based on findings.",
		},
		"findings": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":  {Type: genai.TypeString, Description: "Name of the biomarker, symptom, or observation."},
					"value": {Type: genai.TypeString, Description: "The specific value identified (e.g., '140 mg/dL') if applicable."},
					"status": {
						Type:        genai.TypeString,
						Enum:        []string{"normal", "abnormal", "critical", "informational"},
						Description: "Status of this finding.",
					},
					"explanation": {Type: genai.TypeString, Description: "Simple explanation of what this means for the patient."},
				},
				Required: []string{"name", "status", "explanation"},
			},
		},
		"recommendations": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "List of actionable next steps or questions to ask a doctor.",
		},
		"medicalDisclaimer": {Type: genai.TypeString, Description: "A mandatory medical disclaimer specific to this analysis."},
	},
	Required: []string{"title", "summary", "severity", "findings", "recommendations", "medicalDisclaimer"},
}

// Analyze sends the staged file to the model and parses the
// schema-constrained response.
func (g *Gemini) Analyze(ctx context.Context, file StagedFile, mode AnalysisMode) (*AnalysisResult, error) {
	if g.apiKey == "" {
		return nil, ErrMissingCredential
	}

	ctx, span := g.tracer.Start(ctx, "gateway.analyze")
	defer span.End()

	model := g.client.GenerativeModel(g.analysisModel)
	model.SystemInstruction = genai.NewUserContent(genai.Text(analysisSystemInstruction))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = analysisResultSchema

	parts, inlined := buildAnalysisParts(file, mode)
	if !inlined && isTextMedia(file.MediaType) {
		g.logger.Warn("text decode failed, sending payload as attachment", "file", file.Name, "media_type", file.MediaType)
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		span.RecordError(err)
		return nil, gatewayErr("analyze", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, gatewayErrf("analyze", "model returned no response body")
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		span.RecordError(err)
		return nil, gatewayErrf("analyze", "failed to decode response: %w", err)
	}
	if err := result.Validate(); err != nil {
		span.RecordError(err)
		return nil, gatewayErr("analyze", err)
	}
	return &result, nil
}

// Converse replays history as prior turns and sends message as the new
// turn. An empty reply with a nil error means the model answered with no
// text; the caller substitutes its own fallback.
func (g *Gemini) Converse(ctx context.Context, history []ChatTurn, message string, analysisContext *AnalysisResult) (string, error) {
	if g.apiKey == "" {
		return "", ErrMissingCredential
	}
	if strings.TrimSpace(message) == "" {
		return "", gatewayErrf("converse", "message must not be empty")
	}

	ctx, span := g.tracer.Start(ctx, "gateway.converse")
	defer span.End()

	model := g.client.GenerativeModel(g.chatModel)
	model.SystemInstruction = genai.NewUserContent(genai.Text(chatSystemInstruction(analysisContext)))

	cs := model.StartChat()
	for _, turn := range history {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(text)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		span.RecordError(err)
		return "", gatewayErr("converse", err)
	}
	return responseText(resp), nil
}

// buildAnalysisParts assembles the request parts for a staged file.
// Text-typed payloads are embedded as plain context; payloads that fail
// to decode as text fall back to a generic text attachment. The bool
// reports whether text inlining succeeded (always true for binary media,
// which is attached as-is).
func buildAnalysisParts(file StagedFile, mode AnalysisMode) ([]genai.Part, bool) {
	parts := []genai.Part{genai.Text(analysisPrompt(mode))}

	if isTextMedia(file.MediaType) {
		if utf8.Valid(file.Data) {
			doc := fmt.Sprintf("\n\n--- DOCUMENT CONTENT ---\n%s\n--- END DOCUMENT CONTENT ---\n", file.Data)
			return append(parts, genai.Text(doc)), true
		}
		return append(parts, genai.Blob{MIMEType: "text/plain", Data: file.Data}), false
	}

	return append(parts, genai.Blob{MIMEType: file.MediaType, Data: file.Data}), true
}

func isTextMedia(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/") ||
		mediaType == "application/json" ||
		mediaType == "application/csv"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
