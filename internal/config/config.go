package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Gemini API
	GeminiAPIKey   string
	GeminiBaseURL  string
	AnalysisModel  string
	ChatModel      string
	SpeechModel    string
	SpeechVoice    string
	GatewayTimeout time.Duration

	// Session lifecycle
	UploadSettleDelay time.Duration
	MaxSessions       int
	SessionMaxIdle    time.Duration

	// HTTP surface
	RateLimitPerSec    float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		AnalysisModel:  getEnv("ANALYSIS_MODEL", "gemini-3-pro-preview"),
		ChatModel:      getEnv("CHAT_MODEL", "gemini-2.5-flash"),
		SpeechModel:    getEnv("SPEECH_MODEL", "gemini-2.5-flash-preview-tts"),
		SpeechVoice:    getEnv("SPEECH_VOICE", "Kore"),
		GatewayTimeout: getEnvAsDuration("GATEWAY_TIMEOUT", 60*time.Second),

		UploadSettleDelay: getEnvAsDuration("UPLOAD_SETTLE_DELAY", 500*time.Millisecond),
		MaxSessions:       getEnvAsInt("MAX_SESSIONS", 1000),
		SessionMaxIdle:    getEnvAsDuration("SESSION_MAX_IDLE", 30*time.Minute),

		RateLimitPerSec:    getEnvAsFloat("RATE_LIMIT_PER_SEC", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
