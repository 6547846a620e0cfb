package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("UPLOAD_SETTLE_DELAY", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.GeminiAPIKey != "" {
		t.Fatalf("expected default api key empty, got %s", cfg.GeminiAPIKey)
	}
	if cfg.AnalysisModel != "gemini-3-pro-preview" {
		t.Fatalf("expected default analysis model, got %s", cfg.AnalysisModel)
	}
	if cfg.SpeechVoice != "Kore" {
		t.Fatalf("expected default speech voice, got %s", cfg.SpeechVoice)
	}
	if cfg.UploadSettleDelay != 500*time.Millisecond {
		t.Fatalf("expected default settle delay, got %s", cfg.UploadSettleDelay)
	}
	if cfg.GatewayTimeout != 60*time.Second {
		t.Fatalf("expected default gateway timeout, got %s", cfg.GatewayTimeout)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitPerSec != 5 || cfg.RateLimitBurst != 10 {
		t.Fatalf("expected default rate limit, got %v/%d", cfg.RateLimitPerSec, cfg.RateLimitBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("ANALYSIS_MODEL", "gemini-exp")
	t.Setenv("UPLOAD_SETTLE_DELAY", "50ms")
	t.Setenv("MAX_SESSIONS", "25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.GeminiAPIKey != "test-key" {
		t.Fatalf("expected api key override, got %s", cfg.GeminiAPIKey)
	}
	if cfg.AnalysisModel != "gemini-exp" {
		t.Fatalf("expected analysis model override, got %s", cfg.AnalysisModel)
	}
	if cfg.UploadSettleDelay != 50*time.Millisecond {
		t.Fatalf("expected settle delay override, got %s", cfg.UploadSettleDelay)
	}
	if cfg.MaxSessions != 25 {
		t.Fatalf("expected max sessions override, got %d", cfg.MaxSessions)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("expected CORS origins override, got %v", cfg.CORSAllowedOrigins)
	}
}
