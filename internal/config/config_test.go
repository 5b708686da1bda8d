package config

import (
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{
		"PORT", "SOUL_NAME", "LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL",
		"OPENAI_VISION_MODEL", "GROQ_API_KEY", "GROQ_MODEL", "TTS_PROVIDER",
		"PLAYHT_API_KEY", "PLAYHT_USER_ID", "PLAYHT_VOICE", "DEEPGRAM_API_KEY",
		"DEEPGRAM_VOICE", "AUDIO_SAMPLE_RATE", "SUMMARIZE_AFTER", "DEBUG",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 || cfg.Address() != ":3000" {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.SoulName != "Milton" {
		t.Fatalf("expected default soul name, got %q", cfg.SoulName)
	}
	if cfg.LLMProvider != LLMProviderOpenAI || cfg.TTSProvider != TTSProviderNone {
		t.Fatalf("unexpected providers %q %q", cfg.LLMProvider, cfg.TTSProvider)
	}
	if cfg.AudioSampleRate != 24000 || cfg.SummarizeAfter != 10 || cfg.Debug {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("SOUL_NAME", "Ada")
	t.Setenv("LLM_PROVIDER", "Groq")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("TTS_PROVIDER", "deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "dg-test")
	t.Setenv("DEEPGRAM_VOICE", "aura-2-thalia-en")
	t.Setenv("SUMMARIZE_AFTER", "20")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 8080 || cfg.SoulName != "Ada" || cfg.LLMProvider != LLMProviderGroq {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.TTSProvider != TTSProviderDeepgram || cfg.DeepgramVoice != "aura-2-thalia-en" {
		t.Fatalf("unexpected tts config %+v", cfg)
	}
	if cfg.SummarizeAfter != 20 || !cfg.Debug {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRequiresProviderKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("TTS_PROVIDER", "playht")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected missing keys to fail")
	}
	for _, expected := range []string{"OPENAI_API_KEY", "PLAYHT_API_KEY"} {
		if !strings.Contains(err.Error(), expected) {
			t.Fatalf("expected error to mention %s, got %v", expected, err)
		}
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "eighty")
	t.Setenv("TTS_PROVIDER", "espeak")
	t.Setenv("AUDIO_SAMPLE_RATE", "-1")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected invalid values to fail")
	}
	for _, expected := range []string{"PORT", "TTS_PROVIDER", "AUDIO_SAMPLE_RATE"} {
		if !strings.Contains(err.Error(), expected) {
			t.Fatalf("expected error to mention %s, got %v", expected, err)
		}
	}
}
