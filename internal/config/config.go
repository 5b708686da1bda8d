package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	LLMProviderOpenAI = "openai"
	LLMProviderGroq   = "groq"

	TTSProviderPlayHT   = "playht"
	TTSProviderDeepgram = "deepgram"
	TTSProviderNone     = "none"
)

// Config holds the server configuration.
type Config struct {
	Port     int
	SoulName string

	LLMProvider       string
	OpenAIKey         string
	OpenAIModel       string
	OpenAIVisionModel string
	GroqKey           string
	GroqModel         string

	TTSProvider   string
	PlayHTKey     string
	PlayHTUserID  string
	PlayHTVoice   string
	DeepgramKey   string
	DeepgramVoice string

	AudioSampleRate int
	SummarizeAfter  int
	Debug           bool
}

// Address is the address the server listens on.
func (c Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads .env, when present, and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not loaded, using the environment only")
	}

	var errs []error
	intVar := func(name string, fallback int) int {
		value, err := intEnv(name, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return value
	}

	cfg := Config{
		Port:     intVar("PORT", 3000),
		SoulName: stringEnv("SOUL_NAME", "Milton"),

		LLMProvider:       strings.ToLower(stringEnv("LLM_PROVIDER", LLMProviderOpenAI)),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       os.Getenv("OPENAI_MODEL"),
		OpenAIVisionModel: os.Getenv("OPENAI_VISION_MODEL"),
		GroqKey:           os.Getenv("GROQ_API_KEY"),
		GroqModel:         os.Getenv("GROQ_MODEL"),

		TTSProvider:   strings.ToLower(stringEnv("TTS_PROVIDER", TTSProviderNone)),
		PlayHTKey:     os.Getenv("PLAYHT_API_KEY"),
		PlayHTUserID:  os.Getenv("PLAYHT_USER_ID"),
		PlayHTVoice:   os.Getenv("PLAYHT_VOICE"),
		DeepgramKey:   os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramVoice: os.Getenv("DEEPGRAM_VOICE"),

		AudioSampleRate: intVar("AUDIO_SAMPLE_RATE", 24000),
		SummarizeAfter:  intVar("SUMMARIZE_AFTER", 10),
		Debug:           boolEnv("DEBUG"),
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.AudioSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate))
	}
	if c.SummarizeAfter <= 0 {
		errs = append(errs, fmt.Errorf("SUMMARIZE_AFTER must be positive, got %d", c.SummarizeAfter))
	}

	switch c.LLMProvider {
	case LLMProviderOpenAI:
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case LLMProviderGroq:
		if c.GroqKey == "" {
			errs = append(errs, errors.New("GROQ_API_KEY is required for the groq provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	switch c.TTSProvider {
	case TTSProviderPlayHT:
		if c.PlayHTKey == "" || c.PlayHTUserID == "" {
			errs = append(errs, errors.New("PLAYHT_API_KEY and PLAYHT_USER_ID are required for the playht provider"))
		}
	case TTSProviderDeepgram:
		if c.DeepgramKey == "" {
			errs = append(errs, errors.New("DEEPGRAM_API_KEY is required for the deepgram provider"))
		}
	case TTSProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider))
	}

	return errors.Join(errs...)
}

func stringEnv(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func intEnv(name string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return parsed, nil
}

func boolEnv(name string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(name)))
	return err == nil && value
}
