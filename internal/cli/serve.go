package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	orchestration "github.com/koscakluka/ema-room/core"
	"github.com/koscakluka/ema-room/core/audio"
	"github.com/koscakluka/ema-room/core/llms"
	"github.com/koscakluka/ema-room/core/llms/groq"
	"github.com/koscakluka/ema-room/core/llms/openai"
	"github.com/koscakluka/ema-room/core/texttospeech"
	"github.com/koscakluka/ema-room/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-room/core/texttospeech/playht"
	"github.com/koscakluka/ema-room/core/transport"
	"github.com/koscakluka/ema-room/internal/config"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the room server",
		RunE:  runServe,
	}

	cmd.Flags().StringP("addr", "a", "", "Listen address (default: :$PORT)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Address()
	}

	oracle, err := newOracle(cfg)
	if err != nil {
		return err
	}
	speech, err := newTextToSpeech(cfg)
	if err != nil {
		return err
	}

	var serverOpts []transport.ServerOption
	if speech != nil {
		serverOpts = append(serverOpts, transport.WithAudioSource(speech))
	}
	server := transport.NewServer(func(clientID string, sink orchestration.DispatchSink) *orchestration.Orchestrator {
		opts := []orchestration.OrchestratorOption{
			orchestration.WithOracle(oracle),
			orchestration.WithDispatchSink(sink),
			orchestration.WithSoulName(cfg.SoulName),
			orchestration.WithSummary(cfg.SummarizeAfter, orchestration.DefaultKeepAfterSummary),
		}
		if speech != nil {
			opts = append(opts, orchestration.WithTextToSpeech(speech))
		}
		if cfg.Debug {
			log.Printf("new session for %s", clientID)
		}
		return orchestration.NewOrchestrator(opts...)
	}, serverOpts...)
	defer server.Close()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("%s is waiting in the room on %s (llm: %s, tts: %s)", cfg.SoulName, addr, cfg.LLMProvider, cfg.TTSProvider)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked websockets are not tracked by Shutdown, the room server
	// closes them.
	server.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func newOracle(cfg config.Config) (llms.Oracle, error) {
	switch cfg.LLMProvider {
	case config.LLMProviderOpenAI:
		return openai.NewClient(cfg.OpenAIKey,
			openai.WithModel(cfg.OpenAIModel),
			openai.WithVisionModel(cfg.OpenAIVisionModel),
		), nil
	case config.LLMProviderGroq:
		return groq.NewClient(cfg.GroqKey, groq.WithModel(cfg.GroqModel)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// newTextToSpeech returns nil when speech is disabled.
func newTextToSpeech(cfg config.Config) (texttospeech.Provider, error) {
	switch cfg.TTSProvider {
	case config.TTSProviderPlayHT:
		client, err := playht.NewTextToSpeechClient(cfg.PlayHTKey, cfg.PlayHTUserID,
			playht.WithVoice(cfg.PlayHTVoice),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create playht client: %w", err)
		}
		return client, nil
	case config.TTSProviderDeepgram:
		client, err := deepgram.NewTextToSpeechClient(deepgram.ToVoice(cfg.DeepgramVoice),
			deepgram.WithAPIKey(cfg.DeepgramKey),
			deepgram.WithDefaultOptions(texttospeech.WithEncodingInfo(audio.NewEncodingInfo(cfg.AudioSampleRate))),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepgram client: %w", err)
		}
		return client, nil
	case config.TTSProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.TTSProvider)
	}
}
