package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-room/core/audio"
	"github.com/koscakluka/ema-room/core/audio/miniaudio"
	"github.com/koscakluka/ema-room/core/client"
	"github.com/koscakluka/ema-room/core/playback"
	"github.com/koscakluka/ema-room/core/speechtotext/deepgram"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Talk to a soul from the terminal",
		RunE:  runClient,
	}

	cmd.Flags().StringP("server", "s", "http://localhost:3000", "Room server url")
	cmd.Flags().String("client-id", "", "Client id, reusing one resumes its session (default: random)")
	cmd.Flags().String("soul", "Milton", "Name of the soul in the room")
	cmd.Flags().Int("sample-rate", audio.DefaultSampleRate, "Sample rate of the linear16 audio the server speaks")
	cmd.Flags().Bool("no-audio", false, "Only show text, do not play audio")
	cmd.Flags().Bool("listen", false, "Send what is said into the microphone, needs DEEPGRAM_API_KEY")
	cmd.Flags().Int("listen-sample-rate", 16000, "Sample rate the microphone is captured at")

	RootCmd.AddCommand(cmd)
}

func runClient(cmd *cobra.Command, _ []string) error {
	server, _ := cmd.Flags().GetString("server")
	clientID, _ := cmd.Flags().GetString("client-id")
	soul, _ := cmd.Flags().GetString("soul")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")
	noAudio, _ := cmd.Flags().GetBool("no-audio")
	listen, _ := cmd.Flags().GetBool("listen")
	listenSampleRate, _ := cmd.Flags().GetInt("listen-sample-rate")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := client.NewFeed()
	defer feed.Stop()

	var scheduler *playback.Scheduler
	if !noAudio {
		player, err := miniaudio.NewClient(audio.NewEncodingInfo(sampleRate))
		if err != nil {
			return fmt.Errorf("failed to open audio output, try --no-audio: %w", err)
		}
		defer player.Close()

		scheduler = playback.NewScheduler(client.NewHTTPLoader(), player,
			playback.WithTalkingCallbacks(feed.TalkingStarted, feed.TalkingStopped),
			playback.WithFailureCallback(feed.PlaybackFailed),
		)
		playbackCtx, cancelPlayback := context.WithCancel(ctx)
		playbackDone := make(chan struct{})
		go func() {
			defer close(playbackDone)
			_ = scheduler.Run(playbackCtx)
		}()
		defer func() {
			cancelPlayback()
			<-playbackDone
			scheduler.Close()
		}()
	}

	room, err := client.Dial(ctx, server, clientID,
		client.WithScheduler(scheduler),
		client.WithMessageCallback(feed.Message),
		client.WithErrorCallback(feed.Error),
	)
	if err != nil {
		return err
	}
	defer room.Close()

	go func() {
		<-room.Done()
		feed.Disconnected()
	}()

	if listen {
		listening, err := startListening(ctx, room, feed, listenSampleRate)
		if err != nil {
			return err
		}
		defer func() {
			if err := listening.Stop(); err != nil {
				log.Printf("Warning: failed to stop listening: %v", err)
			}
		}()
	}

	program := tea.NewProgram(client.NewModel(room, feed, soul), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	// Playback callbacks block on the feed until it is stopped.
	feed.Stop()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal client failed: %w", err)
	}
	return nil
}

func startListening(ctx context.Context, room *client.Client, feed *client.Feed, sampleRate int) (*listeningMicrophone, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	encoding := audio.NewEncodingInfo(sampleRate)
	transcriber, err := deepgram.NewTranscriptionClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}
	mic, err := miniaudio.NewMicrophone(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to open microphone: %w", err)
	}

	listening, err := client.Listen(ctx, mic, transcriber, mic.EncodingInfo(), room, feed)
	if err != nil {
		mic.Close()
		return nil, err
	}
	return &listeningMicrophone{Listening: listening, mic: mic}, nil
}

type listeningMicrophone struct {
	*client.Listening
	mic *miniaudio.Microphone
}

func (l *listeningMicrophone) Stop() error {
	defer l.mic.Close()
	return l.Listening.Stop()
}
