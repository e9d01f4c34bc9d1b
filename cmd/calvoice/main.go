package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	voiceclient "github.com/hvoss-dev/calvoice-core/core"
	"github.com/hvoss-dev/calvoice-core/core/agent"
	"github.com/hvoss-dev/calvoice-core/core/audio/miniaudio"
	"github.com/hvoss-dev/calvoice-core/core/audio/portaudio"
	"github.com/hvoss-dev/calvoice-core/core/calendar"
	"github.com/hvoss-dev/calvoice-core/core/speech/deepgram"
	"github.com/hvoss-dev/calvoice-core/core/speech/whisper"
	"github.com/hvoss-dev/calvoice-core/core/synthesis"
)

func main() {
	_ = godotenv.Load()

	agentClient := agent.NewClient(envOr("AGENT_API_URL", "http://localhost:8000"))
	remote := calendar.NewRemoteClient(envOr("CALENDAR_API_URL", "http://localhost:8000"))
	synthesizer := synthesis.NewClient(envOr("TTS_API_URL", "http://localhost:5002"))

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 5*time.Second)
	health, err := agentClient.Health(probeCtx)
	cancelProbe()
	agentModel := "unreachable"
	if err != nil {
		log.Printf("agent health probe failed: %v", err)
	} else {
		agentModel = health.Model
	}

	recognizer := buildRecognizer()
	device, playback := buildAudio()

	var program *tea.Program

	engine := calendar.NewEngine(remote,
		calendar.WithConfirmationCallback(func(text string) {
			program.Send(confirmationMsg(text))
		}),
		calendar.WithNoticeCallback(func(text string) {
			program.Send(noticeMsg(text))
		}),
		calendar.WithRefreshCallback(func(events []calendar.Event) {
			program.Send(eventsRefreshedMsg(events))
		}),
	)

	clientOptions := []voiceclient.ClientOption{
		voiceclient.WithAgentClient(agentClient),
		voiceclient.WithSynthesizer(synthesizer),
		voiceclient.WithCalendarEngine(engine),
		voiceclient.WithMessageCallback(func(message voiceclient.ChatMessage) {
			program.Send(messageAppendedMsg(message))
		}),
		voiceclient.WithSessionStateCallback(func(state voiceclient.SessionState) {
			program.Send(sessionStateMsg(state))
		}),
		voiceclient.WithNoticeCallback(func(text string) {
			program.Send(noticeMsg(text))
		}),
		voiceclient.WithInterimTranscriptCallback(func(transcript string) {
			program.Send(interimTranscriptMsg(transcript))
		}),
	}
	if recognizer != nil {
		clientOptions = append(clientOptions, voiceclient.WithRecognizer(recognizer))
	}
	if device != nil {
		clientOptions = append(clientOptions, voiceclient.WithCaptureDevice(device))
	}
	if playback != nil {
		clientOptions = append(clientOptions, voiceclient.WithPlaybackEngine(playback))
	}

	client := voiceclient.New(clientOptions...)
	defer client.Close()

	program = tea.NewProgram(
		newAppModel(client, engine, agentModel, recognizer != nil),
		tea.WithAltScreen(),
	)

	go func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := engine.Refresh(refreshCtx); err != nil {
			program.Send(noticeMsg(fmt.Sprintf("Could not load events: %v", err)))
		}
	}()

	if _, err := program.Run(); err != nil {
		log.Fatalf("failed to run UI: %v", err)
	}
}

// buildRecognizer picks a speech backend from the configured credentials:
// Deepgram streams live transcripts, Whisper transcribes the whole utterance
// after the session stops. With neither key set the app is typing-only.
func buildRecognizer() voiceclient.Recognizer {
	if os.Getenv("DEEPGRAM_API_KEY") != "" {
		return deepgram.NewRecognizer()
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		recognizer, err := whisper.NewRecognizer(key)
		if err != nil {
			log.Printf("failed to set up whisper recognizer: %v", err)
			return nil
		}
		return recognizer
	}
	return nil
}

func buildAudio() (voiceclient.CaptureDevice, voiceclient.PlaybackEngine) {
	if os.Getenv("AUDIO_BACKEND") == "portaudio" {
		device, err := portaudio.NewClient(480)
		if err != nil {
			log.Printf("failed to set up portaudio capture: %v", err)
			return nil, nil
		}
		// Portaudio is capture-only here; replies stay text-only.
		return device, nil
	}

	client, err := miniaudio.NewClient()
	if err != nil {
		log.Printf("failed to set up audio: %v", err)
		return nil, nil
	}
	return client, client
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
