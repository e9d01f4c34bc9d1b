package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/hvoss-dev/calvoice-core/core/audio"
	"github.com/hvoss-dev/calvoice-core/core/speech"
)

// Recognizer streams microphone audio to Deepgram over a websocket and
// reports utterance-level transcripts through the registered callbacks.
// One Recognizer handles at most one live transcription stream at a time.
type Recognizer struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	accumulatedTranscript string
	unendedSegment        bool
	lastAudioTs           time.Time
}

func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

func (r *Recognizer) Transcribe(ctx context.Context, opts ...speech.TranscriptionOption) error {
	options := &speech.TranscriptionOptions{EncodingInfo: audio.DefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := connectWebsocket(connectionOptions{
		sampleRate:        encoding.SampleRate,
		encoding:          encoding.Format.Name(),
		detectSpeechStart: options.SpeechStartedCallback != nil,
		interimResults:    options.InterimTranscriptionCallback != nil,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	r.connMu.Lock()
	r.conn = conn
	r.accumulatedTranscript = ""
	r.unendedSegment = false
	r.connMu.Unlock()

	go r.readAndProcessMessages(ctx, conn, *options)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string

	detectSpeechStart bool
	interimResults    bool
}

func connectWebsocket(options connectionOptions) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenUrl, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", "300")
	if options.detectSpeechStart {
		queryParams.Set("vad_events", "true")
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (r *Recognizer) SendAudio(audio []byte) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn == nil {
		return nil
	}

	r.lastAudioTs = time.Now()
	if err := r.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// StopStream asks Deepgram to flush and close the live stream. Any buffered
// audio is still transcribed and reported before the connection closes.
func (r *Recognizer) StopStream() error {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn != nil {
		if err := r.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
			return fmt.Errorf("failed to close deepgram stream through websocket: %w", err)
		}
	}
	return nil
}

func (r *Recognizer) Close(ctx context.Context) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn != nil {
		conn := r.conn
		r.conn = nil
		if err := conn.Close(); err != nil {
			return fmt.Errorf("failed to close deepgram websocket: %w", err)
		}
	}
	return nil
}

func (r *Recognizer) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speech.TranscriptionOptions) {
	keepAliveCtx, keepAliveCancel := context.WithCancel(ctx)
	defer keepAliveCancel()

	go r.keepAlive(keepAliveCtx)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				if options.ErrorCallback != nil {
					options.ErrorCallback(fmt.Errorf("recognition stream failed: %w", err))
				} else {
					log.Println("Failed to read deepgram websocket message", "error", err)
				}
			}

			r.connMu.Lock()
			r.conn = nil
			r.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			r.processMessage(msg, options)
		}
	}
}

func (r *Recognizer) processMessage(msg []byte, options speech.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}
		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				r.accumulatedTranscript += " " + transcript
			}
			if msgResp.SpeechFinal {
				r.onSpeechEnded(options)
			}
			return
		}

		if options.InterimTranscriptionCallback != nil && len(transcript) > 0 {
			options.InterimTranscriptionCallback(strings.TrimSpace(r.accumulatedTranscript + " " + transcript))
		}

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}

		if r.unendedSegment {
			r.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}

		r.unendedSegment = true
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}

	case api.TypeResponse(api.TypeErrorResponse):
		if options.ErrorCallback != nil {
			options.ErrorCallback(fmt.Errorf("recognition failed: %s", string(msg)))
		}
	}
}

func (r *Recognizer) onSpeechEnded(options speech.TranscriptionOptions) {
	r.unendedSegment = false
	if options.TranscriptionCallback != nil {
		fullTranscript := strings.TrimSpace(r.accumulatedTranscript)
		r.accumulatedTranscript = ""
		if len(fullTranscript) > 0 {
			options.TranscriptionCallback(fullTranscript)
		}
	}
	if options.SpeechEndedCallback != nil {
		options.SpeechEndedCallback()
	}
}

// keepAlive keeps the websocket open across capture gaps. Deepgram drops the
// connection after ~10s without either audio or a KeepAlive message.
func (r *Recognizer) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.connMu.Lock()
			idle := time.Since(r.lastAudioTs) > 5*time.Second
			conn := r.conn
			if idle && conn != nil {
				if err := conn.WriteJSON(struct {
					Type string `json:"type"`
				}{Type: "KeepAlive"}); err != nil {
					log.Println("Failed to write to deepgram client", "error", err)
				}
			}
			r.connMu.Unlock()
		}
	}
}
