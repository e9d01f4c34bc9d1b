package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hvoss-dev/calvoice-core/core/audio"
	"github.com/hvoss-dev/calvoice-core/core/speech"
)

// Recognizer buffers a whole utterance locally and transcribes it in one call
// to the OpenAI audio transcription API when the stream is stopped. Unlike the
// streaming deepgram recognizer it produces no interim transcripts, which
// makes it a drop-in fallback when no streaming provider is configured.
type Recognizer struct {
	client *openai.Client

	mu      sync.Mutex
	pcm     bytes.Buffer
	options speech.TranscriptionOptions
	active  bool
	ctx     context.Context
}

func NewRecognizer(apiKey string) (*Recognizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key not provided")
	}

	return &Recognizer{client: openai.NewClient(apiKey)}, nil
}

func (r *Recognizer) Transcribe(ctx context.Context, opts ...speech.TranscriptionOption) error {
	options := speech.TranscriptionOptions{EncodingInfo: audio.DefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	if options.EncodingInfo.Format != audio.FormatLinear16 {
		return fmt.Errorf("unsupported encoding: %s", options.EncodingInfo.Format.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pcm.Reset()
	r.options = options
	r.active = true
	r.ctx = ctx

	return nil
}

func (r *Recognizer) SendAudio(audio []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return nil
	}

	_, err := r.pcm.Write(audio)
	return err
}

// StopStream finalizes the buffered utterance: the accumulated PCM is wrapped
// as WAV, transcribed, and the transcript reported through the callbacks
// registered on Transcribe.
func (r *Recognizer) StopStream() error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil
	}
	r.active = false
	options := r.options
	ctx := r.ctx
	pcm := make([]byte, r.pcm.Len())
	copy(pcm, r.pcm.Bytes())
	r.pcm.Reset()
	r.mu.Unlock()

	if len(pcm) == 0 {
		if options.SpeechEndedCallback != nil {
			options.SpeechEndedCallback()
		}
		return nil
	}

	go r.transcribeBuffered(ctx, pcm, options)
	return nil
}

func (r *Recognizer) transcribeBuffered(ctx context.Context, pcm []byte, options speech.TranscriptionOptions) {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wrapWAV(pcm, options.EncodingInfo.SampleRate)),
	})
	if err != nil {
		if options.ErrorCallback != nil {
			options.ErrorCallback(fmt.Errorf("transcription request failed: %w", err))
		}
		return
	}

	transcript := strings.TrimSpace(resp.Text)
	if len(transcript) > 0 && options.TranscriptionCallback != nil {
		options.TranscriptionCallback(transcript)
	}
	if options.SpeechEndedCallback != nil {
		options.SpeechEndedCallback()
	}
}

// wrapWAV prefixes raw mono 16-bit little-endian PCM with a RIFF header.
func wrapWAV(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)

	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
