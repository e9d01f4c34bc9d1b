package speech

import "github.com/hvoss-dev/calvoice-core/core/audio"

// TranscriptionOptions carries the callbacks a capture session registers with
// a recognizer. A recognizer invokes TranscriptionCallback exactly once per
// completed utterance with the full transcript.
type TranscriptionOptions struct {
	InterimTranscriptionCallback func(transcript string)
	TranscriptionCallback        func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	// ErrorCallback is invoked for device, connection and recognition
	// failures. The session owning the recognizer decides how to surface it.
	ErrorCallback func(err error)

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
