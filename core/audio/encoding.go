package audio

import "time"

const (
	DefaultSampleRate = 16000
)

type Format string

const (
	FormatLinear16 Format = "linear16"
	FormatMulaw    Format = "mulaw"
	FormatALaw     Format = "alaw"
)

func (f Format) Name() string {
	return string(f)
}

// ByteSize returns the size of a single sample in bytes, or -1 for unknown
// formats.
func (f Format) ByteSize() int {
	switch f {
	case FormatMulaw, FormatALaw:
		return 1
	case FormatLinear16:
		return 2
	}
	return -1
}

type EncodingInfo struct {
	SampleRate int
	Format     Format
}

func DefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: FormatLinear16}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// Duration reports how long the given payload plays for under this encoding.
// Zero or unknown encodings report zero.
func (e EncodingInfo) Duration(payload []byte) time.Duration {
	byteSize := e.Format.ByteSize()
	if e.SampleRate <= 0 || byteSize <= 0 {
		return 0
	}

	bytesPerSecond := e.SampleRate * byteSize
	return time.Duration(len(payload)) * time.Second / time.Duration(bytesPerSecond)
}
