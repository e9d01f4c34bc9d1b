package synthesis

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
)

// record is one line of a newline-delimited synthesis stream. Older servers
// send the fragment under "data", current ones under "audio"; both are
// accepted.
type record struct {
	Audio string `json:"audio"`
	Data  string `json:"data"`
}

func (r record) fragment() string {
	if r.Audio != "" {
		return r.Audio
	}
	return r.Data
}

// RecordDecoder turns a raw chunked byte stream into a sequence of
// text-encoded audio fragments. Chunk boundaries carry no meaning: a record
// may arrive split across any number of reads, so the unterminated trailing
// fragment of each read is carried over into the next one. A line that fails
// to parse is reported through the diagnostic callback and skipped; it never
// aborts the stream.
type RecordDecoder struct {
	reader io.Reader

	// carry holds the bytes after the last newline seen so far.
	carry []byte

	onDiagnostic func(line []byte, err error)
}

type RecordDecoderOption func(*RecordDecoder)

func WithDiagnosticCallback(callback func(line []byte, err error)) RecordDecoderOption {
	return func(d *RecordDecoder) {
		d.onDiagnostic = callback
	}
}

func NewRecordDecoder(reader io.Reader, opts ...RecordDecoderOption) *RecordDecoder {
	decoder := &RecordDecoder{
		reader:       reader,
		onDiagnostic: func([]byte, error) {},
	}
	for _, opt := range opts {
		opt(decoder)
	}
	return decoder
}

// Fragments iterates the audio fragments of the stream in arrival order.
// A transport failure mid-stream yields once with a non-nil error and stops.
func (d *RecordDecoder) Fragments() func(yield func(string, error) bool) {
	return func(yield func(string, error) bool) {
		chunk := make([]byte, 4096)
		for {
			n, err := d.reader.Read(chunk)
			if n > 0 {
				d.carry = append(d.carry, chunk[:n]...)
				if ok := d.yieldCompleteLines(yield); !ok {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					d.flushTrailingLine(yield)
					return
				}
				yield("", err)
				return
			}
		}
	}
}

func (d *RecordDecoder) yieldCompleteLines(yield func(string, error) bool) bool {
	for {
		newline := -1
		for i, b := range d.carry {
			if b == '\n' {
				newline = i
				break
			}
		}
		if newline < 0 {
			return true
		}

		line := d.carry[:newline]
		d.carry = d.carry[newline+1:]

		fragment, ok := d.parseLine(line)
		if !ok {
			continue
		}
		if !yield(fragment, nil) {
			return false
		}
	}
}

// flushTrailingLine handles a final record the server did not terminate with
// a newline before closing the stream.
func (d *RecordDecoder) flushTrailingLine(yield func(string, error) bool) {
	line := d.carry
	d.carry = nil
	if fragment, ok := d.parseLine(line); ok {
		yield(fragment, nil)
	}
}

func (d *RecordDecoder) parseLine(line []byte) (string, bool) {
	trimmed := trimSpace(line)
	if len(trimmed) == 0 {
		return "", false
	}

	var rec record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		d.onDiagnostic(trimmed, err)
		return "", false
	}

	fragment := rec.fragment()
	if fragment == "" {
		return "", false
	}
	return fragment, true
}

func trimSpace(line []byte) []byte {
	start, end := 0, len(line)
	for start < end && (line[start] == ' ' || line[start] == '\t' || line[start] == '\r') {
		start++
	}
	for end > start && (line[end-1] == ' ' || line[end-1] == '\t' || line[end-1] == '\r') {
		end--
	}
	return line[start:end]
}

// AssembleFragments decodes text-encoded fragments in order and concatenates
// the raw bytes. A fragment that fails to decode is reported and skipped,
// matching the per-line tolerance of the stream itself.
func AssembleFragments(fragments []string, onDiagnostic func(line []byte, err error)) []byte {
	if onDiagnostic == nil {
		onDiagnostic = func([]byte, error) {}
	}

	payload := []byte{}
	for _, fragment := range fragments {
		decoded, err := base64.StdEncoding.DecodeString(fragment)
		if err != nil {
			onDiagnostic([]byte(fragment), err)
			continue
		}
		payload = append(payload, decoded...)
	}
	return payload
}
