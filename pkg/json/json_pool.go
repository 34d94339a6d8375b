// Package json wraps goccy/go-json with pooled buffers and a line oriented
// stream encoder for feed lines, manifests and CLI output.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// maxPooledBuffer caps the buffers kept for reuse
const maxPooledBuffer = 1024 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool. Very large buffers are dropped.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// Marshal is json.Marshal backed by goccy/go-json
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is json.Unmarshal backed by goccy/go-json
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is json.MarshalIndent backed by goccy/go-json
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// newEncoder returns an encoder that leaves <, > and & alone; feed text
// never goes near HTML.
func newEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// MarshalToWriter encodes v into a pooled buffer and writes it to w in one
// call, followed by a newline. Nothing is written when encoding fails.
func MarshalToWriter(w io.Writer, v interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := newEncoder(buf).Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// StreamingEncoder writes a sequence of values either as one JSON array or
// as newline delimited JSON
type StreamingEncoder struct {
	writer  io.Writer
	encoder *gojson.Encoder
	buf     *bytes.Buffer
	isArray bool
	count   int
}

// NewStreamingEncoder creates an encoder writing to w
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	buf := GetBuffer()
	return &StreamingEncoder{
		writer:  w,
		encoder: newEncoder(buf),
		buf:     buf,
		isArray: isArray,
	}
}

// Encode writes one value
func (se *StreamingEncoder) Encode(v interface{}) error {
	se.buf.Reset()
	if se.isArray {
		if se.count == 0 {
			se.buf.WriteByte('[')
		} else {
			se.buf.WriteByte(',')
		}
	}
	if err := se.encoder.Encode(v); err != nil {
		return err
	}
	out := se.buf.Bytes()
	// arrays carry their own separators
	if se.isArray && len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	if _, err := se.writer.Write(out); err != nil {
		return err
	}
	se.count++
	return nil
}

// Close terminates an array and releases the buffer. An array with no
// values is written as [].
func (se *StreamingEncoder) Close() error {
	defer func() {
		PutBuffer(se.buf)
		se.buf = nil
	}()
	if !se.isArray {
		return nil
	}
	tail := "]\n"
	if se.count == 0 {
		tail = "[]\n"
	}
	_, err := io.WriteString(se.writer, tail)
	return err
}
