// Package feed reads decoded JV-Data records from newline-delimited JSON.
// Each line carries one record:
//
//	{"record_spec":"HN","fields":{"HansyokuNum":"0001234567","Bamei":"ディープ　　","BameiEng":null}}
//
// Field values are the raw fixed-width text. A null value, or a field left
// out of the object, is read as absent.
package feed

import (
	"bufio"
	"bytes"
	"io"

	"go.uber.org/zap"

	"github.com/ajitpratap0/jvparquet/pkg/compression"
	"github.com/ajitpratap0/jvparquet/pkg/errors"
	jsonpool "github.com/ajitpratap0/jvparquet/pkg/json"
	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/pool"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

const (
	initialLineBuffer = 64 << 10
	// MaxLineSize is the longest line the reader accepts
	MaxLineSize = 16 << 20
)

type line struct {
	RecordSpec string             `json:"record_spec"`
	Fields     map[string]*string `json:"fields"`
}

// Reader decodes one record per line
type Reader struct {
	scanner *bufio.Scanner
	buf     []byte
	line    int
	closer  io.Closer
	logger  *zap.Logger
}

// NewReader reads records from r
func NewReader(r io.Reader, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	buf := pool.Buffers.Get(initialLineBuffer)
	sc := bufio.NewScanner(r)
	sc.Buffer(buf, MaxLineSize)
	return &Reader{
		scanner: sc,
		buf:     buf,
		logger:  logger.With(zap.String("component", "feed_reader")),
	}
}

// NewStreamReader reads records from r after decompressing it with alg.
// Under compression.Auto the stream is read as is. Closing the Reader does
// not close r.
func NewStreamReader(r io.Reader, alg compression.Algorithm, logger *zap.Logger) (*Reader, error) {
	rc, err := compression.NewReader(r, alg)
	if err != nil {
		return nil, err
	}
	fr := NewReader(rc, logger)
	fr.closer = rc
	return fr, nil
}

// Open reads records from the file at path, decompressing it according to
// its extension
func Open(path string, logger *zap.Logger) (*Reader, error) {
	return OpenAs(path, compression.Auto, logger)
}

// OpenAs reads records from the file at path, decompressing it with alg
func OpenAs(path string, alg compression.Algorithm, logger *zap.Logger) (*Reader, error) {
	rc, err := compression.OpenAs(path, alg)
	if err != nil {
		return nil, err
	}
	r := NewReader(rc, logger)
	r.closer = rc
	r.logger = r.logger.With(zap.String("input_file", path))
	return r, nil
}

// Next returns the next record, or io.EOF after the last one. Blank lines
// are skipped.
func (r *Reader) Next() (models.ParsedRecord, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		return r.decode(raw)
	}
	if err := r.scanner.Err(); err != nil {
		return models.ParsedRecord{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to read feed").
			WithDetail("line", r.line+1)
	}
	return models.ParsedRecord{}, io.EOF
}

func (r *Reader) decode(raw []byte) (models.ParsedRecord, error) {
	var l line
	if err := jsonpool.Unmarshal(raw, &l); err != nil {
		return models.ParsedRecord{}, errors.Wrap(err, errors.ErrorTypeValidation, "malformed feed line").
			WithDetail("line", r.line)
	}
	spec, err := schema.ParseRecordSpec(l.RecordSpec)
	if err != nil {
		return models.ParsedRecord{}, errors.Wrap(err, errors.ErrorTypeValidation, "malformed feed line").
			WithDetail("line", r.line)
	}

	fields := make(models.FieldMap, len(l.Fields))
	for name, v := range l.Fields {
		if v == nil {
			fields[name] = models.Missing()
			continue
		}
		fields[name] = models.Raw(*v)
	}
	return models.NewParsedRecord(spec, fields), nil
}

// Line returns the number of the last line read
func (r *Reader) Line() int {
	return r.line
}

// Close releases the line buffer and closes the underlying file, if any
func (r *Reader) Close() error {
	if r.buf != nil {
		pool.Buffers.Put(r.buf)
		r.buf = nil
	}
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}
