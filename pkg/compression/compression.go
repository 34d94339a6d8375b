// Package compression opens compressed feed files. By default the codec is
// chosen from the file extension, so a converter can read feed.ndjson,
// feed.ndjson.zst and feed.ndjson.lz4 alike; an explicit algorithm
// overrides the extension and is the only way to decompress a stream.
//
// # Supported codecs
//
//   - gzip (.gz)
//   - zstd (.zst, .zstd)
//   - snappy framed stream (.sz, .snappy)
//   - s2 (.s2)
//   - lz4 frame (.lz4)
//
// # Basic Usage
//
//	r, err := compression.Open("feed.ndjson.zst")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	zr, err := compression.NewReader(os.Stdin, compression.Gzip)
package compression

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
)

// Algorithm names a stream compression format
type Algorithm string

const (
	// Auto picks the algorithm from the file extension; a stream read
	// under Auto is taken as uncompressed
	Auto Algorithm = "auto"
	// None reads the file as is
	None Algorithm = "none"
	// Gzip is a gzip stream
	Gzip Algorithm = "gzip"
	// Zstd is a zstandard stream
	Zstd Algorithm = "zstd"
	// Snappy is the framed snappy stream format
	Snappy Algorithm = "snappy"
	// S2 is klauspost's snappy extension; its reader also accepts snappy
	S2 Algorithm = "s2"
	// LZ4 is an lz4 frame
	LZ4 Algorithm = "lz4"
)

var extensions = map[string]Algorithm{
	".gz":     Gzip,
	".gzip":   Gzip,
	".zst":    Zstd,
	".zstd":   Zstd,
	".sz":     Snappy,
	".snappy": Snappy,
	".s2":     S2,
	".lz4":    LZ4,
}

// DetectFromPath returns the algorithm implied by path's extension, or None
func DetectFromPath(path string) Algorithm {
	if alg, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return alg
	}
	return None
}

// ParseAlgorithm maps a configured name to an Algorithm. An empty name
// means Auto.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch alg := Algorithm(strings.ToLower(strings.TrimSpace(name))); alg {
	case Auto, None, Gzip, Zstd, Snappy, S2, LZ4:
		return alg, nil
	case "":
		return Auto, nil
	default:
		return None, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", name)
	}
}

// NewReader wraps r with a decompressor for alg. Closing the result does
// not close r.
func NewReader(r io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case Auto, None, "":
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid gzip stream")
		}
		return zr, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid zstd stream")
		}
		return dec.IOReadCloser(), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", alg)
	}
}

// Open opens path and decompresses it according to its extension
func Open(path string) (io.ReadCloser, error) {
	return OpenAs(path, Auto)
}

// OpenAs opens path and decompresses it with alg, or by extension when alg
// is Auto
func OpenAs(path string, alg Algorithm) (io.ReadCloser, error) {
	if alg == Auto || alg == "" {
		alg = DetectFromPath(path)
	}
	f, err := os.Open(path) //nolint:gosec // feed path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input").
			WithDetail("path", path)
	}
	r, err := NewReader(f, alg)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileReader{ReadCloser: r, file: f}, nil
}

// fileReader closes the decompressor and then the file under it
type fileReader struct {
	io.ReadCloser
	file *os.File
}

func (r *fileReader) Close() error {
	return errors.Combine(r.ReadCloser.Close(), r.file.Close())
}
