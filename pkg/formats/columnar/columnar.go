// Package columnar turns batches of decoded feed records into Parquet
// segments, one column per observed field, typed through the schema
// registry.
package columnar

import (
	"context"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/parquet/compress"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

// Writer materialises batches of same-spec records as columnar segments
type Writer interface {
	// WriteBatch commits records as one new segment of spec. Either the
	// whole batch becomes visible or none of it does. records must not be
	// retained after WriteBatch returns.
	WriteBatch(ctx context.Context, spec schema.RecordSpec, records []models.ParsedRecord) error
	// Close finalises spec's output, making every committed segment
	// discoverable through its manifest.
	Close(ctx context.Context, spec schema.RecordSpec) error
	// CloseAll closes every spec written so far
	CloseAll(ctx context.Context) error
}

// CoercionPolicy decides what happens to values that do not parse as their
// column type
type CoercionPolicy string

const (
	// CoercionStrict fails the whole batch
	CoercionStrict CoercionPolicy = "strict"
	// CoercionLenient writes a null and counts the failure
	CoercionLenient CoercionPolicy = "lenient"
)

// Codec names accepted by ParseCodec
const (
	CodecSnappy = "snappy"
	CodecGzip   = "gzip"
	CodecZstd   = "zstd"
	CodecLZ4    = "lz4"
	CodecBrotli = "brotli"
	CodecNone   = "none"
)

// WriterConfig configures segment encoding and naming
type WriterConfig struct {
	FilePrefix          string
	CompressionEnabled  bool
	Compression         string
	EnableStats         bool
	CoercionPolicy      CoercionPolicy
	PartitionByMakeDate bool
	WriteTimeout        time.Duration
	// RunID, when set, is part of every segment name so repeated runs into
	// the same location never collide
	RunID          string
	RowGroupLength int64
	DataPageSize   int64
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		FilePrefix:          "data",
		CompressionEnabled:  true,
		Compression:         CodecSnappy,
		EnableStats:         true,
		CoercionPolicy:      CoercionStrict,
		PartitionByMakeDate: true,
		RowGroupLength:      64 * 1024,
		DataPageSize:        1024 * 1024, // 1MB
	}
}

// ParseCodec maps a codec name to its Parquet compression. A disabled
// configuration is always uncompressed.
func ParseCodec(name string, enabled bool) (compress.Compression, error) {
	if !enabled {
		return compress.Codecs.Uncompressed, nil
	}
	switch strings.ToLower(name) {
	case CodecSnappy, "":
		return compress.Codecs.Snappy, nil
	case CodecGzip:
		return compress.Codecs.Gzip, nil
	case CodecZstd:
		return compress.Codecs.Zstd, nil
	case CodecLZ4:
		return compress.Codecs.Lz4Raw, nil
	case CodecBrotli:
		return compress.Codecs.Brotli, nil
	case CodecNone:
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig, "unsupported compression codec %q", name)
	}
}

func codecName(name string, enabled bool) string {
	name = strings.ToLower(name)
	if !enabled || name == CodecNone {
		return CodecNone
	}
	if name == "" {
		return CodecSnappy
	}
	return name
}

// Validate checks the configuration
func (c *WriterConfig) Validate() error {
	if _, err := ParseCodec(c.Compression, c.CompressionEnabled); err != nil {
		return err
	}
	switch c.CoercionPolicy {
	case CoercionStrict, CoercionLenient:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown coercion policy %q", c.CoercionPolicy)
	}
	if c.FilePrefix == "" || strings.ContainsAny(c.FilePrefix, `/\`) {
		return errors.Newf(errors.ErrorTypeConfig, "invalid file prefix %q", c.FilePrefix)
	}
	if c.WriteTimeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "write timeout must not be negative")
	}
	return nil
}
