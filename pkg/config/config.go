package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/ajitpratap0/jvparquet/pkg/compression"
	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/formats/columnar"
	"github.com/ajitpratap0/jvparquet/pkg/logger"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
	"github.com/ajitpratap0/jvparquet/pkg/storage"
)

// Config is the configuration of one conversion run
type Config struct {
	// BatchSize is the record count per record spec that triggers a flush
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size"`
	// OutputLocation is the output directory, or the staging directory
	// when storage.kind is s3
	OutputLocation string `yaml:"output_location" json:"output_location" mapstructure:"output_location"`
	// FilePrefix starts every segment name
	FilePrefix string `yaml:"file_prefix" json:"file_prefix" mapstructure:"file_prefix"`

	CompressionEnabled bool   `yaml:"compression_enabled" json:"compression_enabled" mapstructure:"compression_enabled"`
	CompressionCodec   string `yaml:"compression_codec" json:"compression_codec" mapstructure:"compression_codec"`
	// MaxParallelism bounds concurrent flushes at shutdown
	MaxParallelism   int  `yaml:"max_parallelism" json:"max_parallelism" mapstructure:"max_parallelism"`
	EnableStatistics bool `yaml:"enable_statistics" json:"enable_statistics" mapstructure:"enable_statistics"`

	// CoercionPolicy is strict or lenient
	CoercionPolicy      string `yaml:"coercion_policy" json:"coercion_policy" mapstructure:"coercion_policy"`
	PartitionByMakeDate bool   `yaml:"partition_by_make_date" json:"partition_by_make_date" mapstructure:"partition_by_make_date"`

	// FlushInterval, when positive, also flushes batches older than this
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval" mapstructure:"flush_interval"`
	// WriteTimeout bounds each segment write; zero means no limit
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout"`

	// InputCompression is auto (by file extension) or the algorithm every
	// input, standard input included, is decompressed with
	InputCompression string `yaml:"input_compression" json:"input_compression" mapstructure:"input_compression"`

	// SkipRecordSpecs lists record specs dropped before buffering
	SkipRecordSpecs []string `yaml:"skip_record_specs" json:"skip_record_specs" mapstructure:"skip_record_specs"`

	Logging logger.Config `yaml:"logging" json:"logging" mapstructure:"logging"`
	Storage StorageConfig `yaml:"storage" json:"storage" mapstructure:"storage"`
}

// StorageConfig selects where committed segments go
type StorageConfig struct {
	Kind             string `yaml:"kind" json:"kind" mapstructure:"kind"`
	storage.S3Config `yaml:",inline" json:",inline" mapstructure:",squash"`
}

// NewDefault returns a configuration with every default applied. The
// output location is left empty and must be set.
func NewDefault() *Config {
	return &Config{
		BatchSize:           1000,
		FilePrefix:          "data",
		CompressionEnabled:  true,
		CompressionCodec:    columnar.CodecSnappy,
		MaxParallelism:      runtime.NumCPU(),
		EnableStatistics:    true,
		CoercionPolicy:      string(columnar.CoercionStrict),
		PartitionByMakeDate: true,
		InputCompression:    string(compression.Auto),
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Storage: StorageConfig{Kind: string(storage.KindLocal)},
	}
}

// Validate checks the configuration and returns the first problem found
// as a config error
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "batch_size must be positive, got %d", c.BatchSize)
	}
	if strings.TrimSpace(c.OutputLocation) == "" {
		return errors.New(errors.ErrorTypeConfig, "output_location is required")
	}
	if c.MaxParallelism <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "max_parallelism must be positive, got %d", c.MaxParallelism)
	}
	if c.FlushInterval < 0 {
		return errors.New(errors.ErrorTypeConfig, "flush_interval must not be negative")
	}
	if _, err := c.SkipSpecs(); err != nil {
		return err
	}
	if _, err := c.InputAlgorithm(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}

	switch storage.Kind(c.Storage.Kind) {
	case storage.KindLocal, "":
	case storage.KindS3:
		if c.Storage.Bucket == "" {
			return errors.New(errors.ErrorTypeConfig, "storage.bucket is required for s3 storage")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown storage kind %q", c.Storage.Kind)
	}

	return c.WriterConfig("").Validate()
}

// SkipSpecs parses SkipRecordSpecs
func (c *Config) SkipSpecs() ([]schema.RecordSpec, error) {
	specs := make([]schema.RecordSpec, 0, len(c.SkipRecordSpecs))
	for _, s := range c.SkipRecordSpecs {
		spec, err := schema.ParseRecordSpec(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid skip_record_specs entry")
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// InputAlgorithm parses InputCompression
func (c *Config) InputAlgorithm() (compression.Algorithm, error) {
	alg, err := compression.ParseAlgorithm(c.InputCompression)
	if err != nil {
		return compression.Auto, errors.Wrap(err, errors.ErrorTypeConfig, "invalid input_compression")
	}
	return alg, nil
}

// WriterConfig derives the columnar writer settings. runID, when set,
// becomes part of every segment name.
func (c *Config) WriterConfig(runID string) *columnar.WriterConfig {
	wc := columnar.DefaultWriterConfig()
	wc.FilePrefix = c.FilePrefix
	wc.CompressionEnabled = c.CompressionEnabled
	wc.Compression = c.CompressionCodec
	wc.EnableStats = c.EnableStatistics
	wc.CoercionPolicy = columnar.CoercionPolicy(strings.ToLower(c.CoercionPolicy))
	wc.PartitionByMakeDate = c.PartitionByMakeDate
	wc.WriteTimeout = c.WriteTimeout
	wc.RunID = runID
	return wc
}
