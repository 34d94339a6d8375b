package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jvparquet/internal/pipeline"
	"github.com/ajitpratap0/jvparquet/pkg/compression"
	"github.com/ajitpratap0/jvparquet/pkg/config"
	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/feed"
	"github.com/ajitpratap0/jvparquet/pkg/formats/columnar"
	jsonpool "github.com/ajitpratap0/jvparquet/pkg/json"
	"github.com/ajitpratap0/jvparquet/pkg/logger"
	"github.com/ajitpratap0/jvparquet/pkg/metrics"
	"github.com/ajitpratap0/jvparquet/pkg/observability"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
	"github.com/ajitpratap0/jvparquet/pkg/storage"
)

// stdinInput reads the feed from standard input
const stdinInput = "-"

// runOptions are the convert settings that are not part of config.Config
type runOptions struct {
	MetricsAddr string
	Trace       bool
	Timeout     time.Duration
	RunID       string
}

func newConvertCommand(v *viper.Viper) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "convert [flags] <feed.ndjson[.gz|.zst|.sz|.lz4]>...",
		Short: "Convert decoded feed files into Parquet segments",
		Long: `Convert reads decoded JV-Data records, one JSON object per line, buffers them
per record spec and writes each full batch as a Parquet segment.

Settings come from the config file, then JVPARQUET_* environment variables,
then flags. Use "-" to read from standard input.

Example:
  jvparquet convert --config jvparquet.yaml --output ./out feed-20240106.ndjson.zst`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			opts := runOptions{
				MetricsAddr: v.GetString("metrics-addr"),
				Trace:       v.GetBool("trace"),
				Timeout:     v.GetDuration("timeout"),
				RunID:       v.GetString("run-id"),
			}
			return runConvert(cmd.Context(), cfg, opts, args, cmd.OutOrStdout(), cmd.InOrStdin())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	flags.StringP("output", "o", "", "Output directory (staging directory for s3 storage)")
	flags.Int("batch-size", 1000, "Records per record spec that trigger a flush")
	flags.String("prefix", "data", "Segment file name prefix")
	flags.String("codec", columnar.CodecSnappy, "Compression codec (snappy, gzip, zstd, lz4, brotli, none)")
	flags.Bool("compression", true, "Compress segment pages")
	flags.Int("max-parallelism", 0, "Concurrent flushes at shutdown (default number of CPUs)")
	flags.String("coercion", string(columnar.CoercionStrict), "Conversion failure policy (strict, lenient)")
	flags.Bool("partition", true, "Partition segments by the record's make date")
	flags.Duration("flush-interval", 0, "Also flush batches older than this (0 disables)")
	flags.Duration("write-timeout", 0, "Bound on each segment write (0 disables)")
	flags.String("input-compression", string(compression.Auto), "Input compression (auto, none, gzip, zstd, snappy, s2, lz4); applies to stdin too")
	flags.StringSlice("skip", nil, "Record specs to drop, e.g. --skip O1,O2")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-encoding", "json", "Log encoding (json, console)")
	flags.String("storage", string(storage.KindLocal), "Segment storage (local, s3)")
	flags.String("bucket", "", "S3 bucket for s3 storage")
	flags.String("s3-prefix", "", "Key prefix inside the S3 bucket")
	flags.String("region", "", "S3 region")
	flags.String("endpoint", "", "S3 compatible endpoint URL")
	flags.String("run-id", "", "Run identifier in segment names (default start time)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run, e.g. :9090")
	flags.Bool("trace", false, "Export trace spans to stderr")
	flags.Duration("timeout", 0, "Abort the run after this long (0 disables)")

	_ = v.BindPFlags(flags)
	return cmd
}

// loadConfig reads path, if any, over the defaults and then applies every
// flag or environment variable that was explicitly set
func loadConfig(v *viper.Viper, path string) (*config.Config, error) {
	cfg := config.NewDefault()
	if path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}

	if v.IsSet("output") {
		cfg.OutputLocation = v.GetString("output")
	}
	if v.IsSet("batch-size") {
		cfg.BatchSize = v.GetInt("batch-size")
	}
	if v.IsSet("prefix") {
		cfg.FilePrefix = v.GetString("prefix")
	}
	if v.IsSet("codec") {
		cfg.CompressionCodec = v.GetString("codec")
	}
	if v.IsSet("compression") {
		cfg.CompressionEnabled = v.GetBool("compression")
	}
	if v.IsSet("max-parallelism") {
		cfg.MaxParallelism = v.GetInt("max-parallelism")
	}
	if v.IsSet("coercion") {
		cfg.CoercionPolicy = v.GetString("coercion")
	}
	if v.IsSet("partition") {
		cfg.PartitionByMakeDate = v.GetBool("partition")
	}
	if v.IsSet("flush-interval") {
		cfg.FlushInterval = v.GetDuration("flush-interval")
	}
	if v.IsSet("write-timeout") {
		cfg.WriteTimeout = v.GetDuration("write-timeout")
	}
	if v.IsSet("input-compression") {
		cfg.InputCompression = v.GetString("input-compression")
	}
	if v.IsSet("skip") {
		cfg.SkipRecordSpecs = splitList(v.GetStringSlice("skip"))
	}
	if v.IsSet("log-level") {
		cfg.Logging.Level = v.GetString("log-level")
	}
	if v.IsSet("log-encoding") {
		cfg.Logging.Encoding = v.GetString("log-encoding")
	}
	if v.IsSet("storage") {
		cfg.Storage.Kind = v.GetString("storage")
	}
	if v.IsSet("bucket") {
		cfg.Storage.Bucket = v.GetString("bucket")
	}
	if v.IsSet("s3-prefix") {
		cfg.Storage.Prefix = v.GetString("s3-prefix")
	}
	if v.IsSet("region") {
		cfg.Storage.Region = v.GetString("region")
	}
	if v.IsSet("endpoint") {
		cfg.Storage.Endpoint = v.GetString("endpoint")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both repeated values and comma separated ones
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func newSink(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Sink, error) {
	switch storage.Kind(cfg.Storage.Kind) {
	case storage.KindS3:
		return storage.NewS3Sink(ctx, cfg.Storage.S3Config, cfg.OutputLocation, log)
	default:
		return storage.NewLocalSink(cfg.OutputLocation, log)
	}
}

// runConvert converts every input in order and closes the run. Records
// buffered before a failure are still written at close.
func runConvert(ctx context.Context, cfg *config.Config, opts runOptions, inputs []string, out io.Writer, stdin io.Reader) error {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if opts.RunID == "" {
		opts.RunID = time.Now().UTC().Format("20060102T150405")
	}
	log = log.With(logger.RunID(opts.RunID))

	if opts.Trace {
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName:    "jvparquet",
			ServiceVersion: version,
			SamplingRate:   1.0,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to shut down tracing", zap.Error(err))
			}
		}()
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	if opts.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
		log.Info("serving metrics", zap.String("addr", opts.MetricsAddr))
	}

	sink, err := newSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	writer, err := columnar.NewParquetWriter(schema.Default(), sink, cfg.WriterConfig(opts.RunID), log,
		columnar.WithMetrics(collector))
	if err != nil {
		return err
	}
	buffer, err := pipeline.NewBufferManager(writer, &pipeline.BufferConfig{
		BatchSize:      cfg.BatchSize,
		MaxParallelism: cfg.MaxParallelism,
		FlushInterval:  cfg.FlushInterval,
	}, log, pipeline.WithBufferMetrics(collector))
	if err != nil {
		return err
	}
	skip, err := cfg.SkipSpecs()
	if err != nil {
		return err
	}
	alg, err := cfg.InputAlgorithm()
	if err != nil {
		return err
	}
	conv := pipeline.NewConverter(buffer, skip, log, collector)

	log.Info("starting conversion",
		zap.Strings("inputs", inputs),
		zap.String("output", sink.Location("")),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("codec", cfg.CompressionCodec))

	var runErr error
	for _, input := range inputs {
		if runErr = convertInput(ctx, conv, input, alg, stdin, log); runErr != nil {
			break
		}
	}

	// close on a context that survives cancellation so buffered records
	// still get their chance to be written
	closeErr := conv.Close(context.WithoutCancel(ctx))

	if err := jsonpool.MarshalToWriter(out, conv.Summary()); err != nil {
		log.Warn("failed to write run summary", zap.Error(err))
	}
	return errors.Combine(runErr, closeErr)
}

func convertInput(ctx context.Context, conv *pipeline.Converter, input string, alg compression.Algorithm,
	stdin io.Reader, log *zap.Logger) error {
	var (
		r   *feed.Reader
		err error
	)
	if input == stdinInput {
		r, err = feed.NewStreamReader(stdin, alg, log)
	} else {
		r, err = feed.OpenAs(input, alg, log)
	}
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to open input").
			WithDetail("input", input)
	}
	defer r.Close()

	log = log.With(logger.InputFile(input))
	if err := conv.Run(ctx, r); err != nil {
		log.Error("conversion stopped", zap.Int("line", r.Line()), zap.Error(err))
		return errors.Wrap(err, errors.TypeOf(err), "failed to convert input").
			WithDetail("input", input).
			WithDetail("line", r.Line())
	}
	log.Info("input converted", zap.Int("lines", r.Line()))
	return nil
}
