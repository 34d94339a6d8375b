// Package logger builds the zap loggers used across jvparquet
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
)

// Field keys shared by every component's log lines
const (
	RunIDKey      = "run_id"
	RecordSpecKey = "record_spec"
	InputFileKey  = "input_file"
	ComponentKey  = "component"
)

// Config represents logger configuration
type Config struct {
	Level       string   `yaml:"level" json:"level" mapstructure:"level"`
	Development bool     `yaml:"development" json:"development" mapstructure:"development"`
	Encoding    string   `yaml:"encoding" json:"encoding" mapstructure:"encoding"` // json or console
	OutputPaths []string `yaml:"output_paths" json:"output_paths" mapstructure:"output_paths"`
}

// Validate checks the level and encoding; empty values take the defaults
func (c Config) Validate() error {
	if c.Level != "" {
		if _, err := zapcore.ParseLevel(c.Level); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid log level").
				WithDetail("level", c.Level)
		}
	}
	switch strings.ToLower(c.Encoding) {
	case "", "json", "console":
		return nil
	default:
		return errors.Newf(errors.ErrorTypeConfig, "invalid log encoding %q", c.Encoding)
	}
}

// New creates a zap logger from cfg. Output goes to stderr unless
// OutputPaths says otherwise, so stdout stays free for command output.
func New(cfg Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		level, _ = zapcore.ParseLevel(cfg.Level)
	}
	encoding := strings.ToLower(cfg.Encoding)
	if encoding == "" {
		encoding = "json"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to build logger")
	}
	if cfg.Development {
		log = log.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return log, nil
}

// RunID tags log lines with the conversion run
func RunID(id string) zap.Field {
	return zap.String(RunIDKey, id)
}

// InputFile tags log lines with the feed file being read
func InputFile(path string) zap.Field {
	return zap.String(InputFileKey, path)
}
