package storage

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
)

// LocalSink publishes objects below a root directory. Commit is an atomic
// rename inside the destination directory.
type LocalSink struct {
	root   string
	logger *zap.Logger
}

// NewLocalSink creates a sink rooted at root, creating it if needed
func NewLocalSink(root string, logger *zap.Logger) (*LocalSink, error) {
	if root == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "output location is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output location").
			WithDetail("path", root)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalSink{
		root:   root,
		logger: logger.With(zap.String("component", "local_sink")),
	}, nil
}

// StagingPath returns a hidden file next to the final location of key
func (s *LocalSink) StagingPath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	staging := filepath.Join(s.root, filepath.FromSlash(stagingName(key)))
	if err := os.MkdirAll(filepath.Dir(staging), 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create segment directory").
			WithDetail("path", filepath.Dir(staging))
	}
	return staging, nil
}

// Commit renames staging to key
func (s *LocalSink) Commit(ctx context.Context, staging, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		_ = os.Remove(staging)
		return "", errors.Wrap(err, errors.ErrorTypeTimeout, "commit cancelled")
	}
	if err := validateKey(key); err != nil {
		_ = os.Remove(staging)
		return "", err
	}

	final := s.Location(key)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		_ = os.Remove(staging)
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create segment directory").
			WithDetail("path", filepath.Dir(final))
	}
	if err := os.Rename(staging, final); err != nil {
		_ = os.Remove(staging)
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to commit segment").
			WithDetail("path", final)
	}

	s.logger.Debug("object committed", zap.String("path", final))
	return final, nil
}

// Put writes data to key through a staged file
func (s *LocalSink) Put(ctx context.Context, key string, data []byte) (string, error) {
	staging, err := s.StagingPath(key)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(staging, data, 0o644); err != nil {
		_ = os.Remove(staging)
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to write object").
			WithDetail("path", staging)
	}
	return s.Commit(ctx, staging, key)
}

// Location returns the filesystem path of key
func (s *LocalSink) Location(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
