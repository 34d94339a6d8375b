// Package storage places finished segments and manifests at the output
// location. Segments are staged in a local temporary file and only become
// visible under their final key once Commit succeeds.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
)

// Kind selects a Sink implementation
type Kind string

const (
	// KindLocal writes under a directory on the local filesystem
	KindLocal Kind = "local"
	// KindS3 uploads to an S3 compatible bucket
	KindS3 Kind = "s3"
)

// Sink is the destination of committed segments. Keys are slash separated
// and relative to the sink root.
type Sink interface {
	// StagingPath returns a local path to write the object for key into
	// before Commit. The file does not exist yet.
	StagingPath(key string) (string, error)
	// Commit publishes the staged file under key and returns its location.
	// The staged file is gone after Commit returns, whether it failed or not.
	Commit(ctx context.Context, staging, key string) (string, error)
	// Put writes small objects such as manifests in one step
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Location returns where key is, or would be, published
	Location(key string) string
}

// stagingName is the hidden temporary name used for key
func stagingName(key string) string {
	dir, name := path.Split(key)
	return dir + "." + name + ".tmp"
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return errors.Newf(errors.ErrorTypeValidation, "invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return errors.Newf(errors.ErrorTypeValidation, "object key %q escapes the sink root", key)
		}
	}
	return nil
}
