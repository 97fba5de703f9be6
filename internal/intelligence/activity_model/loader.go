package activity_model

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

// DefaultMaxArtifactBytes bounds the size of a classifier artifact.
const DefaultMaxArtifactBytes int64 = 512 << 20

const objectScheme = "s3://"

// ObjectStore reads artifacts from object storage.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Loader resolves a classifier location and decodes the artifact found
// there. Locations are local paths (optionally prefixed with "file://") or
// "s3://bucket/key" when an ObjectStore is configured.
type Loader struct {
	store    ObjectStore
	logger   logging.Logger
	maxBytes int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithObjectStore enables s3:// locations.
func WithObjectStore(store ObjectStore) LoaderOption {
	return func(l *Loader) { l.store = store }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxBytes overrides DefaultMaxArtifactBytes.
func WithMaxBytes(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{logger: logging.NewNopLogger(), maxBytes: DefaultMaxArtifactBytes}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and decodes the classifier at location.
func (l *Loader) Load(ctx context.Context, location string) (Classifier, error) {
	start := time.Now()
	rc, err := l.open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, l.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to read classifier").WithDetail(location)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, errors.New(errors.ErrCodeModelDecodeFailed, "classifier artifact too large").
			WithDetail(fmt.Sprintf("%s exceeds %d bytes", location, l.maxBytes))
	}

	clf, err := DecodeLimit(data, l.maxBytes)
	if err != nil {
		return nil, err
	}
	l.logger.Info("classifier loaded",
		logging.String("location", location),
		logging.Int("n_features", clf.NumFeatures()),
		logging.Int("bytes", len(data)),
		logging.Duration("duration", time.Since(start)),
	)
	return clf, nil
}

func (l *Loader) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, objectScheme) {
		bucket, key, err := ParseObjectLocation(location)
		if err != nil {
			return nil, err
		}
		if l.store == nil {
			return nil, errors.New(errors.ErrCodeServiceUnavailable, "object storage is not configured").WithDetail(location)
		}
		rc, err := l.store.GetObject(ctx, bucket, key)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to fetch classifier").WithDetail(location)
		}
		return rc, nil
	}

	path := strings.TrimPrefix(location, "file://")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeNotFound, "classifier not found").WithDetail(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to open classifier").WithDetail(path)
	}
	return f, nil
}

// ParseObjectLocation splits "s3://bucket/key" into bucket and key.
func ParseObjectLocation(location string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(location, objectScheme)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.InvalidParam("object location must be s3://bucket/key").WithDetail(location)
	}
	return parts[0], parts[1], nil
}
