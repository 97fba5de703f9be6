package minio

import (
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

// ModelStore reads and publishes classifier artifacts.
type ModelStore struct {
	client *MinIOClient
	logger logging.Logger
}

// NewModelStore returns a store backed by client.
func NewModelStore(client *MinIOClient, log logging.Logger) *ModelStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ModelStore{client: client, logger: log}
}

// GetObject opens bucket/key. A missing bucket or object is a not-found
// error.
func (s *ModelStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	api, err := s.client.API()
	if err != nil {
		return nil, err
	}

	info, err := api.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, translateError(err, bucket, key)
	}
	rc, err := api.OpenObject(ctx, bucket, key)
	if err != nil {
		return nil, translateError(err, bucket, key)
	}

	s.logger.Debug("opened model artifact",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size),
	)
	return rc, nil
}

// PutObject uploads an artifact, creating the bucket when it does not exist.
func (s *ModelStore) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	api, err := s.client.API()
	if err != nil {
		return err
	}

	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return translateError(err, bucket, key)
	}
	if !exists {
		if err := api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.client.config.Region}); err != nil {
			return translateError(err, bucket, key)
		}
		s.logger.Info("created bucket", logging.String("bucket", bucket))
	}

	info, err := api.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType(key)})
	if err != nil {
		return translateError(err, bucket, key)
	}
	s.logger.Info("uploaded model artifact",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size),
	)
	return nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func translateError(err error, bucket, key string) error {
	location := bucket + "/" + key
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.Wrap(err, errors.ErrCodeNotFound, "object not found").WithDetail(location)
	}
	return errors.Wrap(err, errors.ErrCodeExternalService, "object storage request failed").WithDetail(location)
}
