package minio

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
)

// fakeAPI is an in-memory MinIOAPI.
type fakeAPI struct {
	mu       sync.Mutex
	buckets  map[string]map[string][]byte
	types    map[string]string
	statErr  error
	putCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{buckets: map[string]map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeAPI) BucketExists(_ context.Context, bucket string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.buckets[bucket]
	return ok, nil
}

func (f *fakeAPI) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket] = map[string][]byte{}
	return nil
}

func (f *fakeAPI) StatObject(_ context.Context, bucket, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return minio.ObjectInfo{}, f.statErr
	}
	objs, ok := f.buckets[bucket]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404}
	}
	data, ok := objs[key]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	}
	return minio.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeAPI) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	f.buckets[bucket][key] = data
	f.types[bucket+"/"+key] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(data))}, nil
}

func (f *fakeAPI) OpenObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(f.buckets[bucket][key])), nil
}

type ClientTestSuite struct {
	suite.Suite
	log logging.Logger
}

func (s *ClientTestSuite) SetupTest() {
	s.log = logging.NewNopLogger()
}

func (s *ClientTestSuite) TestApplyDefaults() {
	cfg := &MinIOConfig{}
	applyDefaults(cfg)
	s.Equal("us-east-1", cfg.Region)
}

func (s *ClientTestSuite) TestNewMinIOClient_NoNetwork() {
	c, err := NewMinIOClient(&MinIOConfig{Endpoint: "localhost:9000"}, s.log)
	s.Require().NoError(err)
	api, err := c.API()
	s.NoError(err)
	s.NotNil(api)
}

func (s *ClientTestSuite) TestNewMinIOClient_InvalidEndpoint() {
	_, err := NewMinIOClient(&MinIOConfig{Endpoint: "http://bad endpoint"}, s.log)
	s.Error(err)
}

func (s *ClientTestSuite) TestClose() {
	c := newMinIOClientWithAPI(newFakeAPI(), &MinIOConfig{}, s.log)
	s.NoError(c.Close())
	_, err := c.API()
	s.Error(err)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/gzip", contentType("clf.json.gz"))
	assert.Equal(t, "application/json", contentType("clf.json"))
	assert.Equal(t, "application/octet-stream", contentType("clf.bin"))
	require.NotEmpty(t, contentType(""))
}
