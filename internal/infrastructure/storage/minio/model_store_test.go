package minio

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molscore/pkg/errors"
)

func newTestStore(t *testing.T) (*ModelStore, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	return NewModelStore(newMinIOClientWithAPI(api, &MinIOConfig{Region: "us-east-1"}, nil), nil), api
}

func TestModelStore_PutThenGet(t *testing.T) {
	store, api := newTestStore(t)
	ctx := context.Background()
	body := []byte(`{"kind":"logistic"}`)

	require.NoError(t, store.PutObject(ctx, "models", "clf.json", bytes.NewReader(body), int64(len(body))))
	assert.Equal(t, "application/json", api.types["models/clf.json"])

	rc, err := store.GetObject(ctx, "models", "clf.json")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestModelStore_PutReusesBucket(t *testing.T) {
	store, api := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutObject(ctx, "models", "a.json", bytes.NewReader([]byte("{}")), 2))
	require.NoError(t, store.PutObject(ctx, "models", "b.json", bytes.NewReader([]byte("{}")), 2))
	assert.Equal(t, 2, api.putCalls)
	assert.Len(t, api.buckets["models"], 2)
}

func TestModelStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetObject(context.Background(), "nope", "clf.json")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, store.PutObject(context.Background(), "models", "a.json", bytes.NewReader(nil), 0))
	_, err = store.GetObject(context.Background(), "models", "missing.json")
	assert.True(t, errors.IsNotFound(err))
}

func TestModelStore_GetBackendFailure(t *testing.T) {
	store, api := newTestStore(t)
	api.statErr = minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}

	_, err := store.GetObject(context.Background(), "models", "clf.json")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
	assert.Contains(t, err.Error(), "models/clf.json")
}

func TestModelStore_Closed(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.client.Close())
	_, err := store.GetObject(context.Background(), "models", "clf.json")
	assert.Error(t, err)
}
