package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/finevents/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryBackend) EnsureBucket(context.Context) error { return nil }

func (m *memoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryBackend) Bucket() string { return "receipts" }

func TestStorageDelegates(t *testing.T) {
	backend := newMemoryBackend()
	s := NewStorage(backend)
	ctx := context.Background()

	require.NoError(t, s.EnsureBucket(ctx))
	require.NoError(t, s.Put(ctx, "receipts/1/a.pdf", strings.NewReader("%PDF"), 4, "application/pdf"))
	assert.Equal(t, "application/pdf", backend.types["receipts/1/a.pdf"])

	rc, err := s.Get(ctx, "receipts/1/a.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	require.NoError(t, s.Delete(ctx, "receipts/1/a.pdf"))
	_, err = s.Get(ctx, "receipts/1/a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, "receipts", s.Bucket())
}

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "s3-glacier"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "minio", Minio: config.MinioConfig{Endpoint: "localhost:9000"}})
	assert.ErrorContains(t, err, "access key")

	_, err = Open(context.Background(), config.StorageConfig{Backend: "gcs"})
	assert.ErrorContains(t, err, "bucket is required")
}
