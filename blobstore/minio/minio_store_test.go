package minio

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/hupe1980/chunkstream/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-chunkstream"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("hello minio world")
	_, err = client.PutObject(ctx, bucket, "test-prefix/segment.log", bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	require.NoError(t, err)
	defer func() {
		_ = client.RemoveObject(ctx, bucket, "test-prefix/segment.log", minio.RemoveObjectOptions{})
	}()

	store := NewStore(client, bucket, "test-prefix/")

	blob, err := store.Open(ctx, "segment.log")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	all, err := blobstore.ReadAll(ctx, blob)
	require.NoError(t, err)
	require.Equal(t, data, all)

	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())

	// Overwriting the object invalidates the pinned version.
	_, err = client.PutObject(ctx, bucket, "test-prefix/segment.log", bytes.NewReader([]byte("replaced")), 8, minio.PutObjectOptions{})
	require.NoError(t, err)
	_, err = blob.ReadRange(ctx, 0, 4)
	assert.ErrorIs(t, err, blobstore.ErrBlobChanged)
	require.NoError(t, blob.Close())

	_, err = store.Open(ctx, "missing.log")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
