package storage

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

func TestBlobSink_Mem(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	sink := NewBlobSink(bucket)
	defer sink.Close()

	w, err := sink.Open(ctx, "uploads/hello.txt")
	require.NoError(t, err)

	for _, chunk := range []string{"hello", " ", "world"} {
		n, err := w.Write([]byte(chunk))
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}
	require.NoError(t, w.Close())

	data, err := bucket.ReadAll(ctx, "uploads/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	attrs, err := bucket.Attributes(ctx, "uploads/hello.txt")
	require.NoError(t, err)
	assert.Contains(t, attrs.ContentType, "text/plain")
}

func TestBlobSink_CancelDiscards(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	sink := NewBlobSink(bucket)
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	w, err := sink.Open(ctx, "partial.bin")
	require.NoError(t, err)

	_, err = w.Write([]byte("half of it"))
	require.NoError(t, err)

	cancel()
	assert.Error(t, w.Close())

	exists, err := bucket.Exists(context.Background(), "partial.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBlobSink_File(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	sink, err := New(ctx, Config{Driver: DriverBlob, URL: "file://" + dir})
	require.NoError(t, err)
	defer sink.Close()

	w, err := sink.Open(ctx, "session/report.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "session", "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestBlobSink_FileUnwritableRoot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// a regular file where the storage root directory should be
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocked"), []byte("x"), 0o600))

	sink, err := OpenBlobSink(ctx, "file://"+dir, S3Config{})
	require.NoError(t, err)
	defer sink.Close()

	_, err = sink.Open(ctx, "blocked/a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotWritable)
	assert.ErrorIs(t, err, syscall.ENOTDIR)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "ftp"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpenBlobSink_BadURL(t *testing.T) {
	_, err := OpenBlobSink(context.Background(), "nope://bucket", S3Config{})
	assert.Error(t, err)
}

func TestOpenS3Bucket(t *testing.T) {
	ctx := context.Background()

	t.Run("endpoint", func(t *testing.T) {
		t.Setenv("AWS_ACCESS_KEY_ID", "test")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

		bucket, err := OpenS3Bucket(ctx, "uploads", S3Config{Endpoint: "http://127.0.0.1:9000", Region: "us-east-1"})
		require.NoError(t, err)
		assert.NoError(t, bucket.Close())
	})

	t.Run("bad scheme", func(t *testing.T) {
		_, err := OpenS3Bucket(ctx, "uploads", S3Config{Endpoint: "ftp://127.0.0.1"})
		assert.Error(t, err)
	})
}

func TestContentType(t *testing.T) {
	assert.Equal(t, defaultContentType, contentType("file.unknownext"))
	assert.Equal(t, defaultContentType, contentType("noext"))
	assert.Contains(t, contentType("a.json"), "application/json")
}
