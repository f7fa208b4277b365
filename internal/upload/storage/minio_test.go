package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (f *fakeObjects) put(_ context.Context, key string, r io.Reader, ct string) error {
	if f.err != nil {
		return f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = ct
	return nil
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func TestMinioSink_Streams(t *testing.T) {
	objects := newFakeObjects()
	sink := newMinioSink(objects.put)

	w, err := sink.Open(context.Background(), "sid/data.bin")
	require.NoError(t, err)

	var want bytes.Buffer
	for i := 0; i < 64; i++ {
		chunk := bytes.Repeat([]byte{byte(i)}, 1024)
		want.Write(chunk)
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.Equal(t, want.Bytes(), objects.objects["sid/data.bin"])
	assert.Equal(t, defaultContentType, objects.types["sid/data.bin"])
}

func TestMinioSink_PutFailure(t *testing.T) {
	objects := newFakeObjects()
	objects.err = errors.New("bucket gone")
	sink := newMinioSink(objects.put)

	w, err := sink.Open(context.Background(), "a.txt")
	require.NoError(t, err)

	_, werr := w.Write([]byte("hello"))
	assert.Error(t, werr)
	assert.EqualError(t, w.Close(), "bucket gone")
}

func TestMinioSink_CancelAborts(t *testing.T) {
	objects := newFakeObjects()
	sink := newMinioSink(objects.put)

	ctx, cancel := context.WithCancelCause(context.Background())
	w, err := sink.Open(ctx, "a.txt")
	require.NoError(t, err)

	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	cause := errors.New("source failed")
	cancel(cause)

	assert.ErrorIs(t, w.Close(), cause)
	_, stored := objects.objects["a.txt"]
	assert.False(t, stored)
}

func TestMinioSink_OpenCancelled(t *testing.T) {
	sink := newMinioSink(newFakeObjects().put)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sink.Open(ctx, "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMinioSink_RequiresBucket(t *testing.T) {
	_, err := NewMinioSink(context.Background(), MinioConfig{Endpoint: "127.0.0.1:9000"})
	assert.Error(t, err)
}
