package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultPartSize bounds the memory a minio upload buffers per file.
const DefaultPartSize = 16 << 20

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
	PartSize  uint64
}

type putFunc func(ctx context.Context, key string, r io.Reader, contentType string) error

// MinioSink streams files into a minio bucket. The object size is unknown
// up front, so the client uploads it in parts of PartSize bytes.
type MinioSink struct {
	put putFunc
}

var _ Sink = (*MinioSink)(nil)

// NewMinioSink connects to the server and creates the bucket when it does
// not exist yet.
func NewMinioSink(ctx context.Context, cfg MinioConfig) (*MinioSink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("minio make bucket %q: %w", cfg.Bucket, err)
		}
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}

	return newMinioSink(func(ctx context.Context, key string, r io.Reader, ct string) error {
		_, err := client.PutObject(ctx, cfg.Bucket, key, r, -1, minio.PutObjectOptions{
			ContentType: ct,
			PartSize:    partSize,
		})
		return err
	}), nil
}

func newMinioSink(put putFunc) *MinioSink {
	return &MinioSink{put: put}
}

func (s *MinioSink) Open(ctx context.Context, key string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &minioWriter{ctx: ctx, pw: pw, done: make(chan error, 1)}

	go func() {
		err := s.put(ctx, key, pr, contentType(key))
		// writes after the upload ended must fail instead of blocking
		pr.CloseWithError(errOrClosed(err))
		w.done <- err
	}()

	return w, nil
}

func (s *MinioSink) Close() error {
	return nil
}

type minioWriter struct {
	ctx  context.Context
	pw   *io.PipeWriter
	done chan error
}

func (w *minioWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close ends the object. A cancelled context aborts the upload instead of
// committing what was written so far.
func (w *minioWriter) Close() error {
	if err := context.Cause(w.ctx); err != nil {
		w.pw.CloseWithError(err)
		if perr := <-w.done; perr != nil {
			return perr
		}
		return err
	}

	w.pw.Close()
	return <-w.done
}

func errOrClosed(err error) error {
	if err != nil {
		return err
	}
	return io.ErrClosedPipe
}
