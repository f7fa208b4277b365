package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"syscall"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

var ErrNotWritable = errors.New("storage location not writable")

// BlobSink writes files into a gocloud bucket.
type BlobSink struct {
	bucket *blob.Bucket
}

var _ Sink = (*BlobSink)(nil)

func NewBlobSink(bucket *blob.Bucket) *BlobSink {
	return &BlobSink{bucket: bucket}
}

// OpenBlobSink opens the bucket behind rawURL. s3:// buckets go through the
// AWS SDK client when an endpoint is configured, so S3 compatible servers
// can be used.
func OpenBlobSink(ctx context.Context, rawURL string, s3cfg S3Config) (*BlobSink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse storage url: %w", err)
	}

	var bucket *blob.Bucket
	if u.Scheme == "s3" && s3cfg.Endpoint != "" {
		bucket, err = OpenS3Bucket(ctx, u.Host, s3cfg)
	} else {
		bucket, err = blob.OpenBucket(ctx, rawURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}

	return NewBlobSink(bucket), nil
}

func (s *BlobSink) Open(ctx context.Context, key string) (io.WriteCloser, error) {
	w, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return nil, blobErr(err, key)
	}
	return w, nil
}

func (s *BlobSink) Close() error {
	return s.bucket.Close()
}

func blobErr(err error, key string) error {
	if errors.Is(err, syscall.EISDIR) || errors.Is(err, syscall.ENOTDIR) || errors.Is(err, syscall.EROFS) {
		return fmt.Errorf("%w: %q: %w", ErrNotWritable, key, err)
	}

	switch gcerrors.Code(err) {
	case gcerrors.PermissionDenied, gcerrors.NotFound, gcerrors.FailedPrecondition:
		return fmt.Errorf("%w: %q: %w", ErrNotWritable, key, err)
	default:
		return fmt.Errorf("open %q: %w", key, err)
	}
}
