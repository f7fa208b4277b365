package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
)

const (
	DriverBlob  = "blob"
	DriverMinio = "minio"

	defaultContentType = "application/octet-stream"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Sink opens one writer per stored file. A writer reports success from Close
// only once the file is durable. Cancelling the context given to Open before
// Close discards the file.
type Sink interface {
	Open(ctx context.Context, key string) (io.WriteCloser, error)
	io.Closer
}

type Config struct {
	Driver string
	URL    string
	S3     S3Config
	Minio  MinioConfig
}

type S3Config struct {
	Endpoint string
	Region   string
}

// New opens the sink selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverBlob:
		return OpenBlobSink(ctx, cfg.URL, cfg.S3)
	case DriverMinio:
		return NewMinioSink(ctx, cfg.Minio)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return defaultContentType
}
