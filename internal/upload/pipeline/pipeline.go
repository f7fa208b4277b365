package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgclock"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

const (
	instrumentationName = "github.com/caiocltm/JSExpert-Drive/internal/upload/pipeline"

	// DefaultChunkSize is the read buffer used when none is configured.
	DefaultChunkSize = 32 * 1024
)

// Sink opens the durable destination of one file. The returned writer must
// only report success from Close once every byte is persisted.
type Sink interface {
	Open(ctx context.Context, key string) (io.WriteCloser, error)
}

type Dependency struct {
	Sink      Sink
	Publisher Publisher
	Clock     pkgclock.Clock
	Tracer    trace.Tracer
	Meter     metric.Meter
	ChunkSize int
}

// Pipeline runs files of a single upload session. It holds no per-file
// state and is safe for concurrent use.
type Pipeline struct {
	session   entity.SessionConfig
	sink      Sink
	publisher Publisher
	clock     pkgclock.Clock
	tracer    trace.Tracer
	metrics   *instruments
	chunkSize int
}

func New(session entity.SessionConfig, dep Dependency) *Pipeline {
	clock := dep.Clock
	if clock == nil {
		clock = pkgclock.Real{}
	}

	tracer := dep.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	meter := dep.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	chunkSize := dep.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Pipeline{
		session:   session,
		sink:      dep.Sink,
		publisher: dep.Publisher,
		clock:     clock,
		tracer:    tracer,
		metrics:   newInstruments(meter),
		chunkSize: chunkSize,
	}
}

// Run streams part into the sink under the session storage root. Every chunk
// is written before the next one is read. The returned result carries a
// *StageError when any byte could not be read or persisted.
func (p *Pipeline) Run(ctx context.Context, part io.Reader, filename string) entity.PipelineResult {
	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("upload.session_id", p.session.SessionID),
		attribute.String("upload.filename", filename),
	))
	defer span.End()

	result := entity.PipelineResult{Filename: filename}

	key, err := ObjectKey(p.session.StorageRoot, filename)
	if err != nil {
		return p.fail(ctx, span, result, StageSinkOpen, err)
	}
	result.Path = key

	// Writers that honour ctx discard their content when it is cancelled.
	// A failed file is left as written unless the session asks to drop it.
	sinkCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)
	discard := func(err error) {
		if p.session.DiscardPartial {
			abort(err)
		}
	}

	w, err := p.sink.Open(sinkCtx, key)
	if err != nil {
		return p.fail(ctx, span, result, StageSinkOpen, err)
	}

	var opts []CounterOption
	if p.session.ReportFirstChunk {
		opts = append(opts, WithFirstChunkReport())
	}
	counter := NewCounter(filename, p.session.SessionID, p.session.ReportInterval, p.clock, p.publisher, opts...)

	slog.InfoContext(ctx, "file upload started", "filename", filename, "path", key)

	buf := make([]byte, p.chunkSize)
	for chunk, err := range counter.Stream(ctx, Chunks(part, buf)) {
		if err != nil {
			discard(err)
			_ = w.Close()
			return p.fail(ctx, span, result, StageSourceRead, err)
		}

		n, err := w.Write(chunk)
		result.Bytes += int64(n)
		if err == nil && n != len(chunk) {
			err = io.ErrShortWrite
		}
		if err != nil {
			discard(err)
			_ = w.Close()
			return p.fail(ctx, span, result, StageSinkWrite, err)
		}
	}

	if err := w.Close(); err != nil {
		return p.fail(ctx, span, result, StageSinkWrite, err)
	}

	if p.session.ReportOnComplete {
		counter.Flush(ctx)
	}

	p.metrics.record(ctx, result.Bytes, "")
	span.SetAttributes(attribute.Int64("upload.bytes", result.Bytes))
	slog.InfoContext(ctx, fmt.Sprintf("File [%s] got %d bytes", filename, result.Bytes),
		"filename", filename,
		"path", key,
		"bytes", result.Bytes,
		"events", counter.Emitted(),
	)

	return result
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, result entity.PipelineResult, stage Stage, err error) entity.PipelineResult {
	result.Err = &StageError{Stage: stage, Err: err}

	p.metrics.record(ctx, result.Bytes, stage)
	span.RecordError(result.Err)
	span.SetStatus(codes.Error, string(stage))
	slog.ErrorContext(ctx, "file upload failed",
		"filename", result.Filename,
		"stage", stage,
		"bytes", result.Bytes,
		"error", err,
	)

	return result
}

// ObjectKey joins root and the base name of filename. Names that carry a
// directory, are empty or point at a parent are rejected.
func ObjectKey(root, filename string) (string, error) {
	name := filename
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	root = strings.Trim(path.Clean("/"+strings.ReplaceAll(root, `\`, "/")), "/")
	if root == "" {
		return name, nil
	}
	return root + "/" + name, nil
}

type instruments struct {
	bytes    metric.Int64Counter
	files    metric.Int64Counter
	failures metric.Int64Counter
}

func newInstruments(meter metric.Meter) *instruments {
	m := &instruments{}
	m.bytes, _ = meter.Int64Counter("upload.bytes",
		metric.WithDescription("Bytes persisted by the upload pipeline"),
		metric.WithUnit("By"),
	)
	m.files, _ = meter.Int64Counter("upload.files",
		metric.WithDescription("Files handled by the upload pipeline"),
	)
	m.failures, _ = meter.Int64Counter("upload.failures",
		metric.WithDescription("Failed files by pipeline stage"),
	)
	return m
}

func (m *instruments) record(ctx context.Context, bytes int64, stage Stage) {
	if m.bytes != nil && bytes > 0 {
		m.bytes.Add(ctx, bytes)
	}

	status := "ok"
	if stage != "" {
		status = "failed"
		if m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
		}
	}
	if m.files != nil {
		m.files.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}
