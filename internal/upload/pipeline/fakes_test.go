package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.ProgressEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event entity.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) counts() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.ProcessedAlready)
	}
	return out
}

type memorySink struct {
	mu       sync.Mutex
	openErr  error
	writeErr error
	failAt   int
	closeErr error
	short    bool
	writes   [][]byte
	files    map[string]*bytes.Buffer
	closed   int
	keys     []string
	maxWrite int
	// causes holds, per closed writer, the cancellation cause of the
	// context it was opened with.
	causes []error
}

func (s *memorySink) Open(ctx context.Context, key string) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	if s.files == nil {
		s.files = map[string]*bytes.Buffer{}
	}
	s.files[key] = &bytes.Buffer{}
	s.keys = append(s.keys, key)
	return &memoryWriter{sink: s, key: key, ctx: ctx}, nil
}

func (s *memorySink) received() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Join(s.writes, nil)
}

type memoryWriter struct {
	sink *memorySink
	key  string
	ctx  context.Context
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	s := w.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil && len(s.writes) == s.failAt {
		return 0, s.writeErr
	}
	if len(p) > s.maxWrite {
		s.maxWrite = len(p)
	}

	n := len(p)
	if s.short && n > 1 {
		n = n - 1
	}
	s.writes = append(s.writes, append([]byte(nil), p[:n]...))
	s.files[w.key].Write(p[:n])
	return n, nil
}

func (w *memoryWriter) Close() error {
	s := w.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	s.causes = append(s.causes, context.Cause(w.ctx))
	return s.closeErr
}

// chunkReader returns one chunk per Read and fails with err after failAfter
// chunks when err is set.
type chunkReader struct {
	chunks    [][]byte
	failAfter int
	err       error
	reads     int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.err != nil && r.reads == r.failAfter {
		r.reads++
		return 0, r.err
	}
	if r.reads >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.reads])
	r.reads++
	return n, nil
}

var errBoom = errors.New("boom")
