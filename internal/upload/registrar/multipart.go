package registrar

import (
	"context"
	"mime/multipart"
	"sync"
)

// MultipartSource produces the parts of a multipart body. The underlying
// reader only allows one open part, so Next waits until the body of the
// previous part has been closed.
type MultipartSource struct {
	reader *multipart.Reader
	prev   *partBody
}

var _ PartSource = (*MultipartSource)(nil)

func NewMultipartSource(r *multipart.Reader) *MultipartSource {
	return &MultipartSource{reader: r}
}

func (s *MultipartSource) Next(ctx context.Context) (Part, error) {
	if s.prev != nil {
		select {
		case <-s.prev.done:
		case <-ctx.Done():
			return Part{}, ctx.Err()
		}
		s.prev = nil
	}

	p, err := s.reader.NextPart()
	if err != nil {
		return Part{}, err
	}

	body := &partBody{part: p, done: make(chan struct{})}
	s.prev = body

	return Part{
		FieldName: p.FormName(),
		Filename:  p.FileName(),
		Body:      body,
	}, nil
}

type partBody struct {
	part *multipart.Part
	once sync.Once
	done chan struct{}
}

func (b *partBody) Read(p []byte) (int, error) {
	return b.part.Read(p)
}

// Close discards what is left of the part and lets the source move on.
func (b *partBody) Close() error {
	var err error
	b.once.Do(func() {
		err = b.part.Close()
		close(b.done)
	})
	return err
}
