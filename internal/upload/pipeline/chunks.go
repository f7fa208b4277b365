package pipeline

import (
	"errors"
	"io"
	"iter"
)

// Chunks reads r into buf and yields every non-empty read. The yielded slice
// aliases buf and is only valid until the consumer returns, at which point
// the next read overwrites it. A read error other than io.EOF is yielded once
// after any bytes returned with it.
func Chunks(r io.Reader, buf []byte) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}

			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
