package pipeline

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

type dataErrReader struct {
	data string
	err  error
	done bool
}

func (r *dataErrReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), r.err
}

func TestChunksReusesBuffer(t *testing.T) {
	buf := make([]byte, 4)
	var got []string

	for chunk, err := range Chunks(strings.NewReader("abcdefghij"), buf) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if &chunk[0] != &buf[0] {
			t.Fatal("chunk must alias the read buffer")
		}
		got = append(got, string(chunk))
	}

	if strings.Join(got, "|") != "abcd|efgh|ij" {
		t.Fatalf("unexpected chunks %v", got)
	}
}

func TestChunksSkipsEmptyReads(t *testing.T) {
	var got strings.Builder
	for chunk, err := range Chunks(iotest.OneByteReader(strings.NewReader("xyz")), make([]byte, 8)) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunk) == 0 {
			t.Fatal("empty chunk yielded")
		}
		got.Write(chunk)
	}
	if got.String() != "xyz" {
		t.Fatalf("got %q", got.String())
	}
}

func TestChunksYieldsDataBeforeError(t *testing.T) {
	var chunks []string
	var gotErr error

	for chunk, err := range Chunks(&dataErrReader{data: "abc", err: errBoom}, make([]byte, 8)) {
		if err != nil {
			gotErr = err
			continue
		}
		chunks = append(chunks, string(chunk))
	}

	if len(chunks) != 1 || chunks[0] != "abc" {
		t.Fatalf("expected abc before the error, got %v", chunks)
	}
	if !errors.Is(gotErr, errBoom) {
		t.Fatalf("expected boom got %v", gotErr)
	}
}

func TestChunksStopsOnBreak(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{[]byte("a"), []byte("b"), []byte("c")}}
	for range Chunks(r, make([]byte, 1)) {
		break
	}
	if r.reads != 1 {
		t.Fatalf("expected a single read, got %d", r.reads)
	}
}
