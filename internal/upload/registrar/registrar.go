// Package registrar dispatches every file part of an upload to its own
// pipeline run.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

// Part is one segment of an upload. Body must be closed once the consumer is
// done with it. Sources may refuse to produce the next part before that.
type Part struct {
	FieldName string
	Filename  string
	Body      io.Reader
}

// PartSource yields the parts of one upload. Next returns io.EOF once every
// part has been produced.
type PartSource interface {
	Next(ctx context.Context) (Part, error)
}

// Runner persists one file.
type Runner interface {
	Run(ctx context.Context, part io.Reader, filename string) entity.PipelineResult
}

type Registrar struct {
	runner      Runner
	concurrency int
}

// New returns a Registrar running at most concurrency files at once. Values
// below one mean one file at a time.
func New(runner Runner, concurrency int) *Registrar {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Registrar{runner: runner, concurrency: concurrency}
}

// Register runs a pipeline for every file part of parts. onFinish is called
// once the source is exhausted, which is after every pipeline has started
// and before they are all done. Register returns when every pipeline has
// finished, with results in part order. A source failure is returned along
// with the results of the parts started before it, and onFinish is not
// called.
func (r *Registrar) Register(ctx context.Context, parts PartSource, onFinish func()) ([]entity.PipelineResult, error) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results []entity.PipelineResult
	)
	g.SetLimit(r.concurrency)

	collect := func() []entity.PipelineResult {
		_ = g.Wait()
		mu.Lock()
		defer mu.Unlock()
		return results
	}

	for {
		part, err := parts.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return collect(), fmt.Errorf("next part: %w", err)
		}

		if part.Filename == "" {
			slog.DebugContext(ctx, "skipping part without filename", "field", part.FieldName)
			release(part.Body)
			continue
		}

		mu.Lock()
		idx := len(results)
		results = append(results, entity.PipelineResult{Filename: part.Filename})
		mu.Unlock()

		slog.InfoContext(ctx, "file part received", "field", part.FieldName, "filename", part.Filename)

		g.Go(func() error {
			res := r.runner.Run(ctx, part.Body, part.Filename)
			release(part.Body)

			mu.Lock()
			results[idx] = res
			mu.Unlock()
			return nil
		})
	}

	if onFinish != nil {
		onFinish()
	}

	return collect(), nil
}

func release(body io.Reader) {
	if c, ok := body.(io.Closer); ok {
		_ = c.Close()
	}
}
