package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the step of the pipeline that failed.
type Stage string

const (
	StageSourceRead Stage = "source_read"
	StageSinkOpen   Stage = "sink_open"
	StageSinkWrite  Stage = "sink_write"
)

var (
	ErrSourceRead      = errors.New("source read failed")
	ErrSinkOpen        = errors.New("sink open failed")
	ErrSinkWrite       = errors.New("sink write failed")
	ErrInvalidFilename = errors.New("invalid filename")
)

// StageError is the error carried by a failed PipelineResult.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the stage, so callers can write
// errors.Is(err, ErrSinkWrite) without caring about the cause.
func (e *StageError) Is(target error) bool {
	switch target {
	case ErrSourceRead:
		return e.Stage == StageSourceRead
	case ErrSinkOpen:
		return e.Stage == StageSinkOpen
	case ErrSinkWrite:
		return e.Stage == StageSinkWrite
	}
	return false
}

// StageOf returns the stage of the first StageError in err's chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
