package entity

import "time"

// DefaultReportInterval is the minimum gap between two progress events for
// the same file when the configuration does not say otherwise.
const DefaultReportInterval = 200 * time.Millisecond

// SessionConfig holds the per-request upload settings. It is built once per
// request and never mutated afterwards.
type SessionConfig struct {
	SessionID   string
	StorageRoot string

	// ReportInterval is the throttle window for progress events. Zero
	// reports on every chunk.
	ReportInterval time.Duration

	// ReportFirstChunk publishes on the first non-empty chunk regardless of
	// the interval, so clients see progress start immediately.
	ReportFirstChunk bool

	// ReportOnComplete publishes a terminal event carrying the final byte
	// count when it was not already reported.
	ReportOnComplete bool

	// DiscardPartial drops the stored object of a file that failed midway.
	// When false whatever reached the sink before the failure stays there.
	DiscardPartial bool
}

// ProgressEvent is the payload sent to the session channel.
type ProgressEvent struct {
	Filename         string `json:"filename"`
	ProcessedAlready int64  `json:"processedAlready"`
}

// PipelineResult describes how one file went through the pipeline. Err is
// nil on success.
type PipelineResult struct {
	ID       int64
	Filename string
	Path     string
	Bytes    int64
	Err      error
}

// OK reports whether every byte was accepted by storage.
func (r PipelineResult) OK() bool {
	return r.Err == nil
}

// ProgressMessage is a progress event addressed to a session, as carried by
// the asynchronous bus and the redis relay.
type ProgressMessage struct {
	SessionID string        `json:"sessionId"`
	Event     ProgressEvent `json:"data"`
}
