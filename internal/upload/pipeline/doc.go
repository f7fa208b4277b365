// Package pipeline streams one uploaded file from its source into a storage
// sink, counting bytes on the way and publishing throttled progress events.
//
// A file is read into a single reusable buffer and every chunk is written to
// the sink before the next read, so a slow sink slows the reader down and the
// memory held per file never exceeds one chunk.
package pipeline
