package entity

type UploadMeta struct {
	ID        int64
	SessionID string
	Filename  string
	Path      string
	Status    UploadStatus
	Err       string
	Stage     string
	StartedAt int64
	EndedAt   int64

	// Bytes is the number of bytes accepted by storage.
	Bytes int64
}
