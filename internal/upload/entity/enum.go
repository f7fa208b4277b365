package entity

type UploadStatus string

const (
	UploadStatusQueued     UploadStatus = "QUEUED"
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusDone       UploadStatus = "DONE"
	UploadStatusFailed     UploadStatus = "FAILED"
)

// EventFileUpload is the name progress events are published under on the
// session channel.
const EventFileUpload = "file-upload"
