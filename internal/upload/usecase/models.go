package usecase

import (
	"slices"

	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

type UploadResult struct {
	SessionID string
	Files     []FileResult
}

type FileResult struct {
	ID       int64
	Filename string
	Path     string
	Bytes    int64
	Status   entity.UploadStatus
	Stage    string
	Err      string
}

type FilesResult struct {
	SessionID string
	Files     []entity.UploadMeta
	Page      int
	PageSize  int
	Total     int
}

type FileFilter struct {
	Statuses []entity.UploadStatus
}

func (f FileFilter) Matches(meta entity.UploadMeta) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, meta.Status) {
		return false
	}
	return true
}
