package inbound

import (
	"net/http"

	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

type File struct {
	ID       int64               `json:"id,string"`
	Filename string              `json:"filename"`
	Path     string              `json:"path"`
	Bytes    int64               `json:"bytes"`
	Status   entity.UploadStatus `json:"status"`
}

type UploadResponse struct {
	SessionID string `json:"session_id"`
	Files     []File `json:"files"`
}

func (UploadResponse) StatusCode() int {
	return http.StatusCreated
}

func (UploadResponse) Message() string {
	return "Files uploaded with success!"
}

type Record struct {
	ID        int64               `json:"id,string"`
	Filename  string              `json:"filename"`
	Path      string              `json:"path,omitempty"`
	Status    entity.UploadStatus `json:"status"`
	Bytes     int64               `json:"bytes"`
	Stage     string              `json:"stage,omitempty"`
	Error     string              `json:"error,omitempty"`
	StartedAt int64               `json:"started_at,omitempty"`
	EndedAt   int64               `json:"ended_at,omitempty"`
}

type FilesResponse struct {
	SessionID string   `json:"session_id"`
	Files     []Record `json:"files"`
	page      int
	pageSize  int
	total     int
}

func (r FilesResponse) Meta() map[string]any {
	return map[string]any{
		"page":      r.page,
		"page_size": r.pageSize,
		"total":     r.total,
	}
}
