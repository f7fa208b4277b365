package inbound

import (
	"context"
	"net/http"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgrouter"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/usecase"
)

type uc interface {
	Upload(ctx context.Context, in usecase.UploadInput) (usecase.UploadResult, error)
	Files(ctx context.Context, sessionID string, filter usecase.FileFilter, page, pageSize int) (usecase.FilesResult, error)
	File(ctx context.Context, uploadID int64) (entity.UploadMeta, error)
}

// RegisterHTTPEndpoint mounts the upload routes. The hub serves the progress
// websocket and may be nil when no live channel is configured.
func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc, hub http.Handler) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/uploads", end.Upload) // ?socketId=
	r.GET("/uploads", end.Files)   // ?socketId=&status=&page=&page_size=
	r.GET("/uploads/:id", end.File)

	if hub != nil {
		r.Handle(http.MethodGet, "/ws", hub) // ?socketId=
	}
}
