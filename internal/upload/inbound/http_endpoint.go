package inbound

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgerror"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgrouter"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/notify"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/registrar"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/usecase"
)

type HTTPEndpoint struct {
	uc uc
}

func (h *HTTPEndpoint) Upload(ctx context.Context, r *http.Request) (any, error) {
	sessionID := notify.SessionFromQuery(r)
	if sessionID == "" {
		return nil, pkgerror.NewInvalidInput(errors.New("socketId is required"))
	}

	if err := requireMultipart(r); err != nil {
		return nil, err
	}

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, pkgerror.NewInvalidFormat()
	}

	result, err := h.uc.Upload(ctx, usecase.UploadInput{
		SessionID: sessionID,
		Parts:     registrar.NewMultipartSource(reader),
		OnFinish: func() {
			slog.InfoContext(ctx, "upload request fully received", "session_id", sessionID)
		},
	})
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(result.Files))
	for _, f := range result.Files {
		files = append(files, File{
			ID:       f.ID,
			Filename: f.Filename,
			Path:     f.Path,
			Bytes:    f.Bytes,
			Status:   f.Status,
		})
	}

	return UploadResponse{SessionID: result.SessionID, Files: files}, nil
}

func (h *HTTPEndpoint) Files(ctx context.Context, r *http.Request) (any, error) {
	sessionID := notify.SessionFromQuery(r)
	if sessionID == "" {
		return nil, pkgerror.NewInvalidInput(errors.New("socketId is required"))
	}

	query := r.URL.Query()
	page, pageSize, err := parsePagination(query.Get("page"), query.Get("page_size"))
	if err != nil {
		return nil, err
	}

	filter, err := parseFileFilter(query.Get("status"))
	if err != nil {
		return nil, err
	}

	result, err := h.uc.Files(ctx, sessionID, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(result.Files))
	for _, meta := range result.Files {
		records = append(records, toHTTPRecord(meta))
	}

	return FilesResponse{
		SessionID: result.SessionID,
		Files:     records,
		page:      result.Page,
		pageSize:  result.PageSize,
		total:     result.Total,
	}, nil
}

func (h *HTTPEndpoint) File(ctx context.Context, r *http.Request) (any, error) {
	id, err := strconv.ParseInt(pkgrouter.GetParam(ctx, "id"), 10, 64)
	if err != nil || id < 1 {
		return nil, pkgerror.NewInvalidInput(errors.New("invalid upload id"))
	}

	meta, err := h.uc.File(ctx, id)
	if err != nil {
		return nil, err
	}

	return toHTTPRecord(meta), nil
}

func requireMultipart(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return pkgerror.NewUnsupportedMedia(errors.New("missing content type"))
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.EqualFold(mediaType, "multipart/form-data") {
		return pkgerror.NewUnsupportedMedia(errors.New("expected multipart/form-data"))
	}

	return nil
}

func parsePagination(pageRaw, sizeRaw string) (int, int, error) {
	page := 1
	pageSize := 10

	if pageRaw != "" {
		value, err := strconv.Atoi(pageRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page"))
		}
		page = value
	}

	if sizeRaw != "" {
		value, err := strconv.Atoi(sizeRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page_size"))
		}
		if value > 100 {
			value = 100
		}
		pageSize = value
	}

	return page, pageSize, nil
}

func parseFileFilter(statusRaw string) (usecase.FileFilter, error) {
	filter := usecase.FileFilter{}
	if statusRaw == "" {
		return filter, nil
	}

	for _, value := range strings.Split(statusRaw, ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		status, err := parseStatus(value)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	return filter, nil
}

func parseStatus(value string) (entity.UploadStatus, error) {
	switch status := entity.UploadStatus(strings.ToUpper(value)); status {
	case entity.UploadStatusQueued, entity.UploadStatusProcessing,
		entity.UploadStatusDone, entity.UploadStatusFailed:
		return status, nil
	default:
		return "", pkgerror.NewInvalidInput(errors.New("invalid status filter"))
	}
}

func toHTTPRecord(meta entity.UploadMeta) Record {
	return Record{
		ID:        meta.ID,
		Filename:  meta.Filename,
		Path:      meta.Path,
		Status:    meta.Status,
		Bytes:     meta.Bytes,
		Stage:     meta.Stage,
		Error:     meta.Err,
		StartedAt: meta.StartedAt,
		EndedAt:   meta.EndedAt,
	}
}
