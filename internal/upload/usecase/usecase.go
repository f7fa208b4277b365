package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgclock"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgerror"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkglog"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkguid"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/pipeline"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/registrar"
)

type Store interface {
	CreateUpload(ctx context.Context, meta entity.UploadMeta) error
	UpdateMeta(ctx context.Context, uploadID int64, fn func(meta *entity.UploadMeta)) error
	GetUpload(ctx context.Context, uploadID int64) (entity.UploadMeta, error)
	ListBySession(ctx context.Context, sessionID string, filter FileFilter, page, pageSize int) ([]entity.UploadMeta, int, error)
}

// Settings are the upload options shared by every session.
type Settings struct {
	StorageRoot      string
	ReportInterval   time.Duration
	ReportFirstChunk bool
	ReportOnComplete bool
	DiscardPartial   bool
	ChunkSize        int
	Concurrency      int
}

type Dependency struct {
	Store    Store
	Sink     pipeline.Sink
	Progress pipeline.Publisher
	Clock    pkgclock.Clock
	ID       pkguid.NumberID
	Settings Settings
}

type Usecase struct {
	store    Store
	sink     pipeline.Sink
	progress pipeline.Publisher
	clock    pkgclock.Clock
	id       pkguid.NumberID
	settings Settings
}

func New(dep Dependency) *Usecase {
	clock := dep.Clock
	if clock == nil {
		clock = pkgclock.Real{}
	}

	return &Usecase{
		store:    dep.Store,
		sink:     dep.Sink,
		progress: dep.Progress,
		clock:    clock,
		id:       dep.ID,
		settings: dep.Settings,
	}
}

type UploadInput struct {
	SessionID string
	Parts     registrar.PartSource

	// OnFinish runs once every part of the request has been handed to a
	// pipeline.
	OnFinish func()
}

// Upload persists every file part of the input and reports progress to the
// session. It returns once each file is either durable or failed.
func (u *Usecase) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if u.store == nil || u.sink == nil || u.id == nil {
		return UploadResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	session, err := u.sessionConfig(in.SessionID)
	if err != nil {
		return UploadResult{}, pkgerror.NewInvalidInput(err)
	}
	if in.Parts == nil {
		return UploadResult{}, pkgerror.NewInvalidInput(errors.New("upload has no body"))
	}

	ctx = pkglog.SetSessionID(ctx, session.SessionID)

	runner := &recordingRunner{
		usecase:   u,
		sessionID: session.SessionID,
		pipeline: pipeline.New(session, pipeline.Dependency{
			Sink:      u.sink,
			Publisher: u.progress,
			Clock:     u.clock,
			ChunkSize: u.settings.ChunkSize,
		}),
	}

	onFinish := func() {
		slog.InfoContext(ctx, "all upload parts received")
		if in.OnFinish != nil {
			in.OnFinish()
		}
	}

	results, err := registrar.New(runner, u.settings.Concurrency).Register(ctx, in.Parts, onFinish)
	out := UploadResult{SessionID: session.SessionID, Files: toFileResults(results)}
	if err != nil {
		return out, pkgerror.NewInvalidBody(fmt.Errorf("read upload body: %w", err))
	}

	if len(results) == 0 {
		return out, pkgerror.NewInvalidInput(errors.New("no file found in upload"))
	}

	for _, res := range results {
		if !res.OK() {
			return out, stageErr(res.Err)
		}
	}

	return out, nil
}

func (u *Usecase) Files(ctx context.Context, sessionID string, filter FileFilter, page, pageSize int) (FilesResult, error) {
	if sessionID == "" {
		return FilesResult{}, pkgerror.NewInvalidInput(errors.New("socketId is required"))
	}

	if page < 1 || pageSize < 1 {
		return FilesResult{}, pkgerror.NewInvalidInput(errors.New("invalid pagination"))
	}

	files, total, err := u.store.ListBySession(ctx, sessionID, filter, page, pageSize)
	if err != nil {
		return FilesResult{}, normalizeErr(err)
	}

	return FilesResult{
		SessionID: sessionID,
		Files:     files,
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
	}, nil
}

func (u *Usecase) File(ctx context.Context, uploadID int64) (entity.UploadMeta, error) {
	if uploadID <= 0 {
		return entity.UploadMeta{}, pkgerror.NewInvalidInput(errors.New("invalid upload id"))
	}

	meta, err := u.store.GetUpload(ctx, uploadID)
	if err != nil {
		return entity.UploadMeta{}, mapStoreErr(err)
	}

	return meta, nil
}

func (u *Usecase) sessionConfig(sessionID string) (entity.SessionConfig, error) {
	if sessionID == "" {
		return entity.SessionConfig{}, errors.New("socketId is required")
	}
	if u.settings.ReportInterval < 0 {
		return entity.SessionConfig{}, errors.New("report interval must not be negative")
	}

	return entity.SessionConfig{
		SessionID:        sessionID,
		StorageRoot:      u.settings.StorageRoot,
		ReportInterval:   u.settings.ReportInterval,
		ReportFirstChunk: u.settings.ReportFirstChunk,
		ReportOnComplete: u.settings.ReportOnComplete,
		DiscardPartial:   u.settings.DiscardPartial,
	}, nil
}

// recordingRunner keeps an upload record for every file it runs.
type recordingRunner struct {
	usecase   *Usecase
	sessionID string
	pipeline  *pipeline.Pipeline
}

func (r *recordingRunner) Run(ctx context.Context, part io.Reader, filename string) entity.PipelineResult {
	u := r.usecase
	uploadID := u.id.Generate()

	if err := u.store.CreateUpload(ctx, entity.UploadMeta{
		ID:        uploadID,
		SessionID: r.sessionID,
		Filename:  filename,
		Status:    entity.UploadStatusQueued,
	}); err != nil {
		slog.WarnContext(ctx, "failed to record upload", "upload_id", uploadID, "error", err)
	}

	startedAt := u.clock.Now().Unix()
	r.update(ctx, uploadID, func(meta *entity.UploadMeta) {
		meta.Status = entity.UploadStatusProcessing
		meta.StartedAt = startedAt
	})

	res := r.pipeline.Run(ctx, part, filename)
	res.ID = uploadID

	endedAt := u.clock.Now().Unix()
	r.update(ctx, uploadID, func(meta *entity.UploadMeta) {
		meta.Path = res.Path
		meta.Bytes = res.Bytes
		meta.EndedAt = endedAt
		meta.Status = entity.UploadStatusDone
		if !res.OK() {
			meta.Status = entity.UploadStatusFailed
			meta.Err = res.Err.Error()
			if stage, ok := pipeline.StageOf(res.Err); ok {
				meta.Stage = string(stage)
			}
		}
	})

	return res
}

func (r *recordingRunner) update(ctx context.Context, uploadID int64, fn func(meta *entity.UploadMeta)) {
	if err := r.usecase.store.UpdateMeta(ctx, uploadID, fn); err != nil {
		slog.WarnContext(ctx, "failed to update upload record", "upload_id", uploadID, "error", err)
	}
}

func toFileResults(results []entity.PipelineResult) []FileResult {
	files := make([]FileResult, 0, len(results))
	for _, res := range results {
		file := FileResult{
			ID:       res.ID,
			Filename: res.Filename,
			Path:     res.Path,
			Bytes:    res.Bytes,
			Status:   entity.UploadStatusDone,
		}
		if !res.OK() {
			file.Status = entity.UploadStatusFailed
			file.Err = res.Err.Error()
			if stage, ok := pipeline.StageOf(res.Err); ok {
				file.Stage = string(stage)
			}
		}
		files = append(files, file)
	}
	return files
}

// stageErr maps a failed file to the error reported to the client.
func stageErr(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrInvalidFilename):
		return pkgerror.NewInvalidInput(err)
	case errors.Is(err, pipeline.ErrSourceRead):
		return pkgerror.NewInvalidBody(err)
	default:
		return pkgerror.NewStorage(err)
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewBusiness("upload not found", pkgerror.CodeNotFound)
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
