package store

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgerror"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/usecase"
)

func TestInMemoryStore_CreateUpload_Duplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemoryStore()
	meta := entity.UploadMeta{
		ID:        1,
		SessionID: "sid",
		Filename:  "a.txt",
		Status:    entity.UploadStatusQueued,
	}

	if err := store.CreateUpload(ctx, meta); err != nil {
		t.Fatalf("CreateUpload() err = %v", err)
	}

	err := store.CreateUpload(ctx, meta)
	if err == nil {
		t.Fatal("CreateUpload() expected error, got nil")
	}

	var perr *pkgerror.Error
	if !errors.As(err, &perr) {
		t.Fatalf("CreateUpload() expected pkgerror.Error, got %T", err)
	}

	if perr.Code() != pkgerror.CodeConflict {
		t.Fatalf("CreateUpload() error code = %v, want %v", perr.Code(), pkgerror.CodeConflict)
	}
}

func TestInMemoryStore_UpdateMeta_And_GetUpload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemoryStore()
	meta := entity.UploadMeta{
		ID:        2,
		SessionID: "sid",
		Filename:  "b.txt",
		Status:    entity.UploadStatusQueued,
		StartedAt: 123,
	}

	if err := store.CreateUpload(ctx, meta); err != nil {
		t.Fatalf("CreateUpload() err = %v", err)
	}

	err := store.UpdateMeta(ctx, meta.ID, func(m *entity.UploadMeta) {
		m.Status = entity.UploadStatusFailed
		m.Stage = "sink_write"
		m.Err = "disk full"
		m.Bytes = 99
		m.EndedAt = 456
	})
	if err != nil {
		t.Fatalf("UpdateMeta() err = %v", err)
	}

	got, err := store.GetUpload(ctx, meta.ID)
	if err != nil {
		t.Fatalf("GetUpload() err = %v", err)
	}

	if got.Status != entity.UploadStatusFailed || got.Stage != "sink_write" || got.Err != "disk full" {
		t.Fatalf("GetUpload() meta = %+v", got)
	}

	if got.Bytes != 99 {
		t.Fatalf("GetUpload() bytes = %d, want 99", got.Bytes)
	}

	if got.StartedAt != 123 || got.EndedAt != 456 {
		t.Fatalf("GetUpload() times = %d/%d, want 123/456", got.StartedAt, got.EndedAt)
	}
}

func TestInMemoryStore_ListBySession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemoryStore()

	records := []entity.UploadMeta{
		{ID: 10, SessionID: "s1", Filename: "1.txt", Status: entity.UploadStatusDone},
		{ID: 11, SessionID: "s2", Filename: "x.txt", Status: entity.UploadStatusDone},
		{ID: 12, SessionID: "s1", Filename: "2.txt", Status: entity.UploadStatusFailed},
		{ID: 13, SessionID: "s1", Filename: "3.txt", Status: entity.UploadStatusDone},
	}
	for _, r := range records {
		if err := store.CreateUpload(ctx, r); err != nil {
			t.Fatalf("CreateUpload() err = %v", err)
		}
	}

	page1, total, err := store.ListBySession(ctx, "s1", usecase.FileFilter{}, 1, 2)
	if err != nil {
		t.Fatalf("ListBySession() err = %v", err)
	}
	if total != 3 {
		t.Fatalf("ListBySession() total = %d, want 3", total)
	}
	if !reflect.DeepEqual(page1, []entity.UploadMeta{records[0], records[2]}) {
		t.Fatalf("ListBySession() page1 = %+v", page1)
	}

	page2, _, err := store.ListBySession(ctx, "s1", usecase.FileFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("ListBySession() page2 err = %v", err)
	}
	if len(page2) != 1 || page2[0].ID != 13 {
		t.Fatalf("ListBySession() page2 = %+v", page2)
	}

	failed := usecase.FileFilter{Statuses: []entity.UploadStatus{entity.UploadStatusFailed}}
	matches, total, err := store.ListBySession(ctx, "s1", failed, 1, 10)
	if err != nil {
		t.Fatalf("ListBySession() filtered err = %v", err)
	}
	if total != 1 || len(matches) != 1 || matches[0].ID != 12 {
		t.Fatalf("ListBySession() filtered = %+v total %d", matches, total)
	}

	empty, total, err := store.ListBySession(ctx, "unknown", usecase.FileFilter{}, 1, 10)
	if err != nil || total != 0 || len(empty) != 0 {
		t.Fatalf("ListBySession() unknown session = %+v %d %v", empty, total, err)
	}
}

func TestInMemoryStore_ConcurrentUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := int64(1); i <= 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.CreateUpload(ctx, entity.UploadMeta{ID: i, SessionID: "sid"})
			_ = store.UpdateMeta(ctx, i, func(m *entity.UploadMeta) { m.Bytes = i })
		}()
	}
	wg.Wait()

	items, total, err := store.ListBySession(ctx, "sid", usecase.FileFilter{}, 1, 100)
	if err != nil || total != 32 || len(items) != 32 {
		t.Fatalf("ListBySession() = %d items, total %d, err %v", len(items), total, err)
	}
	for _, m := range items {
		if m.Bytes != m.ID {
			t.Fatalf("record %d has bytes %d", m.ID, m.Bytes)
		}
	}
}

func TestInMemoryStore_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemoryStore()

	t.Run("GetUpload", func(t *testing.T) {
		_, err := store.GetUpload(ctx, 404)
		if !errors.Is(err, pkgerror.ErrNotFound) {
			t.Fatalf("GetUpload() err = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateMeta", func(t *testing.T) {
		err := store.UpdateMeta(ctx, 404, func(*entity.UploadMeta) {})
		if !errors.Is(err, pkgerror.ErrNotFound) {
			t.Fatalf("UpdateMeta() err = %v, want ErrNotFound", err)
		}
	})
}
