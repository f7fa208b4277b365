package store

import (
	"context"
	"sync"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgerror"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/usecase"
)

// InMemoryStore keeps upload records for the lifetime of the process.
type InMemoryStore struct {
	mu       sync.RWMutex
	uploads  map[int64]*uploadRecord
	sessions map[string][]int64
}

type uploadRecord struct {
	mu   sync.RWMutex
	meta entity.UploadMeta
}

var _ usecase.Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		uploads:  make(map[int64]*uploadRecord),
		sessions: make(map[string][]int64),
	}
}

func (s *InMemoryStore) CreateUpload(ctx context.Context, meta entity.UploadMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.uploads[meta.ID]; exists {
		return pkgerror.NewBusiness("upload already exists", pkgerror.CodeConflict)
	}

	s.uploads[meta.ID] = &uploadRecord{meta: meta}
	s.sessions[meta.SessionID] = append(s.sessions[meta.SessionID], meta.ID)

	return nil
}

func (s *InMemoryStore) UpdateMeta(ctx context.Context, uploadID int64, fn func(meta *entity.UploadMeta)) error {
	rec, err := s.get(uploadID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	fn(&rec.meta)

	return nil
}

func (s *InMemoryStore) GetUpload(ctx context.Context, uploadID int64) (entity.UploadMeta, error) {
	rec, err := s.get(uploadID)
	if err != nil {
		return entity.UploadMeta{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	return rec.meta, nil
}

// ListBySession pages through the records of a session in upload order.
func (s *InMemoryStore) ListBySession(ctx context.Context, sessionID string, filter usecase.FileFilter, page, pageSize int) ([]entity.UploadMeta, int, error) {
	s.mu.RLock()
	ids := append([]int64(nil), s.sessions[sessionID]...)
	s.mu.RUnlock()

	total := 0
	start := (page - 1) * pageSize
	end := start + pageSize
	items := make([]entity.UploadMeta, 0, pageSize)

	for _, id := range ids {
		rec, err := s.get(id)
		if err != nil {
			continue
		}

		rec.mu.RLock()
		meta := rec.meta
		rec.mu.RUnlock()

		if !filter.Matches(meta) {
			continue
		}

		if total >= start && total < end {
			items = append(items, meta)
		}
		total++
	}

	return items, total, nil
}

func (s *InMemoryStore) get(uploadID int64) (*uploadRecord, error) {
	s.mu.RLock()
	rec, ok := s.uploads[uploadID]
	s.mu.RUnlock()
	if !ok {
		return nil, pkgerror.ErrNotFound
	}

	return rec, nil
}
