package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/google/uuid"
)

type MemoryImageStore struct {
	mu     sync.RWMutex
	images map[string]domain.ImageRecord
	now    func() time.Time
}

func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{
		images: make(map[string]domain.ImageRecord),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryImageStore) Create(_ context.Context, owner string, img domain.ImageRecord) (domain.ImageRecord, error) {
	img, err := prepareCreate(owner, img, s.now())
	if err != nil {
		return domain.ImageRecord{}, err
	}
	img.ID = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[img.ID] = cloneRecord(img)
	return img, nil
}

func (s *MemoryImageStore) Update(_ context.Context, owner, id string, img domain.ImageRecord) (domain.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.images[id]
	if !ok {
		return domain.ImageRecord{}, notFound(id)
	}
	img, err := prepareUpdate(owner, existing, img, s.now())
	if err != nil {
		return domain.ImageRecord{}, err
	}
	s.images[id] = cloneRecord(img)
	return img, nil
}

func (s *MemoryImageStore) Get(_ context.Context, id string) (domain.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[id]
	if !ok {
		return domain.ImageRecord{}, notFound(id)
	}
	return cloneRecord(img), nil
}

func (s *MemoryImageStore) ListByOwner(_ context.Context, owner string, limit int) ([]domain.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ImageRecord, 0)
	for _, img := range s.images {
		if img.Owner == owner {
			out = append(out, cloneRecord(img))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })

	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryImageStore) Delete(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.images[id]
	if !ok {
		return notFound(id)
	}
	if err := checkOwner(owner, existing); err != nil {
		return err
	}
	delete(s.images, id)
	return nil
}

func (s *MemoryImageStore) SetExport(_ context.Context, id, status, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[id]
	if !ok {
		return notFound(id)
	}
	img.ExportStatus = status
	if key != "" {
		img.ExportKey = key
	}
	img.UpdatedAt = s.now()
	s.images[id] = img
	return nil
}

func cloneRecord(img domain.ImageRecord) domain.ImageRecord {
	if img.Config != nil {
		c := img.Config.Clone()
		img.Config = &c
	}
	return img
}
