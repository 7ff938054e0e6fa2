// Package progress stores upload batch snapshots.
package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

// DefaultMemorySize bounds the number of batches kept by the memory store.
const DefaultMemorySize = 1024

type memoryStore struct {
	cache *expirable.LRU[uuid.UUID, port.BatchSnapshot]
}

// NewMemoryStore keeps snapshots in-process, evicting the oldest past size or after ttl.
func NewMemoryStore(size int, ttl time.Duration) port.ProgressStore {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &memoryStore{cache: expirable.NewLRU[uuid.UUID, port.BatchSnapshot](size, nil, ttl)}
}

func (s *memoryStore) Save(_ context.Context, snap port.BatchSnapshot) error {
	s.cache.Add(snap.ID, cloneSnapshot(snap))
	return nil
}

func (s *memoryStore) Get(_ context.Context, batchID uuid.UUID) (*port.BatchSnapshot, error) {
	snap, ok := s.cache.Get(batchID)
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	out := cloneSnapshot(snap)
	return &out, nil
}

func cloneSnapshot(snap port.BatchSnapshot) port.BatchSnapshot {
	snap.Files = append([]domain.UploadedFile(nil), snap.Files...)
	return snap
}
