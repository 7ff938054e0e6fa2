package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

const (
	batchEventBuffer  = 64
	snapshotSaveLimit = 2 * time.Second
)

// BatchEvent is one observable change of an upload batch.
type BatchEvent struct {
	BatchID   uuid.UUID            `json:"batch_id"`
	Index     int                  `json:"index"`
	File      *domain.UploadedFile `json:"file,omitempty"`
	Done      bool                 `json:"done"`
	Cancelled bool                 `json:"cancelled,omitempty"`
	At        time.Time            `json:"at"`
}

type trackedBatch struct {
	snap port.BatchSnapshot
	subs map[uint64]chan BatchEvent
}

// ProgressTracker owns the live state of running batches, fans changes out to
// subscribers and mirrors snapshots into a ProgressStore.
type ProgressTracker struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]*trackedBatch
	nextSub uint64
	store   port.ProgressStore
	logger  *zap.Logger
}

// NewProgressTracker creates a tracker backed by store.
func NewProgressTracker(store port.ProgressStore, logger *zap.Logger) *ProgressTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressTracker{
		batches: make(map[uuid.UUID]*trackedBatch),
		store:   store,
		logger:  logger,
	}
}

// Register starts tracking snap.
func (t *ProgressTracker) Register(snap port.BatchSnapshot) {
	now := time.Now().UTC()
	snap.StartedAt = now
	snap.UpdatedAt = now
	snap.Files = append([]domain.UploadedFile(nil), snap.Files...)

	t.mu.Lock()
	t.batches[snap.ID] = &trackedBatch{snap: snap, subs: make(map[uint64]chan BatchEvent)}
	t.mu.Unlock()

	t.save(snap)
}

// Update applies fn to file idx of the batch and publishes the result.
// It returns the updated copy.
func (t *ProgressTracker) Update(batchID uuid.UUID, idx int, fn func(f *domain.UploadedFile)) domain.UploadedFile {
	t.mu.Lock()
	b, ok := t.batches[batchID]
	if !ok || idx < 0 || idx >= len(b.snap.Files) {
		t.mu.Unlock()
		return domain.UploadedFile{}
	}
	fn(&b.snap.Files[idx])
	file := b.snap.Files[idx]
	b.snap.UpdatedAt = time.Now().UTC()
	t.broadcastLocked(b, BatchEvent{BatchID: batchID, Index: idx, File: &file, At: b.snap.UpdatedAt})
	snap := cloneBatch(b.snap)
	t.mu.Unlock()

	t.save(snap)
	return file
}

// File returns a copy of file idx.
func (t *ProgressTracker) File(batchID uuid.UUID, idx int) (domain.UploadedFile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.batches[batchID]
	if !ok || idx < 0 || idx >= len(b.snap.Files) {
		return domain.UploadedFile{}, false
	}
	return b.snap.Files[idx], true
}

// Finish marks the batch done, closes its subscribers and stops tracking it
// in memory. The final snapshot stays readable through the store.
func (t *ProgressTracker) Finish(batchID uuid.UUID, cancelled bool) port.BatchSnapshot {
	t.mu.Lock()
	b, ok := t.batches[batchID]
	if !ok {
		t.mu.Unlock()
		return port.BatchSnapshot{}
	}
	b.snap.Done = true
	b.snap.Cancelled = cancelled
	b.snap.UpdatedAt = time.Now().UTC()
	t.broadcastLocked(b, BatchEvent{BatchID: batchID, Index: -1, Done: true, Cancelled: cancelled, At: b.snap.UpdatedAt})
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	delete(t.batches, batchID)
	snap := cloneBatch(b.snap)
	t.mu.Unlock()

	t.save(snap)
	return snap
}

// Snapshot returns the live state of a batch or the last stored one.
func (t *ProgressTracker) Snapshot(ctx context.Context, batchID uuid.UUID) (*port.BatchSnapshot, error) {
	t.mu.RLock()
	if b, ok := t.batches[batchID]; ok {
		snap := cloneBatch(b.snap)
		t.mu.RUnlock()
		return &snap, nil
	}
	t.mu.RUnlock()

	if t.store == nil {
		return nil, domain.ErrBatchNotFound
	}
	return t.store.Get(ctx, batchID)
}

// Subscribe returns a channel of events for a running batch. The channel is
// closed when the batch finishes or the returned func is called.
// A finished batch yields ok=false.
func (t *ProgressTracker) Subscribe(batchID uuid.UUID) (<-chan BatchEvent, func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.batches[batchID]
	if !ok {
		return nil, func() {}, false
	}
	id := t.nextSub
	t.nextSub++
	ch := make(chan BatchEvent, batchEventBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if tb, ok := t.batches[batchID]; ok {
				if c, ok := tb.subs[id]; ok {
					delete(tb.subs, id)
					close(c)
				}
			}
		})
	}, true
}

func (t *ProgressTracker) broadcastLocked(b *trackedBatch, ev BatchEvent) {
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			t.logger.Debug("progressTracker: subscriber full, event dropped",
				zap.String("batch_id", ev.BatchID.String()))
		}
	}
}

func (t *ProgressTracker) save(snap port.BatchSnapshot) {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotSaveLimit)
	defer cancel()
	if err := t.store.Save(ctx, snap); err != nil {
		t.logger.Warn("progressTracker: snapshot not saved",
			zap.String("batch_id", snap.ID.String()), zap.Error(err))
	}
}

func cloneBatch(snap port.BatchSnapshot) port.BatchSnapshot {
	snap.Files = append([]domain.UploadedFile(nil), snap.Files...)
	return snap
}
