package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dealdossier/internal/classify"
	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

const (
	transportShare = 90
	sniffBytes     = 3072

	defaultStepTimeout = 60 * time.Second
)

// UploadItem is one file offered to a batch. Open may be called more than
// once and must return the content from the start each time. Release, when
// set, is called once the batch no longer needs the content.
type UploadItem struct {
	Name      string
	MediaType string
	Size      int64
	Open      func() (io.ReadCloser, error)
	Release   func()
}

// Rejection reports an item that failed admission.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// BatchHandle identifies a started batch.
type BatchHandle struct {
	ID    uuid.UUID             `json:"id"`
	Files []domain.UploadedFile `json:"files"`
}

// BatchResult is delivered once every file of a batch is terminal.
type BatchResult struct {
	BatchID   uuid.UUID             `json:"batch_id"`
	ProjectID uuid.UUID             `json:"project_id"`
	Files     []domain.UploadedFile `json:"files"`
	Cancelled bool                  `json:"cancelled"`
}

// Completed counts files that reached completed.
func (r *BatchResult) Completed() int {
	n := 0
	for i := range r.Files {
		if r.Files[i].Status == domain.FileStatusCompleted {
			n++
		}
	}
	return n
}

// Failed counts files that ended in error.
func (r *BatchResult) Failed() int {
	return len(r.Files) - r.Completed()
}

// UploadConfig holds the orchestrator limits.
type UploadConfig struct {
	Bucket      string
	MaxBytes    int64
	Concurrency int
	StepTimeout time.Duration
}

// Extractor produces an insight from file content.
type Extractor interface {
	Extract(ctx context.Context, fileID uuid.UUID, strategy domain.Strategy, name string, r io.Reader) (domain.Insight, error)
}

// UploadService runs upload batches through transport, record creation,
// extraction and persistence.
type UploadService interface {
	StartBatch(ctx context.Context, sess *domain.Session, projectID uuid.UUID, items []UploadItem, onComplete func(BatchResult)) (*BatchHandle, []Rejection, error)
	RunBatch(ctx context.Context, sess *domain.Session, projectID uuid.UUID, items []UploadItem) (*BatchResult, []Rejection, error)
	Cancel(ctx context.Context, sess *domain.Session, batchID uuid.UUID) error
	Batch(ctx context.Context, sess *domain.Session, batchID uuid.UUID) (*port.BatchSnapshot, error)
	Subscribe(ctx context.Context, sess *domain.Session, batchID uuid.UUID) (<-chan BatchEvent, func(), error)
	Reprocess(ctx context.Context, file *domain.FileRecord) error
	Shutdown(ctx context.Context) error
}

type batch struct {
	id        uuid.UUID
	projectID uuid.UUID
	userID    uuid.UUID
	items     []UploadItem
	kinds     []classify.Kind
	ctx       context.Context
	cancel    context.CancelFunc
}

type uploadService struct {
	projectRepo port.ProjectRepository
	fileRepo    port.FileRepository
	storage     port.ObjectStorage
	extractor   Extractor
	persister   *InsightPersister
	tracker     *ProgressTracker
	cfg         UploadConfig
	logger      *zap.Logger

	root     context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	active   map[uuid.UUID]*batch
	shutdown bool
}

// NewUploadService creates the upload orchestrator.
func NewUploadService(
	projectRepo port.ProjectRepository,
	fileRepo port.FileRepository,
	storage port.ObjectStorage,
	extractor Extractor,
	persister *InsightPersister,
	tracker *ProgressTracker,
	cfg UploadConfig,
	logger *zap.Logger,
) UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = classify.DefaultMaxBytes
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	if tracker == nil {
		tracker = NewProgressTracker(nil, logger)
	}
	root, stop := context.WithCancel(context.Background())
	return &uploadService{
		projectRepo: projectRepo,
		fileRepo:    fileRepo,
		storage:     storage,
		extractor:   extractor,
		persister:   persister,
		tracker:     tracker,
		cfg:         cfg,
		logger:      logger,
		root:        root,
		stop:        stop,
		active:      make(map[uuid.UUID]*batch),
	}
}

func (s *uploadService) StartBatch(ctx context.Context, sess *domain.Session, projectID uuid.UUID, items []UploadItem, onComplete func(BatchResult)) (*BatchHandle, []Rejection, error) {
	if err := requireSession(sess); err != nil {
		releaseAll(items)
		return nil, nil, err
	}
	if _, err := s.projectRepo.GetByID(ctx, sess.UserID(), projectID); err != nil {
		releaseAll(items)
		return nil, nil, err
	}

	b := &batch{id: uuid.New(), projectID: projectID, userID: sess.UserID()}
	var rejections []Rejection
	var files []domain.UploadedFile
	for _, item := range items {
		kind, err := s.admit(item)
		if err != nil {
			rejections = append(rejections, Rejection{Name: item.Name, Reason: err.Error(), Err: err})
			release(item)
			continue
		}
		b.items = append(b.items, item)
		b.kinds = append(b.kinds, kind)
		files = append(files, domain.UploadedFile{
			ID:        uuid.New(),
			ProjectID: projectID,
			Name:      item.Name,
			MediaType: kind.MediaType,
			Size:      item.Size,
			Strategy:  kind.Strategy,
			Status:    domain.FileStatusReady,
		})
	}
	if len(b.items) == 0 {
		return nil, rejections, domain.ErrEmptyBatch
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		releaseAll(b.items)
		return nil, rejections, fmt.Errorf("uploadService.StartBatch: %w", context.Canceled)
	}
	b.ctx, b.cancel = context.WithCancel(s.root)
	s.active[b.id] = b
	s.wg.Add(1)
	s.mu.Unlock()

	s.tracker.Register(port.BatchSnapshot{ID: b.id, ProjectID: projectID, UserID: b.userID, Files: files})
	s.logger.Info("uploadService.StartBatch: batch started",
		zap.String("batch_id", b.id.String()),
		zap.String("project_id", projectID.String()),
		zap.Int("files", len(files)),
		zap.Int("rejected", len(rejections)))

	go s.run(b, onComplete)

	return &BatchHandle{ID: b.id, Files: files}, rejections, nil
}

func (s *uploadService) RunBatch(ctx context.Context, sess *domain.Session, projectID uuid.UUID, items []UploadItem) (*BatchResult, []Rejection, error) {
	done := make(chan BatchResult, 1)
	handle, rejections, err := s.StartBatch(ctx, sess, projectID, items, func(r BatchResult) { done <- r })
	if err != nil {
		return nil, rejections, err
	}

	select {
	case r := <-done:
		return &r, rejections, nil
	case <-ctx.Done():
		s.cancelBatch(handle.ID)
		r := <-done
		return &r, rejections, nil
	}
}

func (s *uploadService) Cancel(ctx context.Context, sess *domain.Session, batchID uuid.UUID) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	s.mu.Lock()
	b, ok := s.active[batchID]
	s.mu.Unlock()
	if ok {
		if b.userID != sess.UserID() {
			return domain.ErrBatchNotFound
		}
		b.cancel()
		s.logger.Info("uploadService.Cancel: batch cancelled", zap.String("batch_id", batchID.String()))
		return nil
	}
	// A finished batch has nothing left to cancel.
	_, err := s.Batch(ctx, sess, batchID)
	return err
}

func (s *uploadService) cancelBatch(batchID uuid.UUID) {
	s.mu.Lock()
	b, ok := s.active[batchID]
	s.mu.Unlock()
	if ok {
		b.cancel()
	}
}

func (s *uploadService) Batch(ctx context.Context, sess *domain.Session, batchID uuid.UUID) (*port.BatchSnapshot, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	snap, err := s.tracker.Snapshot(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if snap.UserID != sess.UserID() {
		return nil, domain.ErrBatchNotFound
	}
	return snap, nil
}

func (s *uploadService) Subscribe(ctx context.Context, sess *domain.Session, batchID uuid.UUID) (<-chan BatchEvent, func(), error) {
	snap, err := s.Batch(ctx, sess, batchID)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe, ok := s.tracker.Subscribe(batchID)
	if !ok {
		// Already finished: replay the final state and close.
		out := make(chan BatchEvent, len(snap.Files)+1)
		for i := range snap.Files {
			f := snap.Files[i]
			out <- BatchEvent{BatchID: batchID, Index: i, File: &f, At: snap.UpdatedAt}
		}
		out <- BatchEvent{BatchID: batchID, Index: -1, Done: true, Cancelled: snap.Cancelled, At: snap.UpdatedAt}
		close(out)
		return out, func() {}, nil
	}
	return ch, unsubscribe, nil
}

// Shutdown cancels running batches and waits for them to settle.
func (s *uploadService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *uploadService) admit(item UploadItem) (classify.Kind, error) {
	var head io.Reader
	if item.Open != nil {
		rc, err := item.Open()
		if err != nil {
			return classify.Kind{}, fmt.Errorf("opening %s: %w", item.Name, err)
		}
		defer rc.Close()
		head = io.LimitReader(rc, sniffBytes)
	}
	return classify.Admit(item.Name, item.MediaType, item.Size, s.cfg.MaxBytes, head)
}

func (s *uploadService) run(b *batch, onComplete func(BatchResult)) {
	defer s.wg.Done()
	defer releaseAll(b.items)

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range b.items {
		i := i
		g.Go(func() error {
			s.processFile(b, i)
			return nil
		})
	}
	_ = g.Wait()

	cancelled := errors.Is(b.ctx.Err(), context.Canceled)
	b.cancel()

	s.mu.Lock()
	delete(s.active, b.id)
	s.mu.Unlock()

	snap := s.tracker.Finish(b.id, cancelled)
	result := BatchResult{BatchID: b.id, ProjectID: b.projectID, Files: snap.Files, Cancelled: cancelled}
	s.logger.Info("uploadService: batch finished",
		zap.String("batch_id", b.id.String()),
		zap.Int("completed", result.Completed()),
		zap.Int("failed", result.Failed()),
		zap.Bool("cancelled", cancelled))

	if onComplete != nil {
		onComplete(result)
	}
}

// processFile drives one file through its ordered steps. Every exit leaves the
// file in a terminal state.
func (s *uploadService) processFile(b *batch, idx int) {
	item := b.items[idx]
	kind := b.kinds[idx]
	log := s.logger.With(zap.String("batch_id", b.id.String()), zap.String("file", item.Name))

	if b.ctx.Err() != nil {
		s.failFile(b, idx, domain.ErrBatchCancelled, false)
		return
	}

	s.tracker.Update(b.id, idx, func(f *domain.UploadedFile) {
		f.Status = domain.FileStatusUploading
		f.Progress = 0
	})

	key := objectKey(b.projectID, item.Name)
	if err := s.transport(b, idx, item, kind, key); err != nil {
		log.Warn("uploadService: transport failed", zap.Error(err))
		s.failFile(b, idx, s.causeFor(b, err), false)
		return
	}

	record := &domain.FileRecord{
		ProjectID:          b.projectID,
		Name:               item.Name,
		Type:               kind.MediaType,
		Size:               item.Size,
		FileURL:            key,
		UploadStatus:       domain.FileStatusUploading,
		ProcessingProgress: transportShare,
		UploadedBy:         b.userID,
	}
	if err := s.createRecord(b.ctx, record); err != nil {
		log.Warn("uploadService: record not created", zap.Error(err))
		s.failFile(b, idx, s.causeFor(b, err), false)
		return
	}
	recordID := record.ID
	s.tracker.Update(b.id, idx, func(f *domain.UploadedFile) {
		f.RecordID = &recordID
		f.Progress = transportShare
	})

	insight, err := s.extract(b.ctx, recordID, kind.Strategy, item)
	if err != nil {
		log.Info("uploadService: extraction failed", zap.Error(err))
		s.failRecord(b, idx, recordID, s.causeFor(b, err))
		return
	}

	stepCtx, cancel := context.WithTimeout(b.ctx, s.cfg.StepTimeout)
	evidence, err := s.persister.Persist(stepCtx, recordID, insight)
	cancel()
	if err != nil {
		log.Warn("uploadService: persist failed", zap.Error(err))
		s.failRecord(b, idx, recordID, s.causeFor(b, err))
		return
	}

	s.tracker.Update(b.id, idx, func(f *domain.UploadedFile) {
		f.Status = domain.FileStatusCompleted
		f.Progress = 100
		f.Error = ""
	})
	log.Info("uploadService: file completed",
		zap.String("file_id", recordID.String()),
		zap.String("strategy", string(kind.Strategy)),
		zap.Int("evidence", evidence))
}

func (s *uploadService) transport(b *batch, idx int, item UploadItem, kind classify.Kind, key string) error {
	ctx, cancel := context.WithTimeout(b.ctx, s.cfg.StepTimeout)
	defer cancel()

	rc, err := item.Open()
	if err != nil {
		return &domain.TransportError{Key: key, Err: err}
	}
	defer rc.Close()

	_, err = s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        rc,
		ContentType: kind.MediaType,
		Size:        item.Size,
		OnProgress: func(pct int) {
			mapped := pct * transportShare / 100
			s.tracker.Update(b.id, idx, func(f *domain.UploadedFile) {
				if f.Status == domain.FileStatusUploading && mapped > f.Progress {
					f.Progress = mapped
				}
			})
		},
	})
	if err != nil {
		return &domain.TransportError{Key: key, Err: err}
	}
	return nil
}

func (s *uploadService) createRecord(ctx context.Context, record *domain.FileRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	defer cancel()
	if err := s.fileRepo.Create(ctx, record); err != nil {
		return &domain.PersistenceError{Op: "create file record", Err: err}
	}
	return nil
}

func (s *uploadService) extract(ctx context.Context, fileID uuid.UUID, strategy domain.Strategy, item UploadItem) (domain.Insight, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	defer cancel()

	rc, err := item.Open()
	if err != nil {
		return nil, &domain.ExtractionError{FileID: fileID, Strategy: strategy, Err: err}
	}
	defer rc.Close()
	return s.extractor.Extract(ctx, fileID, strategy, item.Name, rc)
}

// causeFor reports a cancelled batch as such rather than as the step error it surfaced through.
func (s *uploadService) causeFor(b *batch, err error) error {
	if errors.Is(b.ctx.Err(), context.Canceled) {
		return domain.ErrBatchCancelled
	}
	return err
}

// failFile moves a file to error. Transport and record failures keep the
// progress reached so far; resetProgress drops it to 0.
func (s *uploadService) failFile(b *batch, idx int, err error, resetProgress bool) {
	msg := err.Error()
	s.tracker.Update(b.id, idx, func(f *domain.UploadedFile) {
		f.Status = domain.FileStatusError
		f.Error = msg
		if resetProgress {
			f.Progress = 0
		}
	})
}

// failRecord ends a file whose record exists: the row goes to error with progress 0.
func (s *uploadService) failRecord(b *batch, idx int, recordID uuid.UUID, err error) {
	msg := err.Error()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(b.ctx), s.cfg.StepTimeout)
	defer cancel()
	if markErr := s.fileRepo.MarkError(ctx, recordID, msg); markErr != nil {
		s.logger.Error("uploadService: record not marked as failed",
			zap.String("file_id", recordID.String()), zap.Error(markErr))
	}
	s.failFile(b, idx, errors.New(msg), true)
}

// Reprocess re-extracts a stored file and persists the new insight.
func (s *uploadService) Reprocess(ctx context.Context, file *domain.FileRecord) error {
	if file.FileURL == "" {
		return domain.ErrFileNotReady
	}
	kind, err := classify.Classify(file.Type)
	if err != nil {
		return err
	}

	rc, err := s.storage.Download(ctx, s.cfg.Bucket, file.FileURL)
	if err != nil {
		return &domain.TransportError{Key: file.FileURL, Err: err}
	}
	defer rc.Close()

	insight, err := s.extractor.Extract(ctx, file.ID, kind.Strategy, file.Name, rc)
	if err == nil {
		_, err = s.persister.Persist(ctx, file.ID, insight)
	}
	if err != nil {
		if markErr := s.fileRepo.MarkError(ctx, file.ID, err.Error()); markErr != nil {
			s.logger.Error("uploadService.Reprocess: record not marked as failed", zap.Error(markErr))
		}
		return err
	}
	s.logger.Info("uploadService.Reprocess: file completed", zap.String("file_id", file.ID.String()))
	return nil
}

func objectKey(projectID uuid.UUID, name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s/%d-%s", projectID, time.Now().UnixMilli(), base)
}

func release(item UploadItem) {
	if item.Release != nil {
		item.Release()
	}
}

func releaseAll(items []UploadItem) {
	for _, item := range items {
		release(item)
	}
}
