package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dealdossier/internal/domain"
	"dealdossier/internal/extract"
	"dealdossier/internal/port"
	"dealdossier/internal/service"
	"dealdossier/mocks"
)

type uploadFixture struct {
	projectRepo *mocks.MockProjectRepo
	fileRepo    *mocks.MockFileRepo
	storage     *mocks.MockObjectStorage
	store       *mocks.MockInsightStore
	svc         service.UploadService
	sess        *domain.Session
	projectID   uuid.UUID
}

func verifyNoLeaks(t *testing.T) {
	t.Helper()
	opt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, opt) })
}

func newUploadFixture(t *testing.T, concurrency int) *uploadFixture {
	t.Helper()
	f := &uploadFixture{
		projectRepo: new(mocks.MockProjectRepo),
		fileRepo:    new(mocks.MockFileRepo),
		storage:     new(mocks.MockObjectStorage),
		store:       new(mocks.MockInsightStore),
		sess:        &domain.Session{User: domain.User{ID: uuid.New(), Email: "analyst@example.com"}},
		projectID:   uuid.New(),
	}
	f.projectRepo.On("GetByID", mock.Anything, f.sess.User.ID, f.projectID).
		Return(&domain.Project{ID: f.projectID, UserID: f.sess.User.ID, Name: "Acme"}, nil)

	tracker := service.NewProgressTracker(nil, nil)
	f.svc = service.NewUploadService(
		f.projectRepo,
		f.fileRepo,
		f.storage,
		extract.New(),
		service.NewInsightPersister(f.store, nil),
		tracker,
		service.UploadConfig{Bucket: "dossier", Concurrency: concurrency, StepTimeout: 5 * time.Second},
		nil,
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.svc.Shutdown(ctx)
	})
	return f
}

// expectCreate assigns a record ID the way the repository does.
func (f *uploadFixture) expectCreate() {
	f.fileRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.FileRecord")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.FileRecord).ID = uuid.New()
		}).
		Return(nil)
}

// expectUpload drains the body and reports progress. A non-nil gate blocks the upload until closed.
func (f *uploadFixture) expectUpload(gate <-chan struct{}) {
	f.storage.On("Upload", mock.Anything, mock.AnythingOfType("port.UploadInput")).
		Run(func(args mock.Arguments) {
			if gate != nil {
				<-gate
			}
			in := args.Get(1).(port.UploadInput)
			_, _ = io.Copy(io.Discard, in.Body)
			in.OnProgress(50)
			in.OnProgress(100)
		}).
		Return(&port.UploadOutput{ETag: "etag"}, nil)
}

func memItem(name, mediaType string, data []byte) service.UploadItem {
	return service.UploadItem{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func salesCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("date,region,revenue,units,rep\n")
	regions := []string{"North", "South", "West"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%s,%s,%d,%d,rep%d\n",
			start.AddDate(0, 0, i).Format("2006-01-02"), regions[i%len(regions)], 1000+i*25, 10+i, i%7)
	}
	return []byte(b.String())
}

func TestUploadService_CSVEndToEnd(t *testing.T) {
	verifyNoLeaks(t)
	f := newUploadFixture(t, 2)

	gate := make(chan struct{})
	f.expectUpload(gate)
	f.expectCreate()

	var saved []byte
	var evidence []domain.Evidence
	f.store.On("SaveInsight", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(2).([]byte)
			evidence = args.Get(3).([]domain.Evidence)
		}).
		Return(nil)

	done := make(chan service.BatchResult, 1)
	handle, rejections, err := f.svc.StartBatch(context.Background(), f.sess, f.projectID,
		[]service.UploadItem{memItem("sales.csv", "text/csv", salesCSV(50))},
		func(r service.BatchResult) { done <- r })
	require.NoError(t, err)
	assert.Empty(t, rejections)
	require.Len(t, handle.Files, 1)
	assert.Equal(t, domain.FileStatusReady, handle.Files[0].Status)
	assert.Equal(t, domain.StrategyCSV, handle.Files[0].Strategy)

	events, unsubscribe, err := f.svc.Subscribe(context.Background(), f.sess, handle.ID)
	require.NoError(t, err)
	defer unsubscribe()
	close(gate)

	var statuses []domain.FileStatus
	var finished bool
	for ev := range events {
		if ev.Done {
			finished = true
			continue
		}
		if n := len(statuses); n == 0 || statuses[n-1] != ev.File.Status {
			statuses = append(statuses, ev.File.Status)
		}
	}
	assert.True(t, finished)
	assert.Equal(t, []domain.FileStatus{domain.FileStatusUploading, domain.FileStatusCompleted}, statuses)

	result := <-done
	require.Len(t, result.Files, 1)
	file := result.Files[0]
	assert.Equal(t, domain.FileStatusCompleted, file.Status)
	assert.Equal(t, 100, file.Progress)
	assert.Empty(t, file.Error)
	require.NotNil(t, file.RecordID)
	assert.False(t, result.Cancelled)

	var insight domain.CSVInsight
	require.NoError(t, json.Unmarshal(saved, &insight))
	assert.Equal(t, 50, insight.RowCount)
	assert.Equal(t, 5, insight.ColumnCount)
	require.NotEmpty(t, insight.Preview)
	assert.Equal(t, []string{"date", "region", "revenue", "units", "rep"}, insight.Preview[0])
	assert.Len(t, evidence, len(insight.KeyMetrics))

	f.fileRepo.AssertNotCalled(t, "MarkError", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadService_InvalidJSON(t *testing.T) {
	verifyNoLeaks(t)
	f := newUploadFixture(t, 1)
	f.expectUpload(nil)
	f.expectCreate()
	f.fileRepo.On("MarkError", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string")).Return(nil)

	result, _, err := f.svc.RunBatch(context.Background(), f.sess, f.projectID,
		[]service.UploadItem{memItem("broken.json", "application/json", []byte(`{"revenue": 12,`))})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	file := result.Files[0]
	assert.Equal(t, domain.FileStatusError, file.Status)
	assert.NotEmpty(t, file.Error)
	assert.Equal(t, 0, file.Progress)
	f.store.AssertNotCalled(t, "SaveInsight", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.fileRepo.AssertCalled(t, "MarkError", mock.Anything, *file.RecordID, file.Error)
}

func TestUploadService_BatchWithFailingFile(t *testing.T) {
	verifyNoLeaks(t)
	f := newUploadFixture(t, 2)

	failing := func(in port.UploadInput) bool { return strings.HasSuffix(in.Key, "-b.csv") }
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(failing)).
		Return(nil, errors.New("connection reset"))
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool { return !failing(in) })).
		Run(func(args mock.Arguments) {
			_, _ = io.Copy(io.Discard, args.Get(1).(port.UploadInput).Body)
		}).
		Return(&port.UploadOutput{}, nil)
	f.expectCreate()
	f.store.On("SaveInsight", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var calls atomic.Int32
	done := make(chan service.BatchResult, 3)
	_, _, err := f.svc.StartBatch(context.Background(), f.sess, f.projectID, []service.UploadItem{
		memItem("a.csv", "text/csv", salesCSV(5)),
		memItem("b.csv", "text/csv", salesCSV(5)),
		memItem("c.csv", "text/csv", salesCSV(5)),
	}, func(r service.BatchResult) {
		calls.Add(1)
		done <- r
	})
	require.NoError(t, err)

	result := <-done
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(ctx))
	assert.Equal(t, int32(1), calls.Load())

	require.Len(t, result.Files, 3)
	assert.Equal(t, domain.FileStatusCompleted, result.Files[0].Status)
	assert.Equal(t, domain.FileStatusError, result.Files[1].Status)
	assert.Contains(t, result.Files[1].Error, "connection reset")
	assert.Nil(t, result.Files[1].RecordID)
	assert.Equal(t, domain.FileStatusCompleted, result.Files[2].Status)
	assert.Equal(t, 2, result.Completed())
	assert.Equal(t, 1, result.Failed())
	f.fileRepo.AssertNumberOfCalls(t, "Create", 2)
}

func TestUploadService_Cancel(t *testing.T) {
	verifyNoLeaks(t)
	f := newUploadFixture(t, 1)
	f.storage.On("Upload", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled).
		Maybe()

	done := make(chan service.BatchResult, 1)
	handle, _, err := f.svc.StartBatch(context.Background(), f.sess, f.projectID, []service.UploadItem{
		memItem("one.csv", "text/csv", salesCSV(3)),
		memItem("two.csv", "text/csv", salesCSV(3)),
	}, func(r service.BatchResult) { done <- r })
	require.NoError(t, err)

	stranger := &domain.Session{User: domain.User{ID: uuid.New()}}
	assert.ErrorIs(t, f.svc.Cancel(context.Background(), stranger, handle.ID), domain.ErrBatchNotFound)

	require.NoError(t, f.svc.Cancel(context.Background(), f.sess, handle.ID))

	result := <-done
	assert.True(t, result.Cancelled)
	for _, file := range result.Files {
		assert.Equal(t, domain.FileStatusError, file.Status)
		assert.Equal(t, domain.ErrBatchCancelled.Error(), file.Error)
	}
	f.fileRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUploadService_RunBatchContextCancelled(t *testing.T) {
	verifyNoLeaks(t)
	f := newUploadFixture(t, 1)
	f.storage.On("Upload", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled).
		Maybe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	result, _, err := f.svc.RunBatch(ctx, f.sess, f.projectID,
		[]service.UploadItem{memItem("slow.csv", "text/csv", salesCSV(3))})
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, domain.FileStatusError, result.Files[0].Status)
}

func TestUploadService_Admission(t *testing.T) {
	verifyNoLeaks(t)
	f := newUploadFixture(t, 1)
	f.expectUpload(nil)
	f.expectCreate()
	f.store.On("SaveInsight", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	released := 0
	exe := memItem("setup.exe", "application/x-msdownload", []byte("MZ"))
	exe.Release = func() { released++ }

	result, rejections, err := f.svc.RunBatch(context.Background(), f.sess, f.projectID, []service.UploadItem{
		exe,
		memItem("figures.csv", "", salesCSV(4)),
	})
	require.NoError(t, err)
	require.Len(t, rejections, 1)
	assert.Equal(t, "setup.exe", rejections[0].Name)
	assert.ErrorIs(t, rejections[0].Err, domain.ErrUnsupportedType)
	assert.Equal(t, 1, released)

	require.Len(t, result.Files, 1)
	assert.Equal(t, "text/csv", result.Files[0].MediaType)
	assert.Equal(t, domain.FileStatusCompleted, result.Files[0].Status)
}

func TestUploadService_EmptyBatch(t *testing.T) {
	f := newUploadFixture(t, 1)

	big := memItem("huge.csv", "text/csv", nil)
	big.Size = 200 * 1024 * 1024

	_, rejections, err := f.svc.StartBatch(context.Background(), f.sess, f.projectID, []service.UploadItem{big}, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)
	require.Len(t, rejections, 1)
	assert.ErrorIs(t, rejections[0].Err, domain.ErrFileTooLarge)
}

func TestUploadService_ProjectNotFound(t *testing.T) {
	f := newUploadFixture(t, 1)
	other := uuid.New()
	f.projectRepo.On("GetByID", mock.Anything, f.sess.User.ID, other).Return(nil, domain.ErrProjectNotFound)

	_, _, err := f.svc.StartBatch(context.Background(), f.sess, other,
		[]service.UploadItem{memItem("a.csv", "text/csv", salesCSV(2))}, nil)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	_, _, err = f.svc.StartBatch(context.Background(), nil, f.projectID, nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUploadService_SubscribeFinishedBatchReplays(t *testing.T) {
	verifyNoLeaks(t)
	projectRepo := new(mocks.MockProjectRepo)
	storage := new(mocks.MockObjectStorage)
	fileRepo := new(mocks.MockFileRepo)
	store := new(mocks.MockInsightStore)
	progress := new(mocks.MockProgressStore)
	sess := &domain.Session{User: domain.User{ID: uuid.New()}}
	projectID := uuid.New()

	projectRepo.On("GetByID", mock.Anything, sess.User.ID, projectID).Return(&domain.Project{ID: projectID}, nil)
	storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("bucket missing"))

	var last port.BatchSnapshot
	progress.On("Save", mock.Anything, mock.AnythingOfType("port.BatchSnapshot")).
		Run(func(args mock.Arguments) { last = args.Get(1).(port.BatchSnapshot) }).
		Return(nil)

	svc := service.NewUploadService(projectRepo, fileRepo, storage, extract.New(),
		service.NewInsightPersister(store, nil), service.NewProgressTracker(progress, nil),
		service.UploadConfig{Concurrency: 1}, nil)

	result, _, err := svc.RunBatch(context.Background(), sess, projectID,
		[]service.UploadItem{memItem("a.csv", "text/csv", salesCSV(2))})
	require.NoError(t, err)
	require.True(t, last.Done)
	progress.On("Get", mock.Anything, result.BatchID).Return(&last, nil)

	events, unsubscribe, err := svc.Subscribe(context.Background(), sess, result.BatchID)
	require.NoError(t, err)
	defer unsubscribe()

	var got []service.BatchEvent
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, domain.FileStatusError, got[0].File.Status)
	assert.True(t, got[1].Done)
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestUploadService_Reprocess(t *testing.T) {
	f := newUploadFixture(t, 1)
	fileID := uuid.New()
	record := &domain.FileRecord{ID: fileID, Name: "sales.csv", Type: "text/csv", FileURL: "p/1-sales.csv"}

	f.storage.On("Download", mock.Anything, "dossier", "p/1-sales.csv").
		Return(io.NopCloser(bytes.NewReader(salesCSV(10))), nil)
	f.store.On("SaveInsight", mock.Anything, fileID, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.svc.Reprocess(context.Background(), record))
	f.store.AssertExpectations(t)

	assert.ErrorIs(t, f.svc.Reprocess(context.Background(), &domain.FileRecord{ID: uuid.New()}), domain.ErrFileNotReady)
}

func TestUploadService_ReprocessMarksFailure(t *testing.T) {
	f := newUploadFixture(t, 1)
	fileID := uuid.New()
	record := &domain.FileRecord{ID: fileID, Name: "data.json", Type: "application/json", FileURL: "p/1-data.json"}

	f.storage.On("Download", mock.Anything, "dossier", record.FileURL).
		Return(io.NopCloser(strings.NewReader("not json")), nil)
	f.fileRepo.On("MarkError", mock.Anything, fileID, mock.AnythingOfType("string")).Return(nil)

	err := f.svc.Reprocess(context.Background(), record)
	var extractErr *domain.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, fileID, extractErr.FileID)
	f.fileRepo.AssertExpectations(t)
}

func TestUploadService_RevenueMetricBecomesEvidence(t *testing.T) {
	verifyNoLeaks(t)
	projectRepo := new(mocks.MockProjectRepo)
	fileRepo := new(mocks.MockFileRepo)
	storage := new(mocks.MockObjectStorage)
	store := new(mocks.MockInsightStore)
	extractor := new(mocks.MockExtractor)
	sess := &domain.Session{User: domain.User{ID: uuid.New()}}
	projectID := uuid.New()

	projectRepo.On("GetByID", mock.Anything, sess.User.ID, projectID).Return(&domain.Project{ID: projectID}, nil)
	storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	fileRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.FileRecord")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.FileRecord).ID = uuid.New() }).
		Return(nil)
	extractor.On("Extract", mock.Anything, mock.AnythingOfType("uuid.UUID"), domain.StrategyPDF, "cim.pdf", mock.Anything).
		Return(&domain.PDFInsight{
			Kind:       domain.StrategyPDF,
			PageCount:  12,
			KeyMetrics: []domain.KeyMetric{{Label: "Revenue", Value: "$2.4M", Confidence: domain.Confidence(0.95)}},
		}, nil)

	var evidence []domain.Evidence
	store.On("SaveInsight", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { evidence = args.Get(3).([]domain.Evidence) }).
		Return(nil)

	svc := service.NewUploadService(projectRepo, fileRepo, storage, extractor,
		service.NewInsightPersister(store, nil), service.NewProgressTracker(nil, nil),
		service.UploadConfig{Bucket: "dossier", Concurrency: 1}, nil)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	result, _, err := svc.RunBatch(context.Background(), sess, projectID,
		[]service.UploadItem{memItem("cim.pdf", "application/pdf", []byte("%PDF-1.7\n"))})
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusCompleted, result.Files[0].Status)

	require.Len(t, evidence, 1)
	assert.Equal(t, "Revenue: $2.4M", evidence[0].Content)
	assert.InDelta(t, 0.95, evidence[0].Confidence, 1e-9)
	extractor.AssertExpectations(t)
}
