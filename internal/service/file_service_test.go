package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dealdossier/internal/domain"
	"dealdossier/internal/service"
	"dealdossier/mocks"
)

type fileFixture struct {
	svc          service.FileService
	fileRepo     *mocks.MockFileRepo
	projectRepo  *mocks.MockProjectRepo
	evidenceRepo *mocks.MockEvidenceRepo
	storage      *mocks.MockObjectStorage
	sess         *domain.Session
	projectID    uuid.UUID
}

func newFileFixture() *fileFixture {
	f := &fileFixture{
		fileRepo:     new(mocks.MockFileRepo),
		projectRepo:  new(mocks.MockProjectRepo),
		evidenceRepo: new(mocks.MockEvidenceRepo),
		storage:      new(mocks.MockObjectStorage),
		sess:         ownerSession(),
		projectID:    uuid.New(),
	}
	f.svc = service.NewFileService(f.fileRepo, f.projectRepo, f.evidenceRepo, f.storage, "dossier", 900, nil)
	f.projectRepo.On("GetByID", mock.Anything, f.sess.User.ID, f.projectID).
		Return(&domain.Project{ID: f.projectID, UserID: f.sess.User.ID}, nil)
	return f
}

func (f *fileFixture) file(fileURL string) *domain.FileRecord {
	rec := &domain.FileRecord{
		ID:                 uuid.New(),
		ProjectID:          f.projectID,
		Name:               "cim.pdf",
		FileURL:            fileURL,
		UploadStatus:       domain.FileStatusCompleted,
		ProcessingProgress: 100,
		Insights:           json.RawMessage(`{"kind":"pdf"}`),
	}
	f.fileRepo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	return rec
}

func TestFileService_ProcessingStatus(t *testing.T) {
	f := newFileFixture()
	rec := f.file("p/1-cim.pdf")

	status, err := f.svc.GetProcessingStatus(context.Background(), f.sess, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusCompleted, status.UploadStatus)
	assert.Equal(t, 100, status.ProcessingProgress)
	assert.JSONEq(t, `{"kind":"pdf"}`, string(status.Insights))
}

func TestFileService_ForeignFileIsHidden(t *testing.T) {
	f := newFileFixture()
	foreign := &domain.FileRecord{ID: uuid.New(), ProjectID: uuid.New()}
	f.fileRepo.On("GetByID", mock.Anything, foreign.ID).Return(foreign, nil)
	f.projectRepo.On("GetByID", mock.Anything, f.sess.User.ID, foreign.ProjectID).Return(nil, domain.ErrProjectNotFound)

	_, err := f.svc.Get(context.Background(), f.sess, foreign.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.svc.Delete(context.Background(), f.sess, foreign.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.fileRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestFileService_DownloadURL(t *testing.T) {
	f := newFileFixture()
	rec := f.file("p/1-cim.pdf")
	f.storage.On("GetPresignedURL", mock.Anything, "dossier", "p/1-cim.pdf", int64(900)).
		Return("https://objects.example.com/p/1-cim.pdf?sig=abc", nil)

	url, err := f.svc.GetDownloadURL(context.Background(), f.sess, rec.ID)
	require.NoError(t, err)
	assert.Contains(t, url, "sig=abc")

	pending := f.file("")
	_, err = f.svc.GetDownloadURL(context.Background(), f.sess, pending.ID)
	assert.ErrorIs(t, err, domain.ErrFileNotReady)
}

func TestFileService_Delete(t *testing.T) {
	f := newFileFixture()
	rec := f.file("p/1-cim.pdf")
	f.storage.On("Delete", mock.Anything, "dossier", "p/1-cim.pdf").Return(nil)
	f.fileRepo.On("Delete", mock.Anything, rec.ID).Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), f.sess, rec.ID))
	f.fileRepo.AssertExpectations(t)
}

func TestFileService_DeleteStorageFailure(t *testing.T) {
	f := newFileFixture()
	rec := f.file("p/1-cim.pdf")
	cause := errors.New("service unavailable")
	f.storage.On("Delete", mock.Anything, "dossier", "p/1-cim.pdf").Return(cause)

	err := f.svc.Delete(context.Background(), f.sess, rec.ID)
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "p/1-cim.pdf", transportErr.Key)
	assert.ErrorIs(t, err, cause)
	f.fileRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestFileService_Evidence(t *testing.T) {
	f := newFileFixture()
	rec := f.file("p/1-cim.pdf")
	items := []domain.Evidence{{ID: uuid.New(), FileID: rec.ID, Content: "Revenue: $4.1M", Confidence: 0.9}}
	f.evidenceRepo.On("ListByFile", mock.Anything, rec.ID).Return(items, nil)
	f.evidenceRepo.On("ListByProject", mock.Anything, f.projectID, 0, 50).Return(items, 1, nil)

	got, err := f.svc.ListEvidence(context.Background(), f.sess, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, items, got)

	page, total, err := f.svc.ListProjectEvidence(context.Background(), f.sess, f.projectID, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, page, 1)
}

func TestFileService_ListByProject(t *testing.T) {
	f := newFileFixture()
	f.fileRepo.On("ListByProject", mock.Anything, f.projectID, domain.FileStatusError, 0, 20).
		Return([]domain.FileRecord{{ID: uuid.New(), UploadStatus: domain.FileStatusError}}, 1, nil)

	files, total, err := f.svc.ListByProject(context.Background(), f.sess, f.projectID, domain.FileStatusError, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, domain.FileStatusError, files[0].UploadStatus)

	other := uuid.New()
	f.projectRepo.On("GetByID", mock.Anything, f.sess.User.ID, other).Return(nil, domain.ErrProjectNotFound)
	_, _, err = f.svc.ListByProject(context.Background(), f.sess, other, "", 0, 20)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}
