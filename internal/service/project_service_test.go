package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
	"dealdossier/internal/service"
	"dealdossier/mocks"
)

func setupProjectService() (service.ProjectService, *mocks.MockProjectRepo, *mocks.MockFileRepo, *mocks.MockObjectStorage) {
	projectRepo := new(mocks.MockProjectRepo)
	fileRepo := new(mocks.MockFileRepo)
	storage := new(mocks.MockObjectStorage)
	svc := service.NewProjectService(projectRepo, fileRepo, storage, "dossier", nil)
	return svc, projectRepo, fileRepo, storage
}

func ownerSession() *domain.Session {
	return &domain.Session{User: domain.User{ID: uuid.New(), Email: "owner@example.com"}}
}

func TestProjectService_Create(t *testing.T) {
	svc, projectRepo, _, _ := setupProjectService()
	sess := ownerSession()

	projectRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Project) bool {
		return p.Name == "Project Atlas" && p.Description == "Series B target" && p.UserID == sess.User.ID
	})).Return(nil)

	project, err := svc.Create(context.Background(), sess, service.CreateProjectInput{
		Name:        "  Project Atlas ",
		Description: "Series B target ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Project Atlas", project.Name)
	projectRepo.AssertExpectations(t)
}

func TestProjectService_CreateValidation(t *testing.T) {
	svc, projectRepo, _, _ := setupProjectService()

	_, err := svc.Create(context.Background(), ownerSession(), service.CreateProjectInput{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(context.Background(), nil, service.CreateProjectInput{Name: "Atlas"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	projectRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProjectService_List(t *testing.T) {
	svc, projectRepo, _, _ := setupProjectService()
	sess := ownerSession()
	projects := []domain.Project{{ID: uuid.New(), Name: "Atlas"}}

	projectRepo.On("List", mock.Anything, sess.User.ID, port.ProjectFilter{Search: "atl", Offset: 0, Limit: 20}).
		Return(projects, 1, nil)

	got, total, err := svc.List(context.Background(), sess, "  atl ", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, projects, got)
}

func TestProjectService_Update(t *testing.T) {
	svc, projectRepo, _, _ := setupProjectService()
	sess := ownerSession()
	projectID := uuid.New()
	existing := &domain.Project{ID: projectID, Name: "Atlas", Description: "old", UserID: sess.User.ID}

	projectRepo.On("GetByID", mock.Anything, sess.User.ID, projectID).Return(existing, nil)
	projectRepo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Project")).Return(nil)

	desc := "Carve-out diligence"
	updated, err := svc.Update(context.Background(), sess, projectID, service.UpdateProjectInput{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Atlas", updated.Name)
	assert.Equal(t, "Carve-out diligence", updated.Description)

	blank := " "
	_, err = svc.Update(context.Background(), sess, projectID, service.UpdateProjectInput{Name: &blank})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProjectService_UpdateNotFound(t *testing.T) {
	svc, projectRepo, _, _ := setupProjectService()
	sess := ownerSession()
	projectID := uuid.New()
	projectRepo.On("GetByID", mock.Anything, sess.User.ID, projectID).Return(nil, domain.ErrProjectNotFound)

	name := "Renamed"
	_, err := svc.Update(context.Background(), sess, projectID, service.UpdateProjectInput{Name: &name})
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	projectRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestProjectService_DeleteRemovesObjects(t *testing.T) {
	svc, projectRepo, fileRepo, storage := setupProjectService()
	sess := ownerSession()
	projectID := uuid.New()

	projectRepo.On("GetByID", mock.Anything, sess.User.ID, projectID).Return(&domain.Project{ID: projectID}, nil)
	fileRepo.On("ListByProject", mock.Anything, projectID, domain.FileStatus(""), 0, 200).Return([]domain.FileRecord{
		{ID: uuid.New(), FileURL: "p/1-a.csv"},
		{ID: uuid.New()},
		{ID: uuid.New(), FileURL: "p/2-b.pdf"},
	}, 3, nil)
	projectRepo.On("Delete", mock.Anything, sess.User.ID, projectID).Return(nil)
	storage.On("Delete", mock.Anything, "dossier", "p/1-a.csv").Return(errors.New("access denied"))
	storage.On("Delete", mock.Anything, "dossier", "p/2-b.pdf").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), sess, projectID))
	storage.AssertNumberOfCalls(t, "Delete", 2)
	projectRepo.AssertExpectations(t)
}

func TestProjectService_DeleteKeepsObjectsWhenRowDeleteFails(t *testing.T) {
	svc, projectRepo, fileRepo, storage := setupProjectService()
	sess := ownerSession()
	projectID := uuid.New()

	projectRepo.On("GetByID", mock.Anything, sess.User.ID, projectID).Return(&domain.Project{ID: projectID}, nil)
	fileRepo.On("ListByProject", mock.Anything, projectID, domain.FileStatus(""), 0, 200).
		Return([]domain.FileRecord{{ID: uuid.New(), FileURL: "p/1-a.csv"}}, 1, nil)
	projectRepo.On("Delete", mock.Anything, sess.User.ID, projectID).Return(errors.New("deadlock"))

	assert.Error(t, svc.Delete(context.Background(), sess, projectID))
	storage.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
