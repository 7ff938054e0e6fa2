package handler_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
	"dealdossier/internal/handler"
	"dealdossier/internal/service"
	"dealdossier/mocks"
)

func newProjectHandler() (*handler.ProjectHandler, *mocks.MockProjectService) {
	mockSvc := new(mocks.MockProjectService)
	return handler.NewProjectHandler(mockSvc), mockSvc
}

func TestProjectHandler_Create_Success(t *testing.T) {
	h, mockSvc := newProjectHandler()
	sess := testSession()

	input := service.CreateProjectInput{Name: "Project Falcon", Description: "Series B"}
	project := &domain.Project{ID: uuid.New(), Name: input.Name, Description: input.Description, UserID: sess.UserID(), CreatedAt: time.Now()}
	mockSvc.On("Create", mock.Anything, sess, input).Return(project, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/projects",
		bytes.NewBufferString(`{"name":"Project Falcon","description":"Series B"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	setSession(c, sess)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
	mockSvc.AssertExpectations(t)
}

func TestProjectHandler_Create_MissingName(t *testing.T) {
	h, mockSvc := newProjectHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewBufferString(`{"description":"x"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	setSession(c, testSession())

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProjectHandler_Create_NoSession(t *testing.T) {
	h, _ := newProjectHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewBufferString(`{"name":"x"}`))

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProjectHandler_List_SearchAndPagination(t *testing.T) {
	h, mockSvc := newProjectHandler()
	sess := testSession()

	projects := []domain.Project{{ID: uuid.New(), Name: "Falcon"}}
	mockSvc.On("List", mock.Anything, sess, "fal", 20, 10).Return(projects, 21, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/projects?q=fal&offset=20&limit=10", http.NoBody)
	setSession(c, sess)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	if assert.NotNil(t, resp.Meta) {
		assert.Equal(t, 21, resp.Meta.Total)
		assert.Equal(t, 20, resp.Meta.Offset)
		assert.Equal(t, 10, resp.Meta.Limit)
	}
	mockSvc.AssertExpectations(t)
}

func TestProjectHandler_List_LimitClamped(t *testing.T) {
	h, mockSvc := newProjectHandler()
	sess := testSession()

	mockSvc.On("List", mock.Anything, sess, "", 0, 20).Return([]domain.Project{}, 0, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/projects?limit=500&offset=-3", http.NoBody)
	setSession(c, sess)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestProjectHandler_GetByID_InvalidID(t *testing.T) {
	h, _ := newProjectHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/projects/nope", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	setSession(c, testSession())

	h.GetByID(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decode(t, w).Error.Code)
}

func TestProjectHandler_GetByID_NotFound(t *testing.T) {
	h, mockSvc := newProjectHandler()
	sess := testSession()
	projectID := uuid.New()

	mockSvc.On("Get", mock.Anything, sess, projectID).Return(nil, domain.ErrProjectNotFound)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/projects/"+projectID.String(), http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: projectID.String()}}
	setSession(c, sess)

	h.GetByID(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PROJECT_NOT_FOUND", decode(t, w).Error.Code)
}

func TestProjectHandler_Update_PartialFields(t *testing.T) {
	h, mockSvc := newProjectHandler()
	sess := testSession()
	projectID := uuid.New()

	name := "Falcon II"
	mockSvc.On("Update", mock.Anything, sess, projectID, mock.MatchedBy(func(in service.UpdateProjectInput) bool {
		return in.Name != nil && *in.Name == name && in.Description == nil
	})).Return(&domain.Project{ID: projectID, Name: name}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPut, "/api/v1/projects/"+projectID.String(), bytes.NewBufferString(`{"name":"Falcon II"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: projectID.String()}}
	setSession(c, sess)

	h.Update(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestProjectHandler_Delete(t *testing.T) {
	h, mockSvc := newProjectHandler()
	sess := testSession()
	projectID := uuid.New()

	mockSvc.On("Delete", mock.Anything, sess, projectID).Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodDelete, "/api/v1/projects/"+projectID.String(), http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: projectID.String()}}
	setSession(c, sess)

	h.Delete(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}
