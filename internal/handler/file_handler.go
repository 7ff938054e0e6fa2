package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dealdossier/internal/domain"
	"dealdossier/internal/service"
)

// FileHandler handles file and evidence endpoints.
type FileHandler struct {
	fileService service.FileService
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(fileService service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// ListByProject handles GET /api/v1/projects/:id/files
// @Summary List project files
// @Tags files
// @Produce json
// @Param id path string true "Project ID (UUID)"
// @Param status query string false "Filter by status (ready, uploading, completed, error)"
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.FileRecord,meta=PagMeta} "List of files"
// @Failure 400 {object} ErrorResponseBody "Invalid ID or status"
// @Failure 404 {object} ErrorResponseBody "Project not found"
// @Security BearerAuth
// @Router /projects/{id}/files [get]
func (h *FileHandler) ListByProject(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	status := domain.FileStatus(c.Query("status"))
	switch status {
	case "", domain.FileStatusReady, domain.FileStatusUploading, domain.FileStatusCompleted, domain.FileStatusError:
	default:
		RespondError(c, http.StatusBadRequest, "INVALID_STATUS", "status must be one of ready, uploading, completed, error")
		return
	}

	offset, limit := pagination(c)
	files, total, err := h.fileService.ListByProject(c.Request.Context(), sess, projectID, status, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, files, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/files/:id
// @Summary Get file by ID
// @Description Get file metadata including the stored insight
// @Tags files
// @Produce json
// @Param id path string true "File ID (UUID)"
// @Success 200 {object} Response{data=domain.FileRecord} "File"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "File not found"
// @Security BearerAuth
// @Router /files/{id} [get]
func (h *FileHandler) GetByID(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	fileID, ok := parseID(c, "id", "file")
	if !ok {
		return
	}

	file, err := h.fileService.Get(c.Request.Context(), sess, fileID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, file)
}

// Status handles GET /api/v1/files/:id/status
// @Summary Get processing status
// @Tags files
// @Produce json
// @Param id path string true "File ID (UUID)"
// @Success 200 {object} Response{data=domain.ProcessingStatus} "Processing status"
// @Failure 404 {object} ErrorResponseBody "File not found"
// @Security BearerAuth
// @Router /files/{id}/status [get]
func (h *FileHandler) Status(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	fileID, ok := parseID(c, "id", "file")
	if !ok {
		return
	}

	status, err := h.fileService.GetProcessingStatus(c.Request.Context(), sess, fileID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, status)
}

// Download handles GET /api/v1/files/:id/download
// @Summary Get a download URL
// @Description Returns a presigned URL for the stored object
// @Tags files
// @Produce json
// @Param id path string true "File ID (UUID)"
// @Success 200 {object} Response{data=DownloadURLResponse} "Presigned URL"
// @Failure 404 {object} ErrorResponseBody "File not found"
// @Failure 409 {object} ErrorResponseBody "File has no stored content"
// @Security BearerAuth
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	fileID, ok := parseID(c, "id", "file")
	if !ok {
		return
	}

	url, err := h.fileService.GetDownloadURL(c.Request.Context(), sess, fileID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"download_url": url})
}

// Delete handles DELETE /api/v1/files/:id
// @Summary Delete a file
// @Description Delete a file, its evidence and its stored object
// @Tags files
// @Produce json
// @Param id path string true "File ID (UUID)"
// @Success 200 {object} Response{data=MessageResponse} "File deleted"
// @Failure 404 {object} ErrorResponseBody "File not found"
// @Failure 502 {object} ErrorResponseBody "Storage delete failed"
// @Security BearerAuth
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	fileID, ok := parseID(c, "id", "file")
	if !ok {
		return
	}

	if err := h.fileService.Delete(c.Request.Context(), sess, fileID); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "file deleted"})
}

// Evidence handles GET /api/v1/files/:id/evidence
// @Summary List file evidence
// @Tags evidence
// @Produce json
// @Param id path string true "File ID (UUID)"
// @Success 200 {object} Response{data=[]domain.Evidence} "Evidence"
// @Failure 404 {object} ErrorResponseBody "File not found"
// @Security BearerAuth
// @Router /files/{id}/evidence [get]
func (h *FileHandler) Evidence(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	fileID, ok := parseID(c, "id", "file")
	if !ok {
		return
	}

	items, err := h.fileService.ListEvidence(c.Request.Context(), sess, fileID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, items)
}

// ProjectEvidence handles GET /api/v1/projects/:id/evidence
// @Summary List project evidence
// @Tags evidence
// @Produce json
// @Param id path string true "Project ID (UUID)"
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.Evidence,meta=PagMeta} "Evidence"
// @Failure 404 {object} ErrorResponseBody "Project not found"
// @Security BearerAuth
// @Router /projects/{id}/evidence [get]
func (h *FileHandler) ProjectEvidence(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	offset, limit := pagination(c)
	items, total, err := h.fileService.ListProjectEvidence(c.Request.Context(), sess, projectID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, items, PagMeta{Total: total, Offset: offset, Limit: limit})
}
