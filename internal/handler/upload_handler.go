package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dealdossier/internal/domain"
	"dealdossier/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// UploadResponse is returned by both upload endpoints.
type UploadResponse struct {
	BatchID   uuid.UUID             `json:"batch_id"`
	Files     []domain.UploadedFile `json:"files"`
	Rejected  []service.Rejection   `json:"rejected"`
	Cancelled bool                  `json:"cancelled,omitempty"`
}

// UploadHandler handles batch upload endpoints.
type UploadHandler struct {
	uploadService service.UploadService
	spoolDir      string
	upgrader      websocket.Upgrader
	logger        *zap.Logger
}

// NewUploadHandler creates a new UploadHandler. Asynchronous batches copy
// their parts into spoolDir (the system temp dir when empty). Websocket
// upgrades are accepted from allowedOrigins; "*" accepts any origin.
func NewUploadHandler(uploadService service.UploadService, spoolDir string, allowedOrigins []string, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &UploadHandler{
		uploadService: uploadService,
		spoolDir:      spoolDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		logger: logger,
	}
}

// Upload handles POST /api/v1/projects/:id/files
// @Summary Upload files and wait for processing
// @Description Upload one or more files in the "files" field. Responds once every admitted file is terminal: 201 when all completed, 207 when some failed, 422 when none completed.
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Project ID (UUID)"
// @Param files formData file true "Files to upload"
// @Success 201 {object} Response{data=UploadResponse} "All files processed"
// @Success 207 {object} Response{data=UploadResponse} "Some files failed"
// @Failure 404 {object} ErrorResponseBody "Project not found"
// @Failure 422 {object} ErrorResponseBody "No file processed"
// @Security BearerAuth
// @Router /projects/{id}/files [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}
	parts, ok := h.formFiles(c)
	if !ok {
		return
	}

	items := make([]service.UploadItem, 0, len(parts))
	for _, fh := range parts {
		items = append(items, partItem(fh))
	}

	result, rejections, err := h.uploadService.RunBatch(c.Request.Context(), sess, projectID, items)
	if err != nil {
		h.respondStartError(c, err, rejections)
		return
	}

	resp := UploadResponse{
		BatchID:   result.BatchID,
		Files:     result.Files,
		Rejected:  nonNil(rejections),
		Cancelled: result.Cancelled,
	}
	switch {
	case result.Completed() == 0:
		c.JSON(http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Data:    resp,
			Error:   &APIError{Code: "UPLOAD_FAILED", Message: "no file was processed"},
		})
	case result.Failed() > 0 || len(rejections) > 0:
		RespondStatus(c, http.StatusMultiStatus, resp)
	default:
		RespondCreated(c, resp)
	}
}

// StartBatch handles POST /api/v1/projects/:id/batches
// @Summary Start an upload batch
// @Description Accepts files in the "files" field and processes them in the background. Progress is available from /batches/{id} and /batches/{id}/events.
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Project ID (UUID)"
// @Param files formData file true "Files to upload"
// @Success 202 {object} Response{data=UploadResponse} "Batch started"
// @Failure 404 {object} ErrorResponseBody "Project not found"
// @Failure 422 {object} ErrorResponseBody "No file admitted"
// @Security BearerAuth
// @Router /projects/{id}/batches [post]
func (h *UploadHandler) StartBatch(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}
	parts, ok := h.formFiles(c)
	if !ok {
		return
	}

	items := make([]service.UploadItem, 0, len(parts))
	for _, fh := range parts {
		item, err := h.spool(fh)
		if err != nil {
			h.logger.Error("uploadHandler.StartBatch: spool failed", zap.String("name", fh.Filename), zap.Error(err))
			for _, it := range items {
				it.Release()
			}
			RespondError(c, http.StatusInternalServerError, "SPOOL_FAILED", "could not buffer uploaded files")
			return
		}
		items = append(items, item)
	}

	logger := h.logger
	handle, rejections, err := h.uploadService.StartBatch(c.Request.Context(), sess, projectID, items, func(r service.BatchResult) {
		logger.Info("uploadHandler.StartBatch: batch finished",
			zap.String("batch_id", r.BatchID.String()),
			zap.Int("completed", r.Completed()),
			zap.Int("failed", r.Failed()),
			zap.Bool("cancelled", r.Cancelled))
	})
	if err != nil {
		h.respondStartError(c, err, rejections)
		return
	}

	RespondStatus(c, http.StatusAccepted, UploadResponse{
		BatchID:  handle.ID,
		Files:    handle.Files,
		Rejected: nonNil(rejections),
	})
}

// GetBatch handles GET /api/v1/batches/:id
// @Summary Get batch progress
// @Tags uploads
// @Produce json
// @Param id path string true "Batch ID (UUID)"
// @Success 200 {object} Response{data=port.BatchSnapshot} "Batch snapshot"
// @Failure 404 {object} ErrorResponseBody "Batch not found"
// @Security BearerAuth
// @Router /batches/{id} [get]
func (h *UploadHandler) GetBatch(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	batchID, ok := parseID(c, "id", "batch")
	if !ok {
		return
	}

	snap, err := h.uploadService.Batch(c.Request.Context(), sess, batchID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, snap)
}

// CancelBatch handles DELETE /api/v1/batches/:id
// @Summary Cancel a batch
// @Description Files not yet started end in error "upload cancelled"; in-flight steps are interrupted.
// @Tags uploads
// @Produce json
// @Param id path string true "Batch ID (UUID)"
// @Success 200 {object} Response{data=MessageResponse} "Cancellation requested"
// @Failure 404 {object} ErrorResponseBody "Batch not found"
// @Security BearerAuth
// @Router /batches/{id} [delete]
func (h *UploadHandler) CancelBatch(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	batchID, ok := parseID(c, "id", "batch")
	if !ok {
		return
	}

	if err := h.uploadService.Cancel(c.Request.Context(), sess, batchID); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "cancellation requested"})
}

// Events handles GET /api/v1/batches/:id/events
// @Summary Stream batch progress
// @Description Upgrades to a websocket that receives one JSON BatchEvent per file transition and a final event with done=true.
// @Tags uploads
// @Param id path string true "Batch ID (UUID)"
// @Param access_token query string false "Access token when the Authorization header cannot be set"
// @Success 101 "Switching protocols"
// @Failure 404 {object} ErrorResponseBody "Batch not found"
// @Security BearerAuth
// @Router /batches/{id}/events [get]
func (h *UploadHandler) Events(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	batchID, ok := parseID(c, "id", "batch")
	if !ok {
		return
	}

	events, unsubscribe, err := h.uploadService.Subscribe(c.Request.Context(), sess, batchID)
	if err != nil {
		HandleError(c, err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("uploadHandler.Events: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch finished"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *UploadHandler) formFiles(c *gin.Context) ([]*multipart.FileHeader, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "multipart form with a files field is required")
		return nil, false
	}
	parts := append([]*multipart.FileHeader(nil), form.File["files"]...)
	parts = append(parts, form.File["file"]...)
	if len(parts) == 0 {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "files field is required")
		return nil, false
	}
	return parts, true
}

func (h *UploadHandler) respondStartError(c *gin.Context, err error, rejections []service.Rejection) {
	if errors.Is(err, domain.ErrEmptyBatch) {
		c.JSON(http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Data:    UploadResponse{Files: []domain.UploadedFile{}, Rejected: nonNil(rejections)},
			Error:   &APIError{Code: "EMPTY_BATCH", Message: "no files were admitted"},
		})
		return
	}
	HandleError(c, err)
}

// spool copies a part into a temp file owned by the batch. The request's own
// multipart storage is removed when the handler returns.
func (h *UploadHandler) spool(fh *multipart.FileHeader) (service.UploadItem, error) {
	src, err := fh.Open()
	if err != nil {
		return service.UploadItem{}, err
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.spoolDir, "dossier-upload-*")
	if err != nil {
		return service.UploadItem{}, err
	}
	path := dst.Name()
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return service.UploadItem{}, err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return service.UploadItem{}, err
	}

	return service.UploadItem{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Size:      fh.Size,
		Open:      func() (io.ReadCloser, error) { return os.Open(path) },
		Release:   func() { _ = os.Remove(path) },
	}, nil
}

func partItem(fh *multipart.FileHeader) service.UploadItem {
	return service.UploadItem{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Size:      fh.Size,
		Open:      func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func nonNil(r []service.Rejection) []service.Rejection {
	if r == nil {
		return []service.Rejection{}
	}
	return r
}
