package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealdossier/internal/csvexport"
	"dealdossier/internal/domain"
	"dealdossier/internal/service"
)

const exportPageSize = 200

// AnalysisHandler serves project analyses and CSV exports.
type AnalysisHandler struct {
	analysisService service.AnalysisService
	projectService  service.ProjectService
	fileService     service.FileService
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analysisService service.AnalysisService, projectService service.ProjectService, fileService service.FileService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		projectService:  projectService,
		fileService:     fileService,
	}
}

// Analyze handles GET /api/v1/projects/:id/analysis
// @Summary Project analysis
// @Description Fold the insights of the project's completed files into metrics, trends, risks, opportunities and data quality scores
// @Tags analysis
// @Produce json
// @Param id path string true "Project ID (UUID)"
// @Success 200 {object} Response{data=domain.ProjectAnalysis} "Analysis"
// @Failure 404 {object} ErrorResponseBody "Project not found"
// @Security BearerAuth
// @Router /projects/{id}/analysis [get]
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), sess, projectID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, result)
}

// ExportAnalysis handles GET /api/v1/projects/:id/analysis/export
// @Summary Export the analysis as CSV
// @Tags analysis
// @Produce text/csv
// @Param id path string true "Project ID (UUID)"
// @Success 200 {file} file "CSV file"
// @Failure 404 {object} ErrorResponseBody "Project not found"
// @Security BearerAuth
// @Router /projects/{id}/analysis/export [get]
func (h *AnalysisHandler) ExportAnalysis(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	project, err := h.projectService.Get(ctx, sess, projectID)
	if err != nil {
		HandleError(c, err)
		return
	}
	result, err := h.analysisService.Analyze(ctx, sess, projectID)
	if err != nil {
		HandleError(c, err)
		return
	}

	w := startCSV(c, csvexport.BuildFilename(project.Name, "analysis", time.Now()))
	if err := w.WriteAnalysis(result); err != nil {
		zap.L().Error("analysisHandler.ExportAnalysis: write failed", zap.Error(err))
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		zap.L().Error("analysisHandler.ExportAnalysis: flush failed", zap.Error(err))
	}
}

// ExportEvidence handles GET /api/v1/projects/:id/evidence/export
// @Summary Export project evidence as CSV
// @Tags evidence
// @Produce text/csv
// @Param id path string true "Project ID (UUID)"
// @Success 200 {file} file "CSV file"
// @Failure 404 {object} ErrorResponseBody "Project not found"
// @Security BearerAuth
// @Router /projects/{id}/evidence/export [get]
func (h *AnalysisHandler) ExportEvidence(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	project, err := h.projectService.Get(ctx, sess, projectID)
	if err != nil {
		HandleError(c, err)
		return
	}

	names, err := h.fileNames(c, sess, projectID)
	if err != nil {
		HandleError(c, err)
		return
	}

	var items []domain.Evidence
	for offset := 0; ; offset += exportPageSize {
		page, total, err := h.fileService.ListProjectEvidence(ctx, sess, projectID, offset, exportPageSize)
		if err != nil {
			HandleError(c, err)
			return
		}
		items = append(items, page...)
		if len(page) == 0 || offset+len(page) >= total {
			break
		}
	}

	w := startCSV(c, csvexport.BuildFilename(project.Name, "evidence", time.Now()))
	if err := w.WriteEvidenceHeader(); err != nil {
		zap.L().Error("analysisHandler.ExportEvidence: write failed", zap.Error(err))
		return
	}
	if err := w.WriteEvidence(items, names); err != nil {
		zap.L().Error("analysisHandler.ExportEvidence: write failed", zap.Error(err))
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		zap.L().Error("analysisHandler.ExportEvidence: flush failed", zap.Error(err))
	}
}

func (h *AnalysisHandler) fileNames(c *gin.Context, sess *domain.Session, projectID uuid.UUID) (map[string]string, error) {
	names := make(map[string]string)
	for offset := 0; ; offset += exportPageSize {
		files, total, err := h.fileService.ListByProject(c.Request.Context(), sess, projectID, "", offset, exportPageSize)
		if err != nil {
			return nil, err
		}
		for i := range files {
			names[files[i].ID.String()] = files[i].Name
		}
		if len(files) == 0 || offset+len(files) >= total {
			return names, nil
		}
	}
}

// startCSV writes the download headers and the BOM and returns a writer on the body.
func startCSV(c *gin.Context, filename string) *csvexport.Writer {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)
	_, _ = c.Writer.Write(csvexport.BOM)
	return csvexport.NewWriter(c.Writer)
}
