package handler

import (
	"github.com/gin-gonic/gin"

	"dealdossier/internal/classify"
	"dealdossier/internal/service"
)

// StatsHandler handles dashboard endpoints.
type StatsHandler struct {
	statsService service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetStats handles GET /api/v1/stats
// @Summary Get dashboard statistics
// @Description Counts of the caller's projects, files by status, insights and stored bytes.
// @Tags stats
// @Produce json
// @Success 200 {object} Response{data=domain.DashboardStats} "Aggregate statistics"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security BearerAuth
// @Router /stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	stats, err := h.statsService.GetStats(c.Request.Context(), sess)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, stats)
}

// FileTypes handles GET /api/v1/file-types
// @Summary Accepted file types
// @Description Media types the upload endpoints accept, with the extraction strategy each one routes to.
// @Tags files
// @Produce json
// @Success 200 {object} Response{data=[]classify.Kind} "Accepted types"
// @Router /file-types [get]
func FileTypes(c *gin.Context) {
	RespondOK(c, classify.Accepted())
}
