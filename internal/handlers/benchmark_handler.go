package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/services"
	"github.com/SAP-F-2025/roster-import-service/internal/utils"
)

type BenchmarkHandler struct {
	BaseHandler
	benchmarkService services.BenchmarkService
}

func NewBenchmarkHandler(benchmarkService services.BenchmarkService, logger utils.Logger) *BenchmarkHandler {
	return &BenchmarkHandler{
		BaseHandler:      NewBaseHandler(logger),
		benchmarkService: benchmarkService,
	}
}

// CreateTemplate stores a custom rating template
// @Summary Create benchmark template
// @Tags benchmarks
// @Accept json
// @Produce json
// @Param template body models.CreateBenchmarkTemplateRequest true "Template"
// @Success 201 {object} models.BenchmarkTemplate
// @Failure 400 {object} ErrorResponse
// @Router /benchmarks/templates [post]
func (h *BenchmarkHandler) CreateTemplate(c *gin.Context) {
	var req models.CreateBenchmarkTemplateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	template, err := h.benchmarkService.CreateTemplate(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

// ListTemplates lists the organization's templates
// @Router /benchmarks/templates [get]
func (h *BenchmarkHandler) ListTemplates(c *gin.Context) {
	templates, err := h.benchmarkService.ListTemplates(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": templates})
}
