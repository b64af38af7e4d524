package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
	"github.com/SAP-F-2025/roster-import-service/internal/services"
	"github.com/SAP-F-2025/roster-import-service/internal/tabular"
	"github.com/SAP-F-2025/roster-import-service/internal/utils"
)

const maxUploadBytes = 10 << 20

type ImportHandler struct {
	BaseHandler
	importService services.ImportService
}

func NewImportHandler(importService services.ImportService, logger utils.Logger) *ImportHandler {
	return &ImportHandler{
		BaseHandler:   NewBaseHandler(logger),
		importService: importService,
	}
}

// PastedSessionRequest starts a session from text copied out of a spreadsheet.
type PastedSessionRequest struct {
	Text      string `json:"text" binding:"required"`
	SportCode string `json:"sport_code"`
}

// StartSession starts a session from headers and rows sent as JSON
// @Summary Start import session
// @Tags imports
// @Accept json
// @Produce json
// @Param session body models.StartSessionRequest true "Parsed roster"
// @Success 201 {object} models.ImportSession
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /imports/sessions [post]
func (h *ImportHandler) StartSession(c *gin.Context) {
	var req models.StartSessionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.startSession(c, &req)
}

// StartSessionFromPaste parses pasted text and starts a session
// @Router /imports/sessions/paste [post]
func (h *ImportHandler) StartSessionFromPaste(c *gin.Context) {
	var req PastedSessionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	table, err := tabular.ParsePasted(req.Text)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Could not read pasted roster", err, err.Error())
		return
	}
	h.startSession(c, &models.StartSessionRequest{
		SourceFileName: "pasted",
		SportCode:      req.SportCode,
		Headers:        table.Headers,
		Rows:           table.Rows,
	})
}

// UploadSession parses an uploaded CSV, TSV or Excel file and starts a session
// @Summary Upload roster file
// @Tags imports
// @Accept multipart/form-data
// @Param file formData file true "Roster file"
// @Param sport_code formData string false "Sport"
// @Router /imports/sessions/upload [post]
func (h *ImportHandler) UploadSession(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "A roster file is required", err, err.Error())
		return
	}
	if header.Size > maxUploadBytes {
		h.RespondWithError(c, http.StatusRequestEntityTooLarge, "Roster file is too large", nil,
			fmt.Sprintf("limit is %d bytes", maxUploadBytes))
		return
	}
	file, err := header.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Could not open roster file", err, err.Error())
		return
	}
	defer file.Close()

	table, err := tabular.ParseFile(header.Filename, file)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, tabular.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		h.RespondWithError(c, status, "Could not read roster file", err, err.Error())
		return
	}
	h.startSession(c, &models.StartSessionRequest{
		SourceFileName: header.Filename,
		SportCode:      c.PostForm("sport_code"),
		Headers:        table.Headers,
		Rows:           table.Rows,
	})
}

func (h *ImportHandler) startSession(c *gin.Context, req *models.StartSessionRequest) {
	session, err := h.importService.StartSession(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.LogInfo(c, "Import session started", "session_id", session.ID, "rows", session.TotalRows)
	c.JSON(http.StatusCreated, session)
}

// GetSession returns one session of the caller's organization
// @Router /imports/sessions/{id} [get]
func (h *ImportHandler) GetSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	session, err := h.importService.GetSession(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetActiveSession returns the caller's resumable draft
// @Router /imports/sessions/active [get]
func (h *ImportHandler) GetActiveSession(c *gin.Context) {
	session, err := h.importService.GetActiveSession(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ListSessions lists the organization's sessions, newest first
// @Param status query string false "Status filter"
// @Param mine query bool false "Only the caller's sessions"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Router /imports/sessions [get]
func (h *ImportHandler) ListSessions(c *gin.Context) {
	filters, err := parseSessionFilters(c)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid filters", err, err.Error())
		return
	}
	actor := actorFrom(c)
	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		filters.UserID = &actor.UserID
	}
	sessions, total, err := h.importService.ListSessions(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: sessions, Total: total, Limit: filters.Limit, Offset: filters.Offset})
}

// SaveDraft persists the wizard state
// @Router /imports/sessions/{id}/draft [put]
func (h *ImportHandler) SaveDraft(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req models.SaveDraftRequest
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.importService.SaveDraft(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// CancelSession abandons a draft
// @Router /imports/sessions/{id}/cancel [post]
func (h *ImportHandler) CancelSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	if err := h.importService.CancelSession(c.Request.Context(), actorFrom(c), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Import session cancelled"})
}

// RemapColumns reruns automatic mapping, keeping manual choices
// @Router /imports/sessions/{id}/remap [post]
func (h *ImportHandler) RemapColumns(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	mappings, err := h.importService.RemapColumns(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings})
}

// ValidateRows reports row issues
// @Param apply_auto_fixes query bool false "Apply fixes before checking"
// @Router /imports/sessions/{id}/validation [get]
func (h *ImportHandler) ValidateRows(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	report, err := h.importService.ValidateRows(c.Request.Context(), actorFrom(c), id, parseBoolQuery(c, "apply_auto_fixes"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ScoreQuality returns the data quality report
// @Router /imports/sessions/{id}/quality [get]
func (h *ImportHandler) ScoreQuality(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	report, err := h.importService.ScoreQuality(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Simulate runs a dry run of the commit
// @Router /imports/sessions/{id}/simulate [post]
func (h *ImportHandler) Simulate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req models.SimulateRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	result, err := h.importService.Simulate(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportSimulation downloads the dry run as CSV or Excel
// @Param format query string false "csv or xlsx" default(csv)
// @Router /imports/sessions/{id}/simulation/export [get]
func (h *ImportHandler) ExportSimulation(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	format := c.DefaultQuery("format", string(tabular.FormatCSV))
	if format != string(tabular.FormatCSV) && format != string(tabular.FormatExcel) {
		h.RespondWithError(c, http.StatusBadRequest, "format must be csv or xlsx", nil)
		return
	}
	req := models.SimulateRequest{ApplyAutoFixes: parseBoolQuery(c, "apply_auto_fixes")}
	result, err := h.importService.Simulate(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	var (
		body        []byte
		contentType string
	)
	if format == string(tabular.FormatExcel) {
		body, err = tabular.WriteSimulationExcel(*result)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	} else {
		body, err = tabular.WriteSimulationCSV(*result)
		contentType = "text/csv"
	}
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Could not build report", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="import-%s-preview.%s"`, id, format))
	c.Data(http.StatusOK, contentType, body)
}

// Preview maps and simulates an upload without creating a session
// @Router /imports/preview [post]
func (h *ImportHandler) Preview(c *gin.Context) {
	var req models.PreviewRequest
	if !h.bindJSON(c, &req) {
		return
	}
	preview, err := h.importService.Preview(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Commit writes the reviewed rows
// @Router /imports/sessions/{id}/commit [post]
func (h *ImportHandler) Commit(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req models.CommitRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	result, err := h.importService.Commit(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.LogInfo(c, "Import committed", "session_id", id, "status", result.Status)
	c.JSON(http.StatusOK, result)
}

// CheckUndoEligibility reports whether and until when a commit can be undone
// @Router /imports/sessions/{id}/undo-eligibility [get]
func (h *ImportHandler) CheckUndoEligibility(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	eligibility, err := h.importService.CheckUndoEligibility(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibility)
}

// Undo reverses all or part of a commit
// @Router /imports/sessions/{id}/undo [post]
func (h *ImportHandler) Undo(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req models.UndoRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.importService.Undo(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.LogInfo(c, "Import undone", "session_id", id, "deleted", result.Deleted, "restored", result.Restored)
	c.JSON(http.StatusOK, result)
}

// ListMappingHistory lists the organization's confirmed column mappings
// @Router /imports/mapping-history [get]
func (h *ImportHandler) ListMappingHistory(c *gin.Context) {
	history, err := h.importService.ListMappingHistory(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": history})
}

func parseSessionFilters(c *gin.Context) (repositories.SessionFilters, error) {
	filters := repositories.SessionFilters{
		Limit:     parseIntQuery(c, "limit", 20),
		Offset:    parseIntQuery(c, "offset", 0),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ImportStatus(raw)
		filters.Status = &status
	}
	for key, dst := range map[string]**time.Time{"date_from": &filters.DateFrom, "date_to": &filters.DateTo} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, fmt.Errorf("%s must be RFC3339: %w", key, err)
		}
		*dst = &t
	}
	return filters, nil
}
