package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/issuelens/backend/internal/db"
	"github.com/issuelens/backend/internal/models"
	"github.com/issuelens/backend/internal/service"
	"github.com/issuelens/backend/internal/tracker"
)

// Store is the read side of persistence used by the handlers. It is nil when no database is
// configured.
type Store interface {
	Ping(ctx context.Context) error
	ListAnalyses(ctx context.Context, ticketRef, issueType, source string, limit, offset int) ([]models.AnalysisRecord, error)
	GetLatestAnalysis(ctx context.Context, ticketRef string) (models.AnalysisRecord, error)
	GetLatestRun(ctx context.Context) (models.Run, error)
}

type Handler struct {
	Service   *service.AnalysisService
	Store     Store
	Validator *validator.Validate
	Logger    zerolog.Logger
}

type AnalyzeRequest struct {
	RepoURL     string          `json:"repo_url"`
	IssueNumber int             `json:"issue_number" validate:"omitempty,min=1"`
	Ticket      json.RawMessage `json:"ticket" swaggertype:"object"`
}

type AnalyzeResponse struct {
	ID         string                `json:"id,omitempty"`
	TicketRef  string                `json:"ticket_ref"`
	Result     models.AnalysisResult `json:"result"`
	Provenance models.Provenance     `json:"provenance"`
}

// BatchRequest carries either explicit items or a repository whose issues are listed and
// analyzed.
type BatchRequest struct {
	Items   []AnalyzeRequest `json:"items" validate:"max=100"`
	RepoURL string           `json:"repo_url"`
	State   string           `json:"state" validate:"omitempty,oneof=open closed all"`
	Max     int              `json:"max" validate:"omitempty,min=1,max=500"`
}

type LabelsRequest struct {
	RepoURL     string   `json:"repo_url" validate:"required"`
	IssueNumber int      `json:"issue_number" validate:"required,min=1"`
	Labels      []string `json:"labels" validate:"required,min=1,dive,required"`
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "disabled"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}

// @Summary Analyze an issue
// @Description Analyze an inline ticket or an issue fetched by repository URL and number.
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body AnalyzeRequest true "Ticket or issue reference"
// @Success 200 {object} AnalyzeResponse
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/analyze [post]
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.checkAnalyzeRequest(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid analyze request", err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.RepoURL != "" && len(req.Ticket) == 0 {
		rec, err := h.Service.AnalyzeIssue(ctx, req.RepoURL, req.IssueNumber)
		if err != nil {
			writeTrackerError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResponse(rec))
		return
	}

	rec := h.Service.AnalyzeTicket(ctx, "", decodeTicket(req.Ticket))
	c.JSON(http.StatusOK, toResponse(rec))
}

// @Summary Analyze a batch of issues
// @Tags analysis
// @Accept json
// @Produce json
// @Description Analyze explicit items, or list a repository's issues by state and analyze up to max of them.
// @Param request body BatchRequest true "Items or repository to analyze"
// @Success 200 {object} service.BatchResult
// @Failure 400 {object} map[string]any
// @Router /api/analyze/batch [post]
func (h *Handler) AnalyzeBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid batch request", err.Error())
		return
	}
	switch {
	case req.RepoURL != "" && len(req.Items) > 0:
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid batch request", "items and repo_url are mutually exclusive")
		return
	case req.RepoURL != "":
		h.analyzeRepo(c, req)
		return
	case len(req.Items) == 0:
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid batch request", "items or repo_url is required")
		return
	}

	items := make([]service.BatchItem, 0, len(req.Items))
	for i, it := range req.Items {
		if err := h.checkAnalyzeRequest(it); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid batch item", gin.H{"index": i, "error": err.Error()})
			return
		}
		item := service.BatchItem{RepoURL: it.RepoURL, IssueNumber: it.IssueNumber}
		if len(it.Ticket) > 0 || it.RepoURL == "" {
			item.Ticket = decodeTicket(it.Ticket)
			item.RepoURL = ""
		}
		items = append(items, item)
	}

	result, err := h.Service.AnalyzeBatch(c.Request.Context(), items)
	if err != nil {
		h.Logger.Error().Err(err).Msg("batch analysis interrupted")
		writeError(c, http.StatusInternalServerError, "BATCH_ERROR", "Batch analysis failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) analyzeRepo(c *gin.Context, req BatchRequest) {
	result, err := h.Service.AnalyzeRepo(c.Request.Context(), req.RepoURL, req.State, req.Max)
	if err != nil {
		if c.Request.Context().Err() != nil {
			writeError(c, http.StatusInternalServerError, "BATCH_ERROR", "Batch analysis failed", err.Error())
			return
		}
		writeTrackerError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary List stored analyses
// @Tags analysis
// @Produce json
// @Param ticket_ref query string false "owner/repo#number"
// @Param type query string false "Issue type"
// @Param source query string false "llm, rules or default"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/analyses [get]
func (h *Handler) AnalysesList(c *gin.Context) {
	if h.Store == nil {
		writeError(c, http.StatusServiceUnavailable, "DB_DISABLED", "Persistence is not configured", nil)
		return
	}
	ticketRef := strings.TrimSpace(c.Query("ticket_ref"))
	issueType := strings.ToLower(strings.TrimSpace(c.Query("type")))
	source := strings.ToLower(strings.TrimSpace(c.Query("source")))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Store.ListAnalyses(c.Request.Context(), ticketRef, issueType, source, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list analyses", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Latest analysis of a ticket
// @Tags analysis
// @Produce json
// @Param ticket_ref query string true "owner/repo#number"
// @Success 200 {object} models.AnalysisRecord
// @Failure 404 {object} map[string]any
// @Router /api/analyses/latest [get]
func (h *Handler) AnalysesLatest(c *gin.Context) {
	if h.Store == nil {
		writeError(c, http.StatusServiceUnavailable, "DB_DISABLED", "Persistence is not configured", nil)
		return
	}
	ticketRef := strings.TrimSpace(c.Query("ticket_ref"))
	if ticketRef == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "ticket_ref is required", nil)
		return
	}
	rec, err := h.Store.GetLatestAnalysis(c.Request.Context(), ticketRef)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No analysis found", gin.H{"ticket_ref": ticketRef})
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load analysis", err.Error())
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Success 200 {object} models.Run
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	if h.Store == nil {
		writeError(c, http.StatusServiceUnavailable, "DB_DISABLED", "Persistence is not configured", nil)
		return
	}
	run, err := h.Store.GetLatestRun(c.Request.Context())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No runs found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load run", err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}

// @Summary Apply labels to an issue
// @Tags issues
// @Accept json
// @Produce json
// @Param X-Admin-Key header string false "Admin key"
// @Param request body LabelsRequest true "Labels to apply"
// @Success 200 {object} map[string]any
// @Router /api/issues/labels [post]
func (h *Handler) ApplyLabels(c *gin.Context) {
	var req LabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid labels request", err.Error())
		return
	}
	if err := h.Service.ApplyLabels(c.Request.Context(), req.RepoURL, req.IssueNumber, req.Labels); err != nil {
		writeTrackerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "labels": req.Labels})
}

func (h *Handler) checkAnalyzeRequest(req AnalyzeRequest) error {
	if err := h.Validator.Struct(req); err != nil {
		return err
	}
	if len(req.Ticket) > 0 {
		return nil
	}
	if req.RepoURL == "" {
		return errors.New("either ticket or repo_url with issue_number is required")
	}
	if req.IssueNumber == 0 {
		return errors.New("issue_number is required with repo_url")
	}
	return nil
}

// decodeTicket returns nil for a payload that is not a ticket object, which the analyzer turns
// into the default analysis.
func decodeTicket(raw json.RawMessage) *models.Ticket {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var t models.Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil
	}
	return &t
}

func toResponse(rec models.AnalysisRecord) AnalyzeResponse {
	return AnalyzeResponse{
		ID:         rec.ID,
		TicketRef:  rec.TicketRef,
		Result:     rec.Result,
		Provenance: rec.Provenance,
	}
}

func writeTrackerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tracker.ErrInvalidRepoURL):
		writeError(c, http.StatusBadRequest, "INVALID_REPO_URL", "Invalid repository URL", err.Error())
	case errors.Is(err, tracker.ErrInvalidState):
		writeError(c, http.StatusBadRequest, "INVALID_STATE", "Invalid issue state", err.Error())
	case errors.Is(err, tracker.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Issue not found", nil)
	case errors.Is(err, service.ErrNoTracker):
		writeError(c, http.StatusServiceUnavailable, "TRACKER_DISABLED", "Issue tracker is not configured", nil)
	default:
		writeError(c, http.StatusBadGateway, "TRACKER_ERROR", "Issue tracker request failed", err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
