package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-ledger/internal/middleware"
	"github.com/sjperalta/fintera-ledger/internal/services"
)

type ReconciliationHandler struct {
	reconciliationService *services.ReconciliationService
	exportService         *services.ExportService
	jobService            *services.JobService
}

func NewReconciliationHandler(reconciliationService *services.ReconciliationService, exportService *services.ExportService, jobService *services.JobService) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		exportService:         exportService,
		jobService:            jobService,
	}
}

var correctionFilters = []string{"error_type", "status", "severity"}

// @Summary Scan for duplicate entries
// @Tags Reconciliation
// @Router /reconciliation/duplicates [post]
func (h *ReconciliationHandler) Duplicates(c *gin.Context) {
	res, err := h.reconciliationService.DetectDuplicateEntries(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scan": res})
}

// @Summary Scan for unbalanced entries
// @Tags Reconciliation
// @Router /reconciliation/unbalanced [post]
func (h *ReconciliationHandler) Unbalanced(c *gin.Context) {
	res, err := h.reconciliationService.DetectUnbalancedEntries(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scan": res})
}

// Run queues both scans for the caller's tenant on the background worker
// @Summary Queue a reconciliation run
// @Tags Reconciliation
// @Router /reconciliation/run [post]
func (h *ReconciliationHandler) Run(c *gin.Context) {
	if err := h.jobService.ReconcileTenantAsync(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "reconciliation queued"})
}

// @Summary List correction findings
// @Tags Reconciliation
// @Param status query string false "detected, reviewing, fixed, ignored"
// @Param severity query string false "low, medium, high, critical"
// @Router /corrections [get]
func (h *ReconciliationHandler) Index(c *gin.Context) {
	query := listQuery(c, correctionFilters...)
	findings, total, err := h.reconciliationService.ListCorrections(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"corrections": findings, "pagination": pagination(query, total)})
}

// @Summary Get correction finding
// @Tags Reconciliation
// @Router /corrections/{correction_id} [get]
func (h *ReconciliationHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "correction_id")
	if !ok {
		return
	}
	finding, err := h.reconciliationService.FindCorrection(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"correction": finding})
}

// @Summary Transition a correction finding
// @Tags Reconciliation
// @Router /corrections/{correction_id} [put]
func (h *ReconciliationHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "correction_id")
	if !ok {
		return
	}
	var in services.CorrectionUpdate
	if err := BindNestedOrFlat(c, "correction", &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	finding, err := h.reconciliationService.UpdateCorrectionStatus(c.Request.Context(), middleware.GetUserID(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"correction": finding})
}

// Export downloads the filtered findings as CSV (default) or XLSX
// @Summary Export correction findings
// @Tags Reconciliation
// @Param format query string false "csv or xlsx"
// @Router /corrections/export [get]
func (h *ReconciliationHandler) Export(c *gin.Context) {
	filters := make(map[string]string)
	for _, f := range correctionFilters {
		if v := c.Query(f); v != "" {
			filters[f] = v
		}
	}

	var (
		data        []byte
		filename    string
		contentType string
		err         error
	)
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		data, filename, err = h.exportService.CorrectionsCSV(c.Request.Context(), filters)
		contentType = "text/csv"
	case "xlsx":
		data, filename, err = h.exportService.CorrectionsXLSX(c.Request.Context(), filters)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, data)
}
