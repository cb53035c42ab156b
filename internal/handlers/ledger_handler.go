package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-ledger/internal/middleware"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/services"
)

type LedgerHandler struct {
	ledgerService *services.LedgerService
	exportService *services.ExportService
}

func NewLedgerHandler(ledgerService *services.LedgerService, exportService *services.ExportService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, exportService: exportService}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// @Summary List Journal Entries
// @Tags Ledger
// @Param status query string false "Entry status"
// @Router /entries [get]
func (h *LedgerHandler) Index(c *gin.Context) {
	query := listQuery(c, "status", "review_status", "reference_type", "rule_id", "from", "to")
	entries, total, err := h.ledgerService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "pagination": pagination(query, total)})
}

// @Summary Get Journal Entry
// @Tags Ledger
// @Router /entries/{entry_id} [get]
func (h *LedgerHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "entry_id")
	if !ok {
		return
	}
	entry, err := h.ledgerService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// @Summary Create manual Journal Entry
// @Tags Ledger
// @Router /entries [post]
func (h *LedgerHandler) Create(c *gin.Context) {
	var in services.ManualEntryInput
	if err := BindNestedOrFlat(c, "entry", &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	entry, err := h.ledgerService.CreateManual(c.Request.Context(), middleware.GetUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

// @Summary Post a draft Journal Entry
// @Tags Ledger
// @Router /entries/{entry_id}/post [put]
func (h *LedgerHandler) Post(c *gin.Context) {
	id, ok := paramID(c, "entry_id")
	if !ok {
		return
	}
	entry, err := h.ledgerService.Post(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// @Summary Reject a draft Journal Entry
// @Tags Ledger
// @Router /entries/{entry_id}/reject [put]
func (h *LedgerHandler) Reject(c *gin.Context) {
	h.withReason(c, h.ledgerService.Reject)
}

// @Summary Reverse a posted Journal Entry
// @Tags Ledger
// @Router /entries/{entry_id}/reverse [put]
func (h *LedgerHandler) Reverse(c *gin.Context) {
	h.withReason(c, h.ledgerService.Reverse)
}

func (h *LedgerHandler) withReason(c *gin.Context, action func(ctx context.Context, userID, id uint, reason string) (*models.JournalEntry, error)) {
	id, ok := paramID(c, "entry_id")
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	entry, err := action(c.Request.Context(), middleware.GetUserID(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// Voucher renders the entry as a printable PDF
// @Summary Journal Entry voucher
// @Tags Ledger
// @Produce application/pdf
// @Router /entries/{entry_id}/voucher [get]
func (h *LedgerHandler) Voucher(c *gin.Context) {
	id, ok := paramID(c, "entry_id")
	if !ok {
		return
	}
	data, filename, err := h.exportService.EntryVoucherPDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}
