package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/middleware"
	"github.com/sjperalta/fintera-ledger/internal/services"
)

// RuleTrigger fires a scheduled rule outside its timer
type RuleTrigger interface {
	TriggerNow(ctx context.Context, ruleID uint) (automation.Result, error)
}

type RuleHandler struct {
	ruleService *services.RuleService
	trigger     RuleTrigger
}

func NewRuleHandler(ruleService *services.RuleService, trigger RuleTrigger) *RuleHandler {
	return &RuleHandler{ruleService: ruleService, trigger: trigger}
}

type toggleRequest struct {
	IsActive *bool `json:"is_active"`
}

type executeRequest struct {
	Payload events.Payload `json:"payload"`
}

func resultResponse(res automation.Result) gin.H {
	return gin.H{
		"rule_id":     res.RuleID,
		"entry_id":    res.EntryID,
		"status":      res.Status,
		"duration_ms": res.Duration.Milliseconds(),
	}
}

// respondExecution reports a run. A condition mismatch is a normal outcome
// and a failed run still carries its result; any other error is mapped.
func respondExecution(c *gin.Context, res automation.Result, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"execution": resultResponse(res)})
	case errors.Is(err, automation.ErrConditionMismatch):
		c.JSON(http.StatusOK, gin.H{"execution": resultResponse(res), "message": err.Error()})
	case res.Status == automation.StatusFailed:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"execution": resultResponse(res), "error": err.Error()})
	default:
		respondError(c, err)
	}
}

// @Summary List Rules
// @Tags Rules
// @Param trigger_event query string false "Trigger"
// @Router /rules [get]
func (h *RuleHandler) Index(c *gin.Context) {
	query := listQuery(c, "trigger_event", "active")
	rules, total, err := h.ruleService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "pagination": pagination(query, total)})
}

// @Summary Get Rule
// @Tags Rules
// @Router /rules/{rule_id} [get]
func (h *RuleHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "rule_id")
	if !ok {
		return
	}
	rule, err := h.ruleService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// @Summary Create Rule
// @Tags Rules
// @Router /rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	var in services.RuleInput
	if err := BindNestedOrFlat(c, "rule", &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rule, err := h.ruleService.Create(c.Request.Context(), middleware.GetUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// @Summary Update Rule
// @Tags Rules
// @Router /rules/{rule_id} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "rule_id")
	if !ok {
		return
	}
	var in services.RuleInput
	if err := BindNestedOrFlat(c, "rule", &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rule, err := h.ruleService.Update(c.Request.Context(), middleware.GetUserID(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// @Summary Delete Rule
// @Tags Rules
// @Router /rules/{rule_id} [delete]
func (h *RuleHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "rule_id")
	if !ok {
		return
	}
	if err := h.ruleService.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule deleted"})
}

// @Summary Activate or deactivate a Rule
// @Tags Rules
// @Router /rules/{rule_id}/toggle [put]
func (h *RuleHandler) Toggle(c *gin.Context) {
	id, ok := paramID(c, "rule_id")
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	rule, err := h.ruleService.Toggle(c.Request.Context(), middleware.GetUserID(c), id, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// Execute runs a rule against the posted payload immediately
// @Summary Execute Rule
// @Tags Rules
// @Router /rules/{rule_id}/execute [post]
func (h *RuleHandler) Execute(c *gin.Context) {
	id, ok := paramID(c, "rule_id")
	if !ok {
		return
	}
	var req executeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	res, err := h.ruleService.ExecuteNow(c.Request.Context(), middleware.GetUserID(c), id, req.Payload)
	respondExecution(c, res, err)
}

// Trigger fires a scheduled rule's next slot now
// @Summary Trigger scheduled Rule
// @Tags Rules
// @Router /rules/{rule_id}/trigger [post]
func (h *RuleHandler) Trigger(c *gin.Context) {
	id, ok := paramID(c, "rule_id")
	if !ok {
		return
	}
	if h.trigger == nil {
		respondError(c, automation.ErrSchedulerStopped)
		return
	}
	// timers are keyed by rule id alone; confirm the rule is this tenant's
	if _, err := h.ruleService.FindByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	res, err := h.trigger.TriggerNow(c.Request.Context(), id)
	respondExecution(c, res, err)
}

// @Summary Rule execution history
// @Tags Rules
// @Param limit query int false "Max rows" default(50)
// @Router /rules/{rule_id}/history [get]
func (h *RuleHandler) History(c *gin.Context) {
	id, ok := paramID(c, "rule_id")
	if !ok {
		return
	}
	h.history(c, &id)
}

// @Summary Execution history across rules
// @Tags Rules
// @Router /rules/history [get]
func (h *RuleHandler) AllHistory(c *gin.Context) {
	h.history(c, nil)
}

func (h *RuleHandler) history(c *gin.Context, ruleID *uint) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	logs, err := h.ruleService.History(c.Request.Context(), ruleID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": logs})
}

// Import upserts rules from an uploaded YAML seed file
// @Summary Import Rules
// @Tags Rules
// @Accept multipart/form-data
// @Router /rules/import [post]
func (h *RuleHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	result, err := h.ruleService.ImportYAML(c.Request.Context(), middleware.GetUserID(c), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
