package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/middleware"
)

type EventHandler struct {
	engine *automation.Engine
}

func NewEventHandler(engine *automation.Engine) *EventHandler {
	return &EventHandler{engine: engine}
}

type eventRequest struct {
	ID         string         `json:"id"`
	Trigger    string         `json:"trigger" binding:"required"`
	Payload    events.Payload `json:"payload"`
	OccurredAt *time.Time     `json:"occurred_at"`
}

// Ingest processes one business event synchronously and reports what every
// matching rule did.
// @Summary Ingest Event
// @Tags Events
// @Accept json
// @Produce json
// @Router /events [post]
func (h *EventHandler) Ingest(c *gin.Context) {
	var req eventRequest
	if err := BindNestedOrFlat(c, "event", &req); err != nil || req.Trigger == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trigger is required"})
		return
	}
	at := time.Now().UTC()
	if req.OccurredAt != nil {
		at = *req.OccurredAt
	}
	ev := events.New(middleware.GetTenantID(c), req.Trigger, req.Payload, at)
	if req.ID != "" {
		ev.ID = req.ID
	}

	report, err := h.engine.ProcessEvent(c.Request.Context(), ev)
	if err != nil {
		respondError(c, err)
		return
	}

	outcomes := make([]gin.H, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		item := resultResponse(o.Result)
		if o.Err != nil {
			item["error"] = o.Err.Error()
		}
		outcomes = append(outcomes, item)
	}
	status := http.StatusOK
	if len(report.Failed()) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"event_id":  report.EventID,
		"trigger":   report.Trigger,
		"entry_ids": report.EntryIDs(),
		"outcomes":  outcomes,
		"failed":    len(report.Failed()),
	})
}
