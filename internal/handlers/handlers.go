package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/internal/services"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// Handlers holds all handler instances
type Handlers struct {
	Health         *HealthHandler
	Account        *AccountHandler
	Rule           *RuleHandler
	Event          *EventHandler
	Ledger         *LedgerHandler
	Review         *ReviewHandler
	Reconciliation *ReconciliationHandler
	Audit          *AuditHandler
	Job            *JobHandler
}

// NewHandlers creates all handler instances. trigger may be nil when the
// scheduler is not running in this process.
func NewHandlers(svcs *services.Services, trigger RuleTrigger) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(),
		Account:        NewAccountHandler(svcs.Account),
		Rule:           NewRuleHandler(svcs.Rule, trigger),
		Event:          NewEventHandler(svcs.Engine),
		Ledger:         NewLedgerHandler(svcs.Ledger, svcs.Export),
		Review:         NewReviewHandler(svcs.Review),
		Reconciliation: NewReconciliationHandler(svcs.Reconciliation, svcs.Export, svcs.Job),
		Audit:          NewAuditHandler(svcs.Audit),
		Job:            NewJobHandler(svcs.Job),
	}
}

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, automation.ErrInvalidMapping),
		errors.Is(err, automation.ErrInvalidPayload),
		errors.Is(err, events.ErrInvalidEvent):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, automation.ErrNotScheduled):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrDuplicate),
		errors.Is(err, services.ErrAccountInUse),
		errors.Is(err, services.ErrMissingDocuments),
		errors.Is(err, automation.ErrRuleInactive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnbalancedEntry), errors.Is(err, models.ErrInvalidLine):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, automation.ErrSchedulerStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, tenant.ErrMissingTenant):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		logger.Error("Request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// paramID parses a numeric path parameter, answering 400 when it is not one
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// listQuery reads the common paging, sorting and search parameters plus the
// given filters.
func listQuery(c *gin.Context, filters ...string) *repository.ListQuery {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if query.PerPage <= 0 || query.PerPage > 200 {
		query.PerPage = 20
	}
	query.Search = c.Query("search_term")
	query.SortBy = c.Query("sort_by")
	query.SortDir = c.Query("sort_direction")
	for _, f := range filters {
		if v := c.Query(f); v != "" {
			query.Filters[f] = v
		}
	}
	return query
}

func pagination(query *repository.ListQuery, total int64) gin.H {
	return gin.H{"total": total, "page": query.Page, "per_page": query.PerPage}
}
