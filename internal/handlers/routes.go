package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-ledger/internal/middleware"
)

// RegisterRoutes mounts the public and protected API under api. Reads are
// open to every authenticated role; writes are split between accountants,
// reviewers and admins.
func RegisterRoutes(api *gin.RouterGroup, h *Handlers, jwtSecret string) {
	api.GET("/health", h.Health.Index)

	protected := api.Group("")
	protected.Use(middleware.Auth(jwtSecret))

	bookkeeping := protected.Group("")
	bookkeeping.Use(middleware.RequireRole(middleware.RoleAccountant))

	reviewing := protected.Group("")
	reviewing.Use(middleware.RequireRole(middleware.RoleReviewer))

	staff := protected.Group("")
	staff.Use(middleware.RequireRole(middleware.RoleAccountant, middleware.RoleReviewer))

	admin := protected.Group("")
	admin.Use(middleware.RequireAdmin())

	// Accounts
	protected.GET("/accounts", h.Account.Index)
	protected.GET("/accounts/trial-balance", h.Account.TrialBalance)
	protected.GET("/accounts/:account_id", h.Account.Show)
	bookkeeping.POST("/accounts", h.Account.Create)
	bookkeeping.POST("/accounts/import", h.Account.Import)
	bookkeeping.PUT("/accounts/:account_id", h.Account.Update)
	admin.DELETE("/accounts/:account_id", h.Account.Delete)

	// Rules
	protected.GET("/rules", h.Rule.Index)
	protected.GET("/rules/history", h.Rule.AllHistory)
	protected.GET("/rules/:rule_id", h.Rule.Show)
	protected.GET("/rules/:rule_id/history", h.Rule.History)
	bookkeeping.POST("/rules", h.Rule.Create)
	bookkeeping.POST("/rules/import", h.Rule.Import)
	bookkeeping.PUT("/rules/:rule_id", h.Rule.Update)
	bookkeeping.PUT("/rules/:rule_id/toggle", h.Rule.Toggle)
	bookkeeping.POST("/rules/:rule_id/execute", h.Rule.Execute)
	bookkeeping.POST("/rules/:rule_id/trigger", h.Rule.Trigger)
	admin.DELETE("/rules/:rule_id", h.Rule.Delete)

	// Events
	bookkeeping.POST("/events", h.Event.Ingest)

	// Ledger
	protected.GET("/entries", h.Ledger.Index)
	protected.GET("/entries/:entry_id", h.Ledger.Show)
	protected.GET("/entries/:entry_id/voucher", h.Ledger.Voucher)
	bookkeeping.POST("/entries", h.Ledger.Create)
	bookkeeping.PUT("/entries/:entry_id/post", h.Ledger.Post)
	bookkeeping.PUT("/entries/:entry_id/reject", h.Ledger.Reject)
	bookkeeping.PUT("/entries/:entry_id/reverse", h.Ledger.Reverse)

	// Reviews
	protected.GET("/reviews/pending", h.Review.Pending)
	protected.GET("/reviews/:review_id", h.Review.Show)
	protected.GET("/reviews/:review_id/history", h.Review.History)
	protected.GET("/reviews/:review_id/documents/:index", h.Review.Download)
	reviewing.PUT("/reviews/:review_id/decision", h.Review.Decide)
	reviewing.PUT("/reviews/:review_id/checklist", h.Review.Checklist)
	bookkeeping.PUT("/reviews/:review_id/resubmit", h.Review.Resubmit)
	staff.PUT("/reviews/:review_id/assign", h.Review.Assign)
	staff.POST("/reviews/:review_id/documents", h.Review.Upload)

	// Reconciliation
	protected.GET("/corrections", h.Reconciliation.Index)
	protected.GET("/corrections/export", h.Reconciliation.Export)
	protected.GET("/corrections/:correction_id", h.Reconciliation.Show)
	staff.PUT("/corrections/:correction_id", h.Reconciliation.Update)
	bookkeeping.POST("/reconciliation/duplicates", h.Reconciliation.Duplicates)
	bookkeeping.POST("/reconciliation/unbalanced", h.Reconciliation.Unbalanced)
	bookkeeping.POST("/reconciliation/run", h.Reconciliation.Run)

	// Administration
	admin.GET("/audits", h.Audit.Index)
	admin.GET("/jobs/status", h.Job.Status)
}
