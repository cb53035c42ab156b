package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/sjperalta/fintera-ledger/internal/tenant"
)

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

// byTenant restricts a query to one tenant's rows
func byTenant(tenantID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// scoped returns a session bound to ctx and the context tenant
func scoped(ctx context.Context, db *gorm.DB) (*gorm.DB, string, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, "", err
	}
	return db.WithContext(ctx).Scopes(byTenant(tid)), tid, nil
}

// paginate applies sorting and paging. sortable whitelists the columns a
// caller may order by; anything else falls back to def.
func paginate(db *gorm.DB, query *ListQuery, sortable map[string]bool, def string) *gorm.DB {
	if query.SortBy != "" && sortable[query.SortBy] {
		order := query.SortBy
		if strings.EqualFold(query.SortDir, "desc") {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order(def)
	}

	if query.PerPage > 0 {
		page := query.Page
		if page < 1 {
			page = 1
		}
		db = db.Offset((page - 1) * query.PerPage).Limit(query.PerPage)
	}
	return db
}

// likePattern builds a case-insensitive LIKE operand
func likePattern(search string) string {
	return "%" + strings.ToLower(search) + "%"
}
