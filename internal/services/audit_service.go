package services

import (
	"context"
	"log/slog"

	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// Audit actions
const (
	AuditCreate  = "CREATE"
	AuditUpdate  = "UPDATE"
	AuditDelete  = "DELETE"
	AuditImport  = "IMPORT"
	AuditPost    = "POST"
	AuditReject  = "REJECT"
	AuditReverse = "REVERSE"
	AuditReview  = "REVIEW"
	AuditExecute = "EXECUTE"
	AuditResolve = "RESOLVE"
)

type AuditService struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo, logger: logger.With("audit")}
}

// Log records an audit entry for the context tenant. A failed write is
// logged and never fails the audited operation.
func (s *AuditService) Log(ctx context.Context, userID uint, action, entity string, entityID uint, details string) {
	entry := &models.AuditLog{
		UserID:   userID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Details:  details,
	}
	if meta, ok := RequestMetaFromContext(ctx); ok {
		entry.IPAddress = meta.IP
		entry.UserAgent = meta.UserAgent
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write audit log",
			"action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

// List retrieves audit logs with filters
func (s *AuditService) List(ctx context.Context, query *repository.ListQuery) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, query)
}

type requestMetaKey struct{}

// RequestMeta is the caller information stamped on audit entries
type RequestMeta struct {
	IP        string
	UserAgent string
}

// WithRequestMeta attaches caller information to ctx
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the caller information, if any
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}
