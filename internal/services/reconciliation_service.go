package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sjperalta/fintera-ledger/internal/alerting"
	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/config"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/observability/metrics"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/internal/statemachine"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

const (
	defaultDuplicateThreshold = 0.95
	defaultPageSize           = 500
)

var maxEpsilon = decimal.RequireFromString("0.001")

// ScanResult summarizes one reconciliation pass
type ScanResult struct {
	Scanned  int    `json:"scanned"`
	Findings int    `json:"findings"`
	Existing int    `json:"existing"`
	Fixed    int    `json:"fixed"`
	IDs      []uint `json:"correction_ids"`

	DurationMs int64 `json:"duration_ms"`
}

type ReconciliationService struct {
	ledger      repository.LedgerRepository
	corrections repository.CorrectionRepository
	auditSvc    *AuditService
	notifier    alerting.Notifier
	clock       clock.Clock
	logger      *slog.Logger

	threshold float64
	epsilon   decimal.Decimal
	pageSize  int
	autoFix   bool
}

func NewReconciliationService(
	ledger repository.LedgerRepository,
	corrections repository.CorrectionRepository,
	auditSvc *AuditService,
	notifier alerting.Notifier,
	c clock.Clock,
	cfg config.ReconciliationConfig,
) *ReconciliationService {
	if c == nil {
		c = clock.System()
	}
	if notifier == nil {
		notifier = alerting.LogNotifier{}
	}
	s := &ReconciliationService{
		ledger:      ledger,
		corrections: corrections,
		auditSvc:    auditSvc,
		notifier:    notifier,
		clock:       c,
		logger:      logger.With("reconciliation"),
		threshold:   cfg.DuplicateThreshold,
		epsilon:     decimal.NewFromFloat(cfg.Epsilon),
		pageSize:    cfg.PageSize,
		autoFix:     cfg.AutoFixUnbalanced,
	}
	if s.threshold <= 0 || s.threshold > 1 {
		s.threshold = defaultDuplicateThreshold
	}
	// epsilon never exceeds a tenth of a cent
	if s.epsilon.IsNegative() || s.epsilon.IsZero() || s.epsilon.GreaterThan(maxEpsilon) {
		s.epsilon = maxEpsilon
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	return s
}

// DetectDuplicateEntries flags pairs of live entries that share a date and an
// amount and whose normalized descriptions are at least threshold similar.
// Entries are never merged or modified.
func (s *ReconciliationService) DetectDuplicateEntries(ctx context.Context) (*ScanResult, error) {
	res := &ScanResult{}
	defer s.observeScan(models.CorrectionTypeDuplicateEntry, s.clock.Now(), res)

	type candidate struct {
		entry models.JournalEntry
		desc  string
	}

	var (
		cursor  repository.EntryCursor
		sameDay []candidate
	)
	statuses := []string{models.EntryStatusDraft, models.EntryStatusPosted}
	for {
		page, err := s.ledger.ScanPage(ctx, cursor, s.pageSize, statuses)
		if err != nil {
			return res, err
		}
		for _, e := range page {
			res.Scanned++
			if len(sameDay) > 0 && !sameDay[0].entry.EntryDate.Equal(e.EntryDate) {
				sameDay = sameDay[:0]
			}
			cur := candidate{entry: e, desc: NormalizeDescription(e.Description)}
			for _, prev := range sameDay {
				if !prev.entry.TotalDebit.Equal(e.TotalDebit) {
					continue
				}
				sim := Similarity(prev.desc, cur.desc)
				if sim < s.threshold {
					continue
				}
				if err := s.recordDuplicate(ctx, &prev.entry, &e, sim, res); err != nil {
					return res, err
				}
			}
			sameDay = append(sameDay, cur)
		}
		if len(page) < s.pageSize {
			break
		}
		last := page[len(page)-1]
		cursor = repository.EntryCursor{Date: last.EntryDate, ID: last.ID}
	}

	s.logger.InfoContext(ctx, "Duplicate scan finished",
		"scanned", res.Scanned, "findings", res.Findings, "existing", res.Existing)
	return res, nil
}

func (s *ReconciliationService) recordDuplicate(ctx context.Context, a, b *models.JournalEntry, sim float64, res *ScanResult) error {
	finding := &models.CorrectionLog{
		FindingKey:        fmt.Sprintf("%s:%d:%d", models.CorrectionTypeDuplicateEntry, a.ID, b.ID),
		DetectedAt:        s.clock.Now().UTC(),
		ErrorType:         models.CorrectionTypeDuplicateEntry,
		Severity:          models.SeverityForVariance(a.TotalDebit),
		Description:       fmt.Sprintf("Entries %d and %d on %s share amount %s (similarity %.2f)", a.ID, b.ID, a.EntryDate.Format(time.DateOnly), a.TotalDebit.StringFixed(2), sim),
		AffectedEntryIDs:  []uint{a.ID, b.ID},
		Variance:          a.TotalDebit,
		Similarity:        sim,
		Status:            models.CorrectionStatusDetected,
		ManualFixRequired: true,
	}
	created, err := s.corrections.Record(ctx, finding)
	if err != nil {
		return err
	}
	res.IDs = append(res.IDs, finding.ID)
	if !created {
		res.Existing++
		return nil
	}
	res.Findings++
	metrics.IncReconciliationFinding(finding.ErrorType, finding.Severity)
	s.logger.WarnContext(ctx, "Possible duplicate entries",
		"correction_id", finding.ID, "entry_a", a.ID, "entry_b", b.ID, "similarity", sim)
	s.alertIfCritical(ctx, finding)
	return nil
}

// DetectUnbalancedEntries flags entries whose header totals differ by more
// than epsilon. With auto-fix enabled, totals are recomputed from the lines
// when the lines balance; otherwise the finding asks for a manual fix and the
// entry is left untouched.
func (s *ReconciliationService) DetectUnbalancedEntries(ctx context.Context) (*ScanResult, error) {
	res := &ScanResult{}
	defer s.observeScan(models.CorrectionTypeUnbalancedEntry, s.clock.Now(), res)

	var cursor repository.EntryCursor
	for {
		page, err := s.ledger.ScanPage(ctx, cursor, s.pageSize, nil)
		if err != nil {
			return res, err
		}
		for i := range page {
			res.Scanned++
			if page[i].Variance().LessThanOrEqual(s.epsilon) {
				continue
			}
			if err := s.recordUnbalanced(ctx, &page[i], res); err != nil {
				return res, err
			}
		}
		if len(page) < s.pageSize {
			break
		}
		last := page[len(page)-1]
		cursor = repository.EntryCursor{Date: last.EntryDate, ID: last.ID}
	}

	s.logger.InfoContext(ctx, "Unbalanced scan finished",
		"scanned", res.Scanned, "findings", res.Findings, "existing", res.Existing, "fixed", res.Fixed)
	return res, nil
}

func (s *ReconciliationService) recordUnbalanced(ctx context.Context, e *models.JournalEntry, res *ScanResult) error {
	variance := e.TotalDebit.Sub(e.TotalCredit)
	finding := &models.CorrectionLog{
		FindingKey:        models.CorrectionTypeUnbalancedEntry + ":" + strconv.FormatUint(uint64(e.ID), 10),
		DetectedAt:        s.clock.Now().UTC(),
		ErrorType:         models.CorrectionTypeUnbalancedEntry,
		Severity:          models.SeverityForVariance(variance),
		Description:       fmt.Sprintf("Entry %d totals debit %s credit %s", e.ID, e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2)),
		AffectedEntryIDs:  []uint{e.ID},
		Variance:          variance,
		Status:            models.CorrectionStatusDetected,
		ManualFixRequired: true,
	}
	created, err := s.corrections.Record(ctx, finding)
	if err != nil {
		return err
	}
	res.IDs = append(res.IDs, finding.ID)
	if created {
		res.Findings++
		metrics.IncReconciliationFinding(finding.ErrorType, finding.Severity)
		s.logger.WarnContext(ctx, "Unbalanced entry",
			"correction_id", finding.ID, "entry_id", e.ID, "variance", variance.String())
		s.alertIfCritical(ctx, finding)
	} else {
		res.Existing++
		if !finding.IsOpen() {
			return nil
		}
	}

	if !s.autoFix {
		return nil
	}

	fixedEntry, fixed, err := s.ledger.FixTotals(ctx, e.ID)
	if err != nil {
		return err
	}
	if !fixed {
		s.logger.WarnContext(ctx, "Entry lines do not balance, manual fix required", "entry_id", e.ID)
		return nil
	}

	if err := statemachine.NewCorrectionFSM(finding).Fire(ctx, statemachine.EventFix); err != nil {
		return invalidState(err)
	}
	now := s.clock.Now().UTC()
	finding.AutoFixApplied = true
	finding.ManualFixRequired = false
	finding.ResolvedAt = &now
	finding.ResolutionNotes = fmt.Sprintf("totals recomputed from lines: %s/%s",
		fixedEntry.TotalDebit.StringFixed(2), fixedEntry.TotalCredit.StringFixed(2))
	if err := s.corrections.Update(ctx, finding); err != nil {
		return err
	}
	res.Fixed++
	s.auditSvc.Log(ctx, 0, AuditUpdate, "JournalEntry", e.ID, "Totals auto-fixed: "+finding.ResolutionNotes)
	s.logger.InfoContext(ctx, "Unbalanced entry auto-fixed", "entry_id", e.ID, "correction_id", finding.ID)
	return nil
}

func (s *ReconciliationService) observeScan(kind string, start time.Time, res *ScanResult) {
	d := s.clock.Now().Sub(start)
	res.DurationMs = d.Milliseconds()
	metrics.ObserveReconciliationScan(kind, d)
}

func (s *ReconciliationService) alertIfCritical(ctx context.Context, f *models.CorrectionLog) {
	if f.Severity != models.SeverityCritical {
		return
	}
	tid, _ := tenant.FromContext(ctx)
	s.notifier.Notify(ctx, alerting.Alert{
		Title:    "Critical reconciliation finding",
		Level:    alerting.LevelError,
		TenantID: tid,
		Tags:     map[string]string{"error_type": f.ErrorType},
		Extra: map[string]any{
			"correction_id":      f.ID,
			"affected_entry_ids": f.AffectedEntryIDs,
			"variance":           f.Variance.String(),
		},
	})
}

// CorrectionUpdate is an operator transition of a finding
type CorrectionUpdate struct {
	Action string `json:"action" validate:"required,oneof=start_review fix ignore"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// UpdateCorrectionStatus moves a finding through detected → reviewing →
// fixed|ignored on behalf of an operator.
func (s *ReconciliationService) UpdateCorrectionStatus(ctx context.Context, userID, id uint, in CorrectionUpdate) (*models.CorrectionLog, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	finding, err := s.corrections.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if err := statemachine.NewCorrectionFSM(finding).Fire(ctx, in.Action); err != nil {
		return nil, invalidState(err)
	}
	if in.Notes != "" {
		finding.ResolutionNotes = in.Notes
	}
	if !finding.IsOpen() {
		now := s.clock.Now().UTC()
		finding.ResolvedBy = &userID
		finding.ResolvedAt = &now
		finding.ManualFixRequired = false
	}
	if err := s.corrections.Update(ctx, finding); err != nil {
		return nil, mapRepoError(err)
	}
	s.auditSvc.Log(ctx, userID, AuditResolve, "CorrectionLog", finding.ID,
		fmt.Sprintf("%s → %s", in.Action, finding.Status))
	return finding, nil
}

func (s *ReconciliationService) FindCorrection(ctx context.Context, id uint) (*models.CorrectionLog, error) {
	f, err := s.corrections.FindByID(ctx, id)
	return f, mapRepoError(err)
}

func (s *ReconciliationService) ListCorrections(ctx context.Context, query *repository.ListQuery) ([]models.CorrectionLog, int64, error) {
	return s.corrections.List(ctx, query)
}

// RunAllTenants runs both scans for every tenant with entries. A failing
// tenant does not stop the others.
func (s *ReconciliationService) RunAllTenants(ctx context.Context) error {
	tenants, err := s.ledger.DistinctTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	var errs []error
	for _, tid := range tenants {
		if err := ctx.Err(); err != nil {
			return err
		}
		tctx := tenant.WithTenantID(ctx, tid)
		if _, err := s.DetectDuplicateEntries(tctx); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s duplicates: %w", tid, err))
		}
		if _, err := s.DetectUnbalancedEntries(tctx); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s unbalanced: %w", tid, err))
		}
	}
	return errors.Join(errs...)
}

// NormalizeDescription folds case and accents, drops punctuation and
// collapses whitespace.
func NormalizeDescription(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = cases.Lower(language.Und).String(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			space = true
		}
	}
	return b.String()
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
