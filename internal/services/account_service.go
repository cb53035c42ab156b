package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
)

// AccountInput is the writable part of an account
type AccountInput struct {
	Code         string `json:"code" validate:"required,max=32"`
	Name         string `json:"name" validate:"required,max=255"`
	Type         string `json:"type" validate:"required,account_type"`
	Category     string `json:"category" validate:"max=100"`
	ParentCode   string `json:"parent_code" validate:"omitempty,max=32,nefield=Code"`
	IsActive     *bool  `json:"is_active"`
	AllowPosting *bool  `json:"allow_posting"`
}

type AccountService struct {
	repo     repository.AccountRepository
	ledger   repository.LedgerRepository
	auditSvc *AuditService
}

func NewAccountService(repo repository.AccountRepository, ledger repository.LedgerRepository, auditSvc *AuditService) *AccountService {
	return &AccountService{repo: repo, ledger: ledger, auditSvc: auditSvc}
}

func (s *AccountService) FindByID(ctx context.Context, id uint) (*models.Account, error) {
	acc, err := s.repo.FindByID(ctx, id)
	return acc, mapRepoError(err)
}

func (s *AccountService) List(ctx context.Context, query *repository.ListQuery) ([]models.Account, int64, error) {
	return s.repo.List(ctx, query)
}

// Create adds an account to the chart. New accounts are active and open to
// posting unless the input says otherwise.
func (s *AccountService) Create(ctx context.Context, userID uint, in AccountInput) (*models.Account, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	acc := &models.Account{
		Code:         strings.TrimSpace(in.Code),
		Name:         strings.TrimSpace(in.Name),
		Type:         in.Type,
		Category:     in.Category,
		IsActive:     boolOr(in.IsActive, true),
		AllowPosting: boolOr(in.AllowPosting, true),
	}
	if err := s.setParent(ctx, acc, in.ParentCode); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, mapRepoError(err)
	}

	s.auditSvc.Log(ctx, userID, AuditCreate, "Account", acc.ID,
		fmt.Sprintf("Account %s %q created (%s)", acc.Code, acc.Name, acc.Type))
	return acc, nil
}

// Update changes the descriptive fields of an account. The code and the
// balance are immutable.
func (s *AccountService) Update(ctx context.Context, userID, id uint, in AccountInput) (*models.Account, error) {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	in.Code = acc.Code
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	acc.Name = strings.TrimSpace(in.Name)
	acc.Type = in.Type
	acc.Category = in.Category
	acc.IsActive = boolOr(in.IsActive, acc.IsActive)
	acc.AllowPosting = boolOr(in.AllowPosting, acc.AllowPosting)
	acc.ParentID = nil
	if err := s.setParent(ctx, acc, in.ParentCode); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, acc); err != nil {
		return nil, mapRepoError(err)
	}

	s.auditSvc.Log(ctx, userID, AuditUpdate, "Account", acc.ID, fmt.Sprintf("Account %s updated", acc.Code))
	return acc, nil
}

// Delete removes an account that no entry line or sub-account references
func (s *AccountService) Delete(ctx context.Context, userID, id uint) error {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapRepoError(err)
	}
	used, err := s.repo.IsReferenced(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("%w: %s", ErrAccountInUse, acc.Code)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}

	s.auditSvc.Log(ctx, userID, AuditDelete, "Account", id, fmt.Sprintf("Account %s deleted", acc.Code))
	return nil
}

func (s *AccountService) setParent(ctx context.Context, acc *models.Account, parentCode string) error {
	if parentCode == "" {
		return nil
	}
	parent, err := s.repo.FindByCode(ctx, parentCode)
	if errors.Is(err, repository.ErrNotFound) {
		return invalidField("ParentCode", "unknown account "+parentCode)
	}
	if err != nil {
		return err
	}
	if acc.ID != 0 && parent.ID == acc.ID {
		return invalidField("ParentCode", "self reference")
	}
	acc.ParentID = &parent.ID
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// AccountRowError is one rejected row of a chart import
type AccountRowError struct {
	Row         int    `json:"row"`
	AccountCode string `json:"account_code"`
	Field       string `json:"field"`
	Error       string `json:"error"`
	Value       string `json:"value,omitempty"`
}

// AccountImportResult summarizes a chart of accounts import
type AccountImportResult struct {
	Created      []models.Account  `json:"created"`
	Errors       []AccountRowError `json:"errors"`
	TotalRows    int               `json:"total_rows"`
	CreatedCount int               `json:"created_count"`
	ErrorCount   int               `json:"error_count"`
}

var importColumns = []string{"code", "name", "type", "category", "parent_code", "allow_posting", "is_active"}

// ImportXLSX creates accounts from the first sheet of an XLSX workbook. The
// first row is a header naming the columns (code, name, type, category,
// parent_code, allow_posting, is_active); the first three are required.
// Rows are imported independently: a bad row is reported and skipped.
// Parents must appear before their children.
func (s *AccountService) ImportXLSX(ctx context.Context, userID uint, r io.Reader) (*AccountImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable workbook: %v", ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, invalidField("file", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, invalidField("file", "sheet is empty")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range importColumns[:3] {
		if _, ok := cols[required]; !ok {
			return nil, invalidField("header", "missing column "+required)
		}
	}

	result := &AccountImportResult{}
	for i, row := range rows[1:] {
		rowNum := i + 2
		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if isBlankRow(row) {
			continue
		}
		result.TotalRows++

		in := AccountInput{
			Code:       cell("code"),
			Name:       cell("name"),
			Type:       strings.ToLower(cell("type")),
			Category:   cell("category"),
			ParentCode: cell("parent_code"),
		}
		rowErr := func(field, msg, value string) {
			result.Errors = append(result.Errors, AccountRowError{Row: rowNum, AccountCode: in.Code, Field: field, Error: msg, Value: value})
		}

		var flagErr bool
		for _, flag := range []struct {
			column string
			dst    **bool
		}{{"allow_posting", &in.AllowPosting}, {"is_active", &in.IsActive}} {
			raw := cell(flag.column)
			if raw == "" {
				continue
			}
			v, ok := parseFlag(raw)
			if !ok {
				rowErr(flag.column, "not a yes/no value", raw)
				flagErr = true
				continue
			}
			*flag.dst = &v
		}
		if flagErr {
			continue
		}

		acc, err := s.Create(ctx, userID, in)
		if err != nil {
			var verr *ValidationError
			switch {
			case errors.As(err, &verr):
				for field, rule := range verr.Fields {
					rowErr(field, rule, "")
				}
			case errors.Is(err, ErrDuplicate):
				rowErr("code", "account already exists", in.Code)
			default:
				return result, fmt.Errorf("import row %d: %w", rowNum, err)
			}
			continue
		}
		result.Created = append(result.Created, *acc)
	}

	result.CreatedCount = len(result.Created)
	result.ErrorCount = len(result.Errors)
	s.auditSvc.Log(ctx, userID, AuditImport, "Account", 0,
		fmt.Sprintf("Chart import: %d rows, %d created, %d errors", result.TotalRows, result.CreatedCount, result.ErrorCount))
	return result, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseFlag(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "y", "yes", "true", "si", "sí", "x":
		return true, true
	case "0", "n", "no", "false":
		return false, true
	}
	return false, false
}

// TrialBalanceRow is one account's posted activity
type TrialBalanceRow struct {
	AccountID uint            `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
	// Drift is set when the stored running balance disagrees with the
	// balance computed from posted lines.
	Drift bool `json:"drift"`
}

// TrialBalance checks that posted activity balances across the chart
type TrialBalance struct {
	Rows         []TrialBalanceRow `json:"rows"`
	TotalDebit   decimal.Decimal   `json:"total_debit"`
	TotalCredit  decimal.Decimal   `json:"total_credit"`
	DebitNormal  decimal.Decimal   `json:"debit_normal"`
	CreditNormal decimal.Decimal   `json:"credit_normal"`
	Balanced     bool              `json:"balanced"`
}

// TrialBalance sums posted lines per account. The ledger is in balance when
// total debits equal total credits, which is the same as the debit-normal
// balances equalling the credit-normal ones.
func (s *AccountService) TrialBalance(ctx context.Context) (*TrialBalance, error) {
	accounts, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	activity, err := s.ledger.PostedActivity(ctx)
	if err != nil {
		return nil, err
	}
	byAccount := make(map[uint]repository.AccountActivity, len(activity))
	for _, a := range activity {
		byAccount[a.AccountID] = a
	}

	tb := &TrialBalance{}
	for i := range accounts {
		acc := &accounts[i]
		act := byAccount[acc.ID]
		balance := acc.BalanceEffect(act.Debit, act.Credit)
		tb.Rows = append(tb.Rows, TrialBalanceRow{
			AccountID: acc.ID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Debit:     act.Debit,
			Credit:    act.Credit,
			Balance:   balance,
			Drift:     !balance.Equal(acc.Balance),
		})
		tb.TotalDebit = tb.TotalDebit.Add(act.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(act.Credit)
		if acc.IsDebitNormal() {
			tb.DebitNormal = tb.DebitNormal.Add(balance)
		} else {
			tb.CreditNormal = tb.CreditNormal.Add(balance)
		}
	}
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit) && tb.DebitNormal.Equal(tb.CreditNormal)
	return tb, nil
}
