package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/models"
)

// amountScale matches the numeric(18,4) columns amounts are stored in
const amountScale = 4

// Synthesizer turns a matched rule and its event into a balanced entry
type Synthesizer struct {
	resolver *AccountResolver
}

// NewSynthesizer creates a synthesizer resolving accounts through resolver
func NewSynthesizer(resolver *AccountResolver) *Synthesizer {
	return &Synthesizer{resolver: resolver}
}

// Synthesize builds the candidate entry for rule and ev. The entry has no
// status yet; the tracker decides whether it is posted or goes to review.
// It is validated before being returned, so an unbalanced candidate never
// leaves this function.
func (s *Synthesizer) Synthesize(ctx context.Context, rule *models.AutomationRule, ev events.Event) (*models.JournalEntry, error) {
	mappings := rule.AccountMappings
	accounts, err := s.resolver.ResolveMappings(ctx, mappings)
	if err != nil {
		return nil, err
	}

	amount, err := primaryAmount(mappings, ev.Payload)
	if err != nil {
		return nil, err
	}

	refType, refID := ev.Reference()
	date := ev.OccurredAt
	if d, ok := ev.Payload.Date(); ok {
		date = d
	}
	date = models.NormalizeEntryDate(date)

	description := renderDescription(rule, ev, refID, amount, date)

	ruleID := rule.ID
	entry := &models.JournalEntry{
		TenantID:      ev.TenantID,
		EntryDate:     date,
		Description:   description,
		ReferenceType: refType,
		ReferenceID:   refID,
		RuleID:        &ruleID,
	}

	entry.Lines = appendPair(entry.Lines, accounts[mappings.DebitAccount], accounts[mappings.CreditAccount], amount, description)

	for _, extra := range mappings.AdditionalLines {
		value, present, err := ev.Payload.Decimal(extra.AmountField)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if !present || value.IsZero() {
			continue
		}
		if value.IsNegative() {
			return nil, fmt.Errorf("%w: field %q is negative", ErrInvalidPayload, extra.AmountField)
		}
		lineDesc := extra.Description
		if lineDesc == "" {
			lineDesc = description
		}
		entry.Lines = appendPair(entry.Lines, accounts[extra.DebitAccount], accounts[extra.CreditAccount], value.Round(amountScale), lineDesc)
	}

	entry.RecomputeTotals()
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

func primaryAmount(m models.AccountMappings, payload events.Payload) (decimal.Decimal, error) {
	field := m.PrimaryAmountField()
	amount, present, err := payload.Decimal(field)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !present {
		if m.FixedAmount == nil {
			return decimal.Zero, fmt.Errorf("%w: missing amount field %q", ErrInvalidPayload, field)
		}
		amount = *m.FixedAmount
	}
	amount = amount.Round(amountScale)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidPayload, amount.String())
	}
	return amount, nil
}

func appendPair(lines []models.JournalEntryLine, debit, credit *models.Account, amount decimal.Decimal, description string) []models.JournalEntryLine {
	n := len(lines)
	return append(lines,
		models.JournalEntryLine{
			AccountID:   debit.ID,
			AccountCode: debit.Code,
			LineNumber:  n + 1,
			Description: description,
			DebitAmount: amount,
		},
		models.JournalEntryLine{
			AccountID:    credit.ID,
			AccountCode:  credit.Code,
			LineNumber:   n + 2,
			Description:  description,
			CreditAmount: amount,
		},
	)
}

// renderDescription substitutes the known placeholders literally. {{amount}}
// is the payload's amount as sent, or the fixed amount when the payload has
// none. Anything else in braces is left untouched.
func renderDescription(rule *models.AutomationRule, ev events.Event, refID string, amount decimal.Decimal, date time.Time) string {
	tmpl := rule.AccountMappings.DescriptionTemplate
	if tmpl == "" {
		return fmt.Sprintf("%s - %s", rule.Name, refID)
	}
	eventDesc, _ := ev.Payload.String(events.FieldDescription)
	amountText, ok := ev.Payload.String(rule.AccountMappings.PrimaryAmountField())
	if !ok {
		amountText = amount.String()
	}
	return strings.NewReplacer(
		"{{reference_id}}", refID,
		"{{amount}}", amountText,
		"{{description}}", eventDesc,
		"{{date}}", date.Format("2006-01-02"),
	).Replace(tmpl)
}
