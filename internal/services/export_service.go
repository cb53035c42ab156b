package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
)

type ExportService struct {
	corrections repository.CorrectionRepository
	ledger      repository.LedgerRepository
	accounts    repository.AccountRepository
	clock       clock.Clock
}

func NewExportService(corrections repository.CorrectionRepository, ledger repository.LedgerRepository, accounts repository.AccountRepository, c clock.Clock) *ExportService {
	if c == nil {
		c = clock.System()
	}
	return &ExportService{corrections: corrections, ledger: ledger, accounts: accounts, clock: c}
}

var correctionColumns = []string{
	"ID", "Detected At", "Error Type", "Severity", "Status", "Affected Entries",
	"Variance", "Similarity", "Auto Fix", "Manual Fix", "Description", "Resolution Notes",
}

func correctionRow(c *models.CorrectionLog) []string {
	ids := make([]string, len(c.AffectedEntryIDs))
	for i, id := range c.AffectedEntryIDs {
		ids[i] = strconv.FormatUint(uint64(id), 10)
	}
	return []string{
		strconv.FormatUint(uint64(c.ID), 10),
		c.DetectedAt.Format(time.RFC3339),
		c.ErrorType,
		c.Severity,
		c.Status,
		strings.Join(ids, " "),
		c.Variance.StringFixed(2),
		strconv.FormatFloat(c.Similarity, 'f', 4, 64),
		strconv.FormatBool(c.AutoFixApplied),
		strconv.FormatBool(c.ManualFixRequired),
		c.Description,
		c.ResolutionNotes,
	}
}

func (s *ExportService) listCorrections(ctx context.Context, filters map[string]string) ([]models.CorrectionLog, error) {
	query := repository.NewListQuery()
	query.PerPage = 0
	for k, v := range filters {
		query.Filters[k] = v
	}
	findings, _, err := s.corrections.List(ctx, query)
	return findings, err
}

// CorrectionsCSV exports the correction log, newest first
func (s *ExportService) CorrectionsCSV(ctx context.Context, filters map[string]string) ([]byte, string, error) {
	findings, err := s.listCorrections(ctx, filters)
	if err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)
	_ = writer.Write(correctionColumns)
	for i := range findings {
		_ = writer.Write(correctionRow(&findings[i]))
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("corrections_%s.csv", s.clock.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// CorrectionsXLSX exports the correction log as a spreadsheet
func (s *ExportService) CorrectionsXLSX(ctx context.Context, filters map[string]string) ([]byte, string, error) {
	findings, err := s.listCorrections(ctx, filters)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Corrections"
	_ = f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	criticalStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#B00020"},
	})

	for col, name := range correctionColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, name)
	}
	last, _ := excelize.CoordinatesToCellName(len(correctionColumns), 1)
	_ = f.SetCellStyle(sheet, "A1", last, headerStyle)

	for i := range findings {
		row := i + 2
		for col, value := range correctionRow(&findings[i]) {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			switch col {
			case 0:
				_ = f.SetCellValue(sheet, cell, findings[i].ID)
			case 6:
				_ = f.SetCellValue(sheet, cell, findings[i].Variance.InexactFloat64())
			case 7:
				_ = f.SetCellValue(sheet, cell, findings[i].Similarity)
			default:
				_ = f.SetCellValue(sheet, cell, value)
			}
		}
		if findings[i].Severity == models.SeverityCritical {
			cell, _ := excelize.CoordinatesToCellName(4, row)
			_ = f.SetCellStyle(sheet, cell, cell, criticalStyle)
		}
	}
	_ = f.SetColWidth(sheet, "K", "L", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("corrections_%s.xlsx", s.clock.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// EntryVoucherPDF renders a journal voucher for one entry
func (s *ExportService) EntryVoucherPDF(ctx context.Context, entryID uint) ([]byte, string, error) {
	entry, err := s.ledger.FindByID(ctx, entryID)
	if err != nil {
		return nil, "", mapRepoError(err)
	}
	accounts, err := s.accounts.FindAll(ctx)
	if err != nil {
		return nil, "", err
	}
	names := make(map[uint]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Journal Voucher #%d", entry.ID))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	header := [][2]string{
		{"Date", entry.EntryDate.Format("2006-01-02")},
		{"Reference", entry.ReferenceType + " / " + entry.ReferenceID},
		{"Status", entry.Status + " (review " + entry.ReviewStatus + ")"},
		{"Description", entry.Description},
	}
	for _, h := range header {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(35, 6, h[0]+":")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, tr(h[1]), "", "L", false)
	}
	pdf.Ln(6)

	widths := []float64{12, 28, 70, 40, 40}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(224, 224, 224)
	for i, h := range []string{"#", "Account", "Name", "Debit", "Credit"} {
		align := "L"
		if i >= 3 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, l := range entry.Lines {
		pdf.CellFormat(widths[0], 6, strconv.Itoa(l.LineNumber), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, l.AccountCode, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, tr(names[l.AccountID]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, amountCell(l.DebitAmount.IsZero(), l.DebitAmount.StringFixed(2)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, amountCell(l.CreditAmount.IsZero(), l.CreditAmount.StringFixed(2)), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 7, "Totals", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 7, entry.TotalDebit.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[4], 7, entry.TotalCredit.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Arial", "I", 8)
	pdf.Cell(0, 5, "Generated "+s.clock.Now().UTC().Format(time.RFC1123))

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("voucher_%d.pdf", entry.ID)
	return buf.Bytes(), filename, nil
}

func amountCell(zero bool, s string) string {
	if zero {
		return ""
	}
	return s
}
