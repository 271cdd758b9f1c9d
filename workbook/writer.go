package workbook

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
)

// WriteRunWorkbook writes the run artifacts as one workbook: the
// unified merged table, the discrepancy report, the row-level issue
// report, and the sync audit sheet.
func WriteRunWorkbook(path string, result *recon.Result) error {
	f, err := buildRunWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// RunWorkbookBytes renders the run workbook in memory for upload to
// object storage.
func RunWorkbookBytes(result *recon.Result) ([]byte, error) {
	f, err := buildRunWorkbook(result)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildRunWorkbook(result *recon.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeMergedSheet(f, "Merged", result.Merged); err != nil {
		return nil, err
	}
	if err := writeDiscrepancySheet(f, "Discrepancies", result.Discrepancies); err != nil {
		return nil, err
	}
	if err := writeIssueSheet(f, "Issues", result.Issues); err != nil {
		return nil, err
	}
	if result.Plan != nil {
		if err := writeAuditSheet(f, "Sync Audit", result.Plan); err != nil {
			return nil, err
		}
	}

	// Drop the default sheet so the artifact opens on the merged table.
	f.DeleteSheet("Sheet1")
	idx, err := f.GetSheetIndex("Merged")
	if err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

var mergedHeader = []string{
	"Invoice Number", "Item Number", "Case Number", "QTY", "Unit Price",
	"Corrected Unit Price", "Extended Price", "Extended Correct Price",
	"Credit Request Total", "Margin %", "Category", "Description",
	"RTN/CR No.", "Customer Number", "Requested By", "Reason",
	"Sources", "Clean", "Match",
}

func writeMergedSheet(f *excelize.File, sheet string, merged []*recon.MergedRow) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	writeHeader(f, sheet, mergedHeader)
	for i, m := range merged {
		v := m.Values
		cells := []interface{}{
			m.Key.Invoice, m.Key.Item, m.Key.Case,
			decCell(v.Qty), decCell(v.UnitPrice), decCell(v.CorrectedUnitPrice),
			decCell(v.ExtendedPrice), decCell(v.ExtendedCorrect), decCell(v.CreditTotal),
			decCell(v.MarginPct),
			v.Category, v.Description, v.RtnCrNo, v.CustomerNo, v.RequestedBy, v.Reason,
			m.CompletenessTag(), m.Clean, matchTag(m),
		}
		writeCells(f, sheet, i+2, cells)
	}
	return nil
}

func matchTag(m *recon.MergedRow) string {
	switch {
	case m.Ambiguous:
		return "ambiguous"
	case m.Fuzzy:
		return fmt.Sprintf("fuzzy %.3f (master %s)", m.FuzzyScore, m.MasterKey)
	default:
		return "exact"
	}
}

func writeDiscrepancySheet(f *excelize.File, sheet string, discrepancies []recon.Discrepancy) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	writeHeader(f, sheet, []string{
		"Invoice Number", "Item Number", "Field", "Credit Request", "SOP",
		"Billing Master", "Severity",
	})
	for i, d := range discrepancies {
		writeCells(f, sheet, i+2, []interface{}{
			d.Key.Invoice, d.Key.Item, d.Field,
			d.Values[recon.SourceCredit], d.Values[recon.SourceSOP], d.Values[recon.SourceMaster],
			string(d.Severity),
		})
	}
	return nil
}

func writeIssueSheet(f *excelize.File, sheet string, issues []recon.Issue) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	writeHeader(f, sheet, []string{
		"Source", "Invoice Number", "Item Number", "Row", "Code", "Severity", "Message",
	})
	for i, issue := range issues {
		writeCells(f, sheet, i+2, []interface{}{
			string(issue.Source), issue.Key.Invoice, issue.Key.Item, issue.Line,
			string(issue.Code), string(issue.Severity), issue.Message,
		})
	}
	return nil
}

func writeAuditSheet(f *excelize.File, sheet string, plan *recon.SyncPlan) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	writeHeader(f, sheet, []string{
		"Invoice Number", "Item Number", "State", "New", "Skip Reason",
		"Confidence", "Version Before", "Version After",
		"Unit Price Before", "Unit Price After",
	})
	for i, e := range plan.Entries {
		var vBefore, vAfter interface{}
		var pBefore, pAfter interface{}
		if e.Before != nil {
			vBefore = e.Before.Version
			pBefore = decCell(e.Before.UnitPrice)
		}
		if e.After != nil {
			vAfter = e.After.Version
			pAfter = decCell(e.After.UnitPrice)
		}
		writeCells(f, sheet, i+2, []interface{}{
			e.Key.Invoice, e.Key.Item, string(e.State), e.New, string(e.SkipReason),
			e.Confidence, vBefore, vAfter, pBefore, pAfter,
		})
	}
	return nil
}

var masterHeader = []string{
	"Invoice Number", "Item Number", "Case Number", "QTY", "Unit Price",
	"Corrected Unit Price", "Extended Price", "Credit Total", "Margin %",
	"Category", "Description", "RTN/CR No.", "Customer Number",
	"Version", "Updated At",
}

// WriteMasterWorkbook writes the (updated) billing master as a
// workbook, one row per entry, sorted by the caller.
func WriteMasterWorkbook(path string, entries []recon.MasterEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Billing Master"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	writeHeader(f, sheet, masterHeader)
	for i, e := range entries {
		updated := ""
		if !e.VersionTime.IsZero() {
			updated = e.VersionTime.Format("2006-01-02 15:04:05")
		}
		writeCells(f, sheet, i+2, []interface{}{
			e.Key.Invoice, e.Key.Item, e.Key.Case,
			decCell(e.Qty), decCell(e.UnitPrice), decCell(e.CorrectedUnitPrice),
			decCell(e.ExtendedPrice), decCell(e.CreditTotal), decCell(e.MarginPct),
			e.Category, e.Description, e.RtnCrNo, e.CustomerNo,
			e.Version, updated,
		})
	}
	f.DeleteSheet("Sheet1")
	return f.SaveAs(path)
}

// WriteMergedCSV exports the merged table as CSV for consumers that
// want delimited text instead of a workbook.
func WriteMergedCSV(path string, merged []*recon.MergedRow) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(mergedHeader); err != nil {
		return err
	}
	for _, m := range merged {
		v := m.Values
		rec := []string{
			m.Key.Invoice, m.Key.Item, m.Key.Case,
			decString(v.Qty), decString(v.UnitPrice), decString(v.CorrectedUnitPrice),
			decString(v.ExtendedPrice), decString(v.ExtendedCorrect), decString(v.CreditTotal),
			decString(v.MarginPct),
			v.Category, v.Description, v.RtnCrNo, v.CustomerNo, v.RequestedBy, v.Reason,
			m.CompletenessTag(), fmt.Sprint(m.Clean), matchTag(m),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeHeader(f *excelize.File, sheet string, header []string) {
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
}

func writeCells(f *excelize.File, sheet string, rowNo int, cells []interface{}) {
	for i, v := range cells {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, rowNo)
		f.SetCellValue(sheet, cell, v)
	}
}

func decCell(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	v, _ := d.Float64()
	return v
}

func decString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
