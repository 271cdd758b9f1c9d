package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
)

const headerSampleRows = 10

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// NormalizeHeader collapses a raw column header to a comparable form:
// "RTN/CR No." -> "rtn_cr_no".
func NormalizeHeader(h string) string {
	h = nonAlnum.ReplaceAllString(strings.TrimSpace(h), "_")
	h = strings.Trim(h, "_")
	return strings.ToLower(h)
}

// DetectHeaderRow scores the first sample rows by non-empty ratio and
// text ratio and returns the index of the most header-like row.
// Externally produced workbooks often carry title/banner rows above the
// real header.
func DetectHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > headerSampleRows {
		limit = headerSampleRows
	}
	bestIdx, bestScore := 0, -1.0
	for i := 0; i < limit; i++ {
		row := rows[i]
		if len(row) == 0 {
			continue
		}
		nonEmpty, text := 0, 0
		for _, cell := range row {
			c := strings.TrimSpace(cell)
			if c == "" {
				continue
			}
			nonEmpty++
			if strings.IndexFunc(c, func(r rune) bool {
				return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			}) >= 0 {
				text++
			}
		}
		score := 0.6*float64(nonEmpty)/float64(len(row)) + 0.4*float64(text)/float64(len(row))
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return bestIdx
}

// ResolveColumns maps canonical field names to column indexes using the
// alias table. Unmapped fields are simply absent from the result.
func ResolveColumns(header []string, mapping ColumnMapping) map[string]int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = NormalizeHeader(h)
	}
	out := make(map[string]int)
	for field, aliases := range mapping {
		for _, alias := range aliases {
			want := NormalizeHeader(alias)
			for i, h := range normalized {
				if h == want {
					out[field] = i
					break
				}
			}
			if _, ok := out[field]; ok {
				break
			}
		}
	}
	return out
}

// ReadSource loads one source file (.xlsx/.xlsm via excelize, .csv via
// encoding/csv) into engine rows. A file whose header cannot supply the
// invoice and item columns is a run-level failure, not a row issue.
func ReadSource(path string, src recon.Source, mapping ColumnMapping) ([]*recon.Row, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buildRows(rows, path, src, mapping)
}

// ReadSourceBytes is ReadSource for in-memory content, used when files
// come from object storage rather than disk. name carries the original
// filename so the format can be picked by extension.
func ReadSourceBytes(data []byte, name string, src recon.Source, mapping ColumnMapping) ([]*recon.Row, error) {
	rows, err := readRowsBytes(data, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return buildRows(rows, name, src, mapping)
}

func buildRows(rows [][]string, path string, src recon.Source, mapping ColumnMapping) ([]*recon.Row, error) {
	if mapping == nil {
		mapping = AliasesFor(src)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: file has no rows", path)
	}

	headerIdx := DetectHeaderRow(rows)
	cols := ResolveColumns(rows[headerIdx], mapping)
	if _, ok := cols[recon.FieldInvoiceNumber]; !ok {
		return nil, fmt.Errorf("read %s: no invoice number column found", path)
	}
	if _, ok := cols[recon.FieldItemNumber]; !ok {
		return nil, fmt.Errorf("read %s: no item number column found", path)
	}

	var out []*recon.Row
	for i := headerIdx + 1; i < len(rows); i++ {
		raw := rows[i]
		if emptyRow(raw) {
			continue
		}
		r := buildRow(raw, cols, src)
		r.Line = i + 1
		out = append(out, r)
	}
	return out, nil
}

func readRows(path string) ([][]string, error) {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rd := csv.NewReader(f)
		rd.FieldsPerRecord = -1
		return rd.ReadAll()
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sheetRows(f)
}

func readRowsBytes(data []byte, name string) ([][]string, error) {
	if strings.ToLower(filepath.Ext(name)) == ".csv" {
		rd := csv.NewReader(bytes.NewReader(data))
		rd.FieldsPerRecord = -1
		return rd.ReadAll()
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sheetRows(f)
}

func sheetRows(f *excelize.File) ([][]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func buildRow(cells []string, cols map[string]int, src recon.Source) *recon.Row {
	get := func(field string) string {
		idx, ok := cols[field]
		if !ok || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	r := &recon.Row{Source: src}
	r.Key = recon.NormalizeKey(
		get(recon.FieldInvoiceNumber),
		get(recon.FieldItemNumber),
		get(recon.FieldCaseNumber),
	)

	r.Qty = parseDecimal(get(recon.FieldQty))
	r.UnitPrice = parseDecimal(get(recon.FieldUnitPrice))
	r.CorrectedUnitPrice = parseDecimal(get(recon.FieldCorrectedUnitPrice))
	r.ExtendedPrice = parseDecimal(get(recon.FieldExtendedPrice))
	r.ExtendedCorrect = parseDecimal(get(recon.FieldExtendedCorrect))
	r.CreditTotal = parseDecimal(get(recon.FieldCreditTotal))
	r.MarginPct = parseDecimal(get(recon.FieldMarginPct))

	r.Category = get(recon.FieldCategory)
	r.Description = get(recon.FieldDescription)
	r.RtnCrNo = get(recon.FieldRtnCrNo)
	r.CustomerNo = get(recon.FieldCustomerNo)
	r.RequestedBy = get(recon.FieldRequestedBy)
	r.Reason = get(recon.FieldReason)

	if ts := parseTime(get(recon.FieldTimestamp)); ts != nil {
		r.SourceTimestamp = ts
	}
	return r
}

// parseDecimal tolerates currency formatting ("$1,234.50", "(12.00)"
// for negatives) and returns nil for blanks and junk.
func parseDecimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	if neg {
		d = d.Neg()
	}
	return &d
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006",
	"01-02-06",
	"Jan 2, 2006",
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
