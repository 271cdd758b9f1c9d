package workbook_test

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
	"bitbucket.org/mmdatafocus/creditrecon_backend/workbook"
)

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"RTN/CR No.":           "rtn_cr_no",
		"  Unit Price ":        "unit_price",
		"Corrected Unit Price": "corrected_unit_price",
		"QTY":                  "qty",
		"Margin %":             "margin",
	}
	for in, want := range cases {
		if got := workbook.NormalizeHeader(in); got != want {
			t.Fatalf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectHeaderRowSkipsBanner(t *testing.T) {
	rows := [][]string{
		{"Credit Requests Q1", "", "", "", ""},
		{"", "", "", "", ""},
		{"Invoice Number", "Item Number", "QTY", "Unit Price", "Description"},
		{"INV-1", "A1", "2", "10.00", "Widget"},
	}
	if got := workbook.DetectHeaderRow(rows); got != 2 {
		t.Fatalf("expected header at row 2, got %d", got)
	}
}

func TestResolveColumnsUsesAliases(t *testing.T) {
	header := []string{"Doc No", "ITEMNMBR", "Quantity", "Price", "RTN/CR No."}
	cols := workbook.ResolveColumns(header, workbook.CreditAliases())
	want := map[string]int{
		recon.FieldInvoiceNumber: 0,
		recon.FieldItemNumber:    1,
		recon.FieldQty:           2,
		recon.FieldUnitPrice:     3,
		recon.FieldRtnCrNo:       4,
	}
	for field, idx := range want {
		if got, ok := cols[field]; !ok || got != idx {
			t.Fatalf("%s resolved to %d (present=%v), want %d", field, got, ok, idx)
		}
	}
	if _, ok := cols[recon.FieldDescription]; ok {
		t.Fatal("description has no matching column")
	}
}

const creditCSV = `Weekly Credit Export,,,,,,
Invoice Number,Item Number,QTY,Unit Price,Corrected Unit Price,Description,Date
INV-100,1001.0,2,"$1,234.50",1200.00,Industrial Widget,2026-03-10
inv-101,A-2,1,(12.00),,Gadget,
,,,,,,
INV-102,,3,5.00,,No item number,
`

func TestReadSourceBytesCSV(t *testing.T) {
	rows, err := workbook.ReadSourceBytes([]byte(creditCSV), "credit.csv", recon.SourceCredit, nil)
	if err != nil {
		t.Fatalf("ReadSourceBytes: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 data rows, got %d", len(rows))
	}

	r := rows[0]
	if r.Key.Invoice != "INV-100" || r.Key.Item != "1001" {
		t.Fatalf("key not normalized: %+v", r.Key)
	}
	if r.UnitPrice == nil || r.UnitPrice.String() != "1234.5" {
		t.Fatalf("currency formatting not parsed: %v", r.UnitPrice)
	}
	if r.CorrectedUnitPrice == nil || r.CorrectedUnitPrice.String() != "1200" {
		t.Fatalf("corrected price: %v", r.CorrectedUnitPrice)
	}
	if r.SourceTimestamp == nil {
		t.Fatal("timestamp not parsed")
	}
	if r.Line != 3 {
		t.Fatalf("line tracking off: %d", r.Line)
	}

	r = rows[1]
	if r.Key.Invoice != "INV-101" {
		t.Fatalf("invoice not uppercased: %q", r.Key.Invoice)
	}
	if r.UnitPrice == nil || r.UnitPrice.String() != "-12" {
		t.Fatalf("parenthesized negative: %v", r.UnitPrice)
	}
	if r.CorrectedUnitPrice != nil {
		t.Fatal("blank cell must stay nil, not zero")
	}

	// The keyless row is carried through; alignment reports it.
	if rows[2].Key.Invoice != "INV-102" || !rows[2].Key.IsZero() {
		t.Fatalf("row without item should survive with a zero key: %+v", rows[2].Key)
	}
}

func TestReadSourceBytesRequiresKeyColumns(t *testing.T) {
	csv := "Description,QTY\nWidget,2\n"
	_, err := workbook.ReadSourceBytes([]byte(csv), "bad.csv", recon.SourceCredit, nil)
	if err == nil {
		t.Fatal("missing invoice column must fail the read")
	}
	if !strings.Contains(err.Error(), "invoice") {
		t.Fatalf("error should name the missing column: %v", err)
	}
}

func TestSOPAliasesResolveSOPNumber(t *testing.T) {
	csv := "SOP Number,ITEMNMBR,Qty on Invoice,Unit Price,Margin\nINV-1,A1,2,10.00,25.5\n"
	rows, err := workbook.ReadSourceBytes([]byte(csv), "sop.csv", recon.SourceSOP, nil)
	if err != nil {
		t.Fatalf("ReadSourceBytes: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: %d", len(rows))
	}
	r := rows[0]
	if r.Key.Invoice != "INV-1" || r.Key.Item != "A1" {
		t.Fatalf("key: %+v", r.Key)
	}
	if r.Qty == nil || r.Qty.String() != "2" {
		t.Fatalf("qty: %v", r.Qty)
	}
	if r.MarginPct == nil || r.MarginPct.String() != "25.5" {
		t.Fatalf("margin: %v", r.MarginPct)
	}
}
