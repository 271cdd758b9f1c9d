package workbook_test

import (
	"bytes"
	"testing"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
	"bitbucket.org/mmdatafocus/creditrecon_backend/workbook"
	"github.com/xuri/excelize/v2"
)

func sampleResult(t *testing.T) *recon.Result {
	t.Helper()
	cfg := recon.DefaultConfig()

	csv := "Invoice Number,Item Number,QTY,Unit Price,Description\nINV-1,A1,2,10.00,Widget\n"
	credit, err := workbook.ReadSourceBytes([]byte(csv), "credit.csv", recon.SourceCredit, nil)
	if err != nil {
		t.Fatalf("read credit: %v", err)
	}

	res, err := recon.Reconcile(recon.Input{
		Credit:   credit,
		Snapshot: recon.NewSnapshot(nil),
	}, cfg, recon.LevenshteinScorer{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	return res
}

func TestRunWorkbookRoundTrip(t *testing.T) {
	data, err := workbook.RunWorkbookBytes(sampleResult(t))
	if err != nil {
		t.Fatalf("RunWorkbookBytes: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("artifact does not open: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{"Merged", "Discrepancies", "Issues", "Sync Audit"} {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			t.Fatalf("sheet %q missing (idx=%d err=%v)", sheet, idx, err)
		}
	}

	rows, err := f.GetRows("Merged")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one merged row, got %d", len(rows))
	}
	if rows[1][0] != "INV-1" || rows[1][1] != "A1" {
		t.Fatalf("merged key cells wrong: %v", rows[1][:2])
	}
}

func TestWriteMergedCSV(t *testing.T) {
	res := sampleResult(t)
	path := t.TempDir() + "/merged.csv"
	if err := workbook.WriteMergedCSV(path, res.Merged); err != nil {
		t.Fatalf("WriteMergedCSV: %v", err)
	}

	credit, err := workbook.ReadSource(path, recon.SourceCredit, nil)
	if err != nil {
		t.Fatalf("re-read merged csv: %v", err)
	}
	if len(credit) != 1 {
		t.Fatalf("rows: %d", len(credit))
	}
	if credit[0].Key.Invoice != "INV-1" {
		t.Fatalf("key round trip: %+v", credit[0].Key)
	}
}
