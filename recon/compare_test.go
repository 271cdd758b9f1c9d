package recon_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
)

func group(rows ...*recon.Row) *recon.MatchedGroup {
	g := &recon.MatchedGroup{Key: rows[0].Key, Rows: map[recon.Source]*recon.Row{}}
	for _, r := range rows {
		g.Rows[r.Source] = r
	}
	return g
}

func findDiscrepancy(ds []recon.Discrepancy, field string) *recon.Discrepancy {
	for i := range ds {
		if ds[i].Field == field {
			return &ds[i]
		}
	}
	return nil
}

func TestCurrencyWithinToleranceIsClean(t *testing.T) {
	cfg := recon.DefaultConfig()
	a := row(recon.SourceCredit, "INV-1", "A1", "")
	a.UnitPrice = dec("10.00")
	b := row(recon.SourceMaster, "INV-1", "A1", "")
	b.UnitPrice = dec("10.01")

	ds := recon.DetectDiscrepancies(group(a, b), cfg)
	if d := findDiscrepancy(ds, recon.FieldUnitPrice); d != nil {
		t.Fatalf("0.01 spread is within tolerance, got %+v", d)
	}
}

func TestCurrencyBeyondToleranceIsBlocking(t *testing.T) {
	cfg := recon.DefaultConfig()
	a := row(recon.SourceCredit, "INV-1", "A1", "")
	a.UnitPrice = dec("10.00")
	b := row(recon.SourceMaster, "INV-1", "A1", "")
	b.UnitPrice = dec("10.05")

	ds := recon.DetectDiscrepancies(group(a, b), cfg)
	d := findDiscrepancy(ds, recon.FieldUnitPrice)
	if d == nil {
		t.Fatal("expected unit_price discrepancy")
	}
	if d.Severity != recon.SeverityBlocking {
		t.Fatalf("unit price is authoritative, expected blocking, got %s", d.Severity)
	}
	if d.Values[recon.SourceCredit] != "10" && d.Values[recon.SourceCredit] != "10.00" {
		t.Fatalf("unexpected rendered value %q", d.Values[recon.SourceCredit])
	}
}

func TestPercentToleranceIsRelative(t *testing.T) {
	cfg := recon.DefaultConfig()

	a := row(recon.SourceSOP, "INV-1", "A1", "")
	a.MarginPct = dec("25.000")
	b := row(recon.SourceMaster, "INV-1", "A1", "")
	b.MarginPct = dec("25.020")

	// spread/base = 0.02/25.02 < 0.001
	ds := recon.DetectDiscrepancies(group(a, b), cfg)
	if d := findDiscrepancy(ds, recon.FieldMarginPct); d != nil {
		t.Fatalf("relative diff under tolerance, got %+v", d)
	}

	b.MarginPct = dec("26.0")
	ds = recon.DetectDiscrepancies(group(a, b), cfg)
	if findDiscrepancy(ds, recon.FieldMarginPct) == nil {
		t.Fatal("expected margin discrepancy beyond relative tolerance")
	}
}

func TestQuantityRequiresExactAgreement(t *testing.T) {
	cfg := recon.DefaultConfig()
	a := row(recon.SourceCredit, "INV-1", "A1", "")
	a.Qty = dec("3")
	b := row(recon.SourceSOP, "INV-1", "A1", "")
	b.Qty = dec("3.5")

	ds := recon.DetectDiscrepancies(group(a, b), cfg)
	d := findDiscrepancy(ds, recon.FieldQty)
	if d == nil {
		t.Fatal("expected qty discrepancy")
	}
	if d.Severity != recon.SeverityInfo {
		t.Fatalf("qty is not authoritative, expected informational, got %s", d.Severity)
	}
}

func TestTextComparesOnNormalizedValues(t *testing.T) {
	cfg := recon.DefaultConfig()
	a := row(recon.SourceCredit, "INV-1", "A1", "  Industrial   WIDGET ")
	b := row(recon.SourceMaster, "INV-1", "A1", "industrial widget")

	ds := recon.DetectDiscrepancies(group(a, b), cfg)
	if d := findDiscrepancy(ds, recon.FieldDescription); d != nil {
		t.Fatalf("case and whitespace must not trigger discrepancies, got %+v", d)
	}

	a.Category = "Pricing Error"
	b.Category = "Damaged Goods"
	ds = recon.DetectDiscrepancies(group(a, b), cfg)
	d := findDiscrepancy(ds, recon.FieldCategory)
	if d == nil {
		t.Fatal("expected category discrepancy")
	}
	if d.Severity != recon.SeverityBlocking {
		t.Fatalf("category is authoritative, expected blocking, got %s", d.Severity)
	}
}

func TestMissingFieldIsNotADiscrepancy(t *testing.T) {
	cfg := recon.DefaultConfig()
	a := row(recon.SourceCredit, "INV-1", "A1", "")
	a.UnitPrice = dec("10.00")
	b := row(recon.SourceSOP, "INV-1", "A1", "")
	// b has no unit price at all.

	ds := recon.DetectDiscrepancies(group(a, b), cfg)
	if len(ds) != 0 {
		t.Fatalf("absence must not count as conflict, got %+v", ds)
	}
}

func TestSingleSourceGroupHasNoDiscrepancies(t *testing.T) {
	cfg := recon.DefaultConfig()
	a := row(recon.SourceCredit, "INV-1", "A1", "solo")
	a.UnitPrice = dec("10")
	if ds := recon.DetectDiscrepancies(group(a), cfg); ds != nil {
		t.Fatalf("single-member group compared, got %+v", ds)
	}
}
