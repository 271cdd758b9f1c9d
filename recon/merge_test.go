package recon_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
)

func TestMergeFollowsFieldPrecedence(t *testing.T) {
	cfg := recon.DefaultConfig()

	credit := row(recon.SourceCredit, "INV-1", "A1", "credit desc")
	credit.Qty = dec("3")
	credit.UnitPrice = dec("9.99")
	credit.RequestedBy = "jsmith"

	master := row(recon.SourceMaster, "INV-1", "A1", "master desc")
	master.Qty = dec("4")
	master.UnitPrice = dec("10.00")

	m := recon.Merge(group(credit, master), cfg)

	// Pricing follows the billing master.
	if !m.Values.UnitPrice.Equal(*dec("10.00")) {
		t.Fatalf("unit price should come from master, got %s", m.Values.UnitPrice)
	}
	// Transactional quantities follow the credit file.
	if !m.Values.Qty.Equal(*dec("3")) {
		t.Fatalf("qty should come from credit, got %s", m.Values.Qty)
	}
	if m.Values.Description != "credit desc" {
		t.Fatalf("description precedence starts at credit, got %q", m.Values.Description)
	}
	if m.Values.RequestedBy != "jsmith" {
		t.Fatalf("requested_by lost: %q", m.Values.RequestedBy)
	}
}

func TestMergeFallsThroughMissingSources(t *testing.T) {
	cfg := recon.DefaultConfig()

	sop := row(recon.SourceSOP, "INV-1", "A1", "")
	sop.UnitPrice = dec("12.50")

	m := recon.Merge(group(sop), cfg)
	// Master absent: next source in precedence contributes.
	if !m.Values.UnitPrice.Equal(*dec("12.50")) {
		t.Fatalf("expected SOP price, got %s", m.Values.UnitPrice)
	}
	if len(m.Present) != 1 || m.Present[0] != recon.SourceSOP {
		t.Fatalf("completeness wrong: %v", m.Present)
	}
	if m.CompletenessTag() != "sop" {
		t.Fatalf("tag: %q", m.CompletenessTag())
	}
}

func TestMergeDerivesExtendedCorrectPrice(t *testing.T) {
	cfg := recon.DefaultConfig()

	credit := row(recon.SourceCredit, "INV-1", "A1", "")
	credit.Qty = dec("5")
	credit.UnitPrice = dec("10.00")
	credit.CorrectedUnitPrice = dec("8.50")

	m := recon.Merge(group(credit), cfg)
	if m.Values.ExtendedCorrect == nil {
		t.Fatal("extended correct price not derived")
	}
	// (10.00 - 8.50) * 5 = 7.50
	if !m.Values.ExtendedCorrect.Equal(*dec("7.50")) {
		t.Fatalf("expected 7.50, got %s", m.Values.ExtendedCorrect)
	}

	// A value carried by a source is never overwritten.
	credit.ExtendedCorrect = dec("9.99")
	m = recon.Merge(group(credit), cfg)
	if !m.Values.ExtendedCorrect.Equal(*dec("9.99")) {
		t.Fatalf("source value overwritten: %s", m.Values.ExtendedCorrect)
	}
}

func TestMergeFlagsBlockingGroups(t *testing.T) {
	cfg := recon.DefaultConfig()

	credit := row(recon.SourceCredit, "INV-1", "A1", "")
	credit.UnitPrice = dec("10.00")
	master := row(recon.SourceMaster, "INV-1", "A1", "")
	master.UnitPrice = dec("11.00")

	m := recon.Merge(group(credit, master), cfg)
	if m.Clean {
		t.Fatal("conflicting prices cannot be clean")
	}
	if !m.Blocking {
		t.Fatal("authoritative conflict must flag blocking")
	}
}

func TestMergeCarriesEarliestTimestampAndBackground(t *testing.T) {
	cfg := recon.DefaultConfig()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	credit := row(recon.SourceCredit, "INV-1", "A1", "")
	credit.SourceTimestamp = &ts
	credit.Background = "customer reported short shipment"
	master := row(recon.SourceMaster, "INV-1", "A1", "")

	m := recon.Merge(group(credit, master), cfg)
	if m.Values.SourceTimestamp == nil || !m.Values.SourceTimestamp.Equal(ts) {
		t.Fatalf("timestamp lost: %v", m.Values.SourceTimestamp)
	}
	if m.Values.Background != "customer reported short shipment" {
		t.Fatalf("background lost: %q", m.Values.Background)
	}
}
