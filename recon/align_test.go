package recon_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func row(src recon.Source, invoice, item, desc string) *recon.Row {
	return &recon.Row{
		Source:      src,
		Key:         recon.NormalizeKey(invoice, item, ""),
		Description: desc,
	}
}

func TestAlignGroupsByExactKey(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := []*recon.Row{row(recon.SourceCredit, "INV-100", "A1", "Widget")}
	sop := []*recon.Row{row(recon.SourceSOP, "inv-100", "A1", "Widget")}
	master := []*recon.Row{row(recon.SourceMaster, "INV-100", "A1", "Widget")}

	res := recon.Align(credit, sop, master, cfg, recon.LevenshteinScorer{})
	if len(res.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(res.Groups))
	}
	g := res.Groups[0]
	if len(g.Present()) != 3 {
		t.Fatalf("expected all three sources present, got %v", g.Present())
	}
	if g.Fuzzy {
		t.Fatal("exact match must not be flagged fuzzy")
	}
	if len(res.Issues) != 0 {
		t.Fatalf("unexpected issues: %+v", res.Issues)
	}
}

func TestAlignRejectsMissingKeyRows(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := []*recon.Row{
		row(recon.SourceCredit, "INV-100", "", "no item"),
		row(recon.SourceCredit, "", "A1", "no invoice"),
		row(recon.SourceCredit, "INV-200", "B2", "ok"),
	}

	res := recon.Align(credit, nil, nil, cfg, nil)
	if len(res.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(res.Groups))
	}
	if len(res.Issues) != 2 {
		t.Fatalf("expected 2 missing-key issues, got %d", len(res.Issues))
	}
	for _, is := range res.Issues {
		if is.Code != recon.IssueMissingKey {
			t.Fatalf("expected missing_key, got %s", is.Code)
		}
		if is.Severity != recon.SeverityBlocking {
			t.Fatalf("missing key must be blocking, got %s", is.Severity)
		}
	}
}

func TestAlignDuplicateKeyFirstWins(t *testing.T) {
	cfg := recon.DefaultConfig()
	first := row(recon.SourceCredit, "INV-100", "A1", "first")
	first.Line = 2
	second := row(recon.SourceCredit, "INV-100", "A1", "second")
	second.Line = 3

	res := recon.Align([]*recon.Row{first, second}, nil, nil, cfg, nil)
	if len(res.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(res.Groups))
	}
	if got := res.Groups[0].Rows[recon.SourceCredit].Description; got != "first" {
		t.Fatalf("first occurrence must win, got %q", got)
	}
	if len(res.Issues) != 1 || res.Issues[0].Code != recon.IssueDuplicateKey {
		t.Fatalf("expected one duplicate_key issue, got %+v", res.Issues)
	}
	if res.Issues[0].Line != 3 {
		t.Fatalf("duplicate issue should name row 3, got %d", res.Issues[0].Line)
	}
}

func TestAlignFuzzyAttachesUniqueCandidate(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := []*recon.Row{row(recon.SourceCredit, "INV-100", "A1", "Industrial Widget 10mm")}
	// Master row keyed differently but with a near-identical description.
	master := []*recon.Row{row(recon.SourceMaster, "INV-0100", "A-1", "Industrial Widget 10 mm")}

	res := recon.Align(credit, nil, master, cfg, recon.LevenshteinScorer{})
	if len(res.Groups) != 1 {
		t.Fatalf("candidate group should be absorbed, got %d groups", len(res.Groups))
	}
	g := res.Groups[0]
	if !g.Fuzzy {
		t.Fatal("expected fuzzy attach")
	}
	if g.FuzzyScore < cfg.FuzzyThreshold {
		t.Fatalf("score %.3f below threshold %.3f", g.FuzzyScore, cfg.FuzzyThreshold)
	}
	if g.Rows[recon.SourceMaster] == nil {
		t.Fatal("master row not attached")
	}
	if g.MasterKey.Invoice != "INV-0100" {
		t.Fatalf("MasterKey should carry the master's own key, got %v", g.MasterKey)
	}
	// The requesting side's key stays authoritative for the group.
	if g.Key.Invoice != "INV-100" {
		t.Fatalf("group key must stay the requester's key, got %v", g.Key)
	}
}

func TestAlignFuzzyTieIsAmbiguous(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := []*recon.Row{row(recon.SourceCredit, "INV-100", "A1", "Steel Bracket")}
	master := []*recon.Row{
		row(recon.SourceMaster, "INV-201", "B1", "Steel Brackets"),
		row(recon.SourceMaster, "INV-202", "B2", "Steel Brackets"),
	}

	res := recon.Align(credit, nil, master, cfg, recon.LevenshteinScorer{})
	var g *recon.MatchedGroup
	for _, cand := range res.Groups {
		if cand.Key.Invoice == "INV-100" {
			g = cand
		}
	}
	if g == nil {
		t.Fatal("requesting group missing")
	}
	if !g.Ambiguous {
		t.Fatal("tied top score must mark the group ambiguous")
	}
	if g.Rows[recon.SourceMaster] != nil {
		t.Fatal("no master row may be attached on a tie")
	}
	found := false
	for _, is := range res.Issues {
		if is.Code == recon.IssueAmbiguousMatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ambiguous_match issue, got %+v", res.Issues)
	}
}

func TestAlignFuzzyBelowThresholdLeavesGroupsApart(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := []*recon.Row{row(recon.SourceCredit, "INV-100", "A1", "Copper Pipe")}
	master := []*recon.Row{row(recon.SourceMaster, "INV-900", "Z9", "Hydraulic Pump Assembly")}

	res := recon.Align(credit, nil, master, cfg, recon.LevenshteinScorer{})
	if len(res.Groups) != 2 {
		t.Fatalf("expected 2 separate groups, got %d", len(res.Groups))
	}
	for _, g := range res.Groups {
		if g.Fuzzy {
			t.Fatal("no attach expected below threshold")
		}
	}
}
