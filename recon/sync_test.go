package recon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
)

func reconcile(t *testing.T, in recon.Input, cfg recon.Config) *recon.Result {
	t.Helper()
	res, err := recon.Reconcile(in, cfg, recon.LevenshteinScorer{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	return res
}

func singlePlan(t *testing.T, p *recon.SyncPlan) *recon.EntryPlan {
	t.Helper()
	if len(p.Entries) != 1 {
		t.Fatalf("expected 1 plan entry, got %d", len(p.Entries))
	}
	return &p.Entries[0]
}

func TestNewEntryIsProposedAndCommitted(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := row(recon.SourceCredit, "INV-1", "A1", "widget")
	credit.Qty = dec("2")
	credit.UnitPrice = dec("10.00")

	store := recon.NewMemStore(nil)
	res := reconcile(t, recon.Input{
		Credit:   []*recon.Row{credit},
		Snapshot: store.Snapshot(),
	}, cfg)

	e := singlePlan(t, res.Plan)
	if !e.New {
		t.Fatal("entry absent from snapshot must be New")
	}
	if e.State != recon.EntryStateProposed {
		t.Fatalf("expected proposed, got %s", e.State)
	}

	applied := recon.Apply(context.Background(), store, res.Plan, 7)
	if applied.Committed != 1 {
		t.Fatalf("expected 1 commit, got %+v", applied)
	}
	got, err := store.Get(context.Background(), credit.Key)
	if err != nil || got == nil {
		t.Fatalf("committed entry missing: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("first commit must be version 1, got %d", got.Version)
	}
	if got.LastRunID != 7 {
		t.Fatalf("run provenance lost: %d", got.LastRunID)
	}
}

func TestRerunWithSameInputIsUnchanged(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := row(recon.SourceCredit, "INV-1", "A1", "widget")
	credit.Qty = dec("2")
	credit.UnitPrice = dec("10.00")

	store := recon.NewMemStore(nil)
	first := reconcile(t, recon.Input{Credit: []*recon.Row{credit}, Snapshot: store.Snapshot()}, cfg)
	recon.Apply(context.Background(), store, first.Plan, 1)

	second := reconcile(t, recon.Input{Credit: []*recon.Row{credit}, Snapshot: store.Snapshot()}, cfg)
	e := singlePlan(t, second.Plan)
	if e.State != recon.EntryStateUnchanged {
		t.Fatalf("identical rerun must be unchanged, got %s (skip=%s)", e.State, e.SkipReason)
	}

	applied := recon.Apply(context.Background(), store, second.Plan, 2)
	if applied.Committed != 0 || applied.Unchanged != 1 {
		t.Fatalf("no-op rerun wrote something: %+v", applied)
	}
	got, _ := store.Get(context.Background(), credit.Key)
	if got.Version != 1 || got.LastRunID != 1 {
		t.Fatalf("unchanged entry mutated: version=%d run=%d", got.Version, got.LastRunID)
	}
}

func TestChangedValueBumpsVersion(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := row(recon.SourceCredit, "INV-1", "A1", "widget")
	credit.UnitPrice = dec("10.00")

	store := recon.NewMemStore(nil)
	first := reconcile(t, recon.Input{Credit: []*recon.Row{credit}, Snapshot: store.Snapshot()}, cfg)
	recon.Apply(context.Background(), store, first.Plan, 1)

	credit.UnitPrice = dec("12.00")
	second := reconcile(t, recon.Input{Credit: []*recon.Row{credit}, Snapshot: store.Snapshot()}, cfg)
	e := singlePlan(t, second.Plan)
	if e.State != recon.EntryStateProposed {
		t.Fatalf("expected proposed, got %s (skip=%s)", e.State, e.SkipReason)
	}
	recon.Apply(context.Background(), store, second.Plan, 2)

	got, _ := store.Get(context.Background(), credit.Key)
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}
	if !got.UnitPrice.Equal(*dec("12.00")) {
		t.Fatalf("new value not committed: %s", got.UnitPrice)
	}
}

func TestStaleSourceNeverRegressesCommittedState(t *testing.T) {
	cfg := recon.DefaultConfig()

	newer := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	store := recon.NewMemStore([]recon.MasterEntry{{
		Key:         recon.NormalizeKey("INV-1", "A1", ""),
		UnitPrice:   dec("12.00"),
		Version:     3,
		VersionTime: newer,
	}})

	credit := row(recon.SourceCredit, "INV-1", "A1", "widget")
	credit.UnitPrice = dec("12.00")
	credit.Qty = dec("9")
	credit.SourceTimestamp = &older

	res := reconcile(t, recon.Input{Credit: []*recon.Row{credit}, Snapshot: store.Snapshot()}, cfg)
	e := singlePlan(t, res.Plan)
	if e.State != recon.EntryStateSkipped || e.SkipReason != recon.SkipStaleSource {
		t.Fatalf("expected stale-source skip, got %s (%s)", e.State, e.SkipReason)
	}

	recon.Apply(context.Background(), store, res.Plan, 9)
	got, _ := store.Get(context.Background(), credit.Key)
	if got.Version != 3 {
		t.Fatalf("stale run touched the master: version=%d", got.Version)
	}
}

func TestBlockingDiscrepancySkipsEntry(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := row(recon.SourceCredit, "INV-1", "A1", "widget")
	credit.UnitPrice = dec("10.00")
	master := row(recon.SourceMaster, "INV-1", "A1", "widget")
	master.UnitPrice = dec("11.00")

	store := recon.NewMemStore(nil)
	res := reconcile(t, recon.Input{
		Credit:   []*recon.Row{credit},
		Master:   []*recon.Row{master},
		Snapshot: store.Snapshot(),
	}, cfg)
	e := singlePlan(t, res.Plan)
	if e.State != recon.EntryStateSkipped || e.SkipReason != recon.SkipBlockingDiscrepancy {
		t.Fatalf("expected blocking-discrepancy skip, got %s (%s)", e.State, e.SkipReason)
	}
}

func TestMissingRequiredFieldSkipsEntry(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := row(recon.SourceCredit, "INV-1", "A1", "widget")
	// no unit price anywhere

	res := reconcile(t, recon.Input{Credit: []*recon.Row{credit}, Snapshot: recon.NewSnapshot(nil)}, cfg)
	e := singlePlan(t, res.Plan)
	if e.State != recon.EntryStateSkipped || e.SkipReason != recon.SkipMissingRequiredField {
		t.Fatalf("expected missing-required skip, got %s (%s)", e.State, e.SkipReason)
	}
}

func TestFuzzyMatchWaitsForConfirmation(t *testing.T) {
	cfg := recon.DefaultConfig()
	credit := row(recon.SourceCredit, "INV-100", "A1", "Industrial Widget 10mm")
	credit.UnitPrice = dec("10.00")
	master := row(recon.SourceMaster, "INV-0100", "A-1", "Industrial Widget 10 mm")
	master.UnitPrice = dec("10.00")

	in := recon.Input{
		Credit:   []*recon.Row{credit},
		Master:   []*recon.Row{master},
		Snapshot: recon.NewSnapshot(nil),
	}

	res := reconcile(t, in, cfg)
	e := singlePlan(t, res.Plan)
	if !e.Fuzzy {
		t.Fatal("expected fuzzy entry")
	}
	if e.State != recon.EntryStateSkipped || e.SkipReason != recon.SkipPendingConfirmation {
		t.Fatalf("unconfirmed fuzzy match must wait, got %s (%s)", e.State, e.SkipReason)
	}

	in.Confirmed = map[recon.Key]bool{credit.Key: true}
	res = reconcile(t, in, cfg)
	e = singlePlan(t, res.Plan)
	if e.State != recon.EntryStateProposed {
		t.Fatalf("confirmed fuzzy match should propose, got %s (%s)", e.State, e.SkipReason)
	}
	if e.Confidence >= 1.0 {
		t.Fatalf("fuzzy confidence must stay below 1, got %.3f", e.Confidence)
	}
}

func TestLowConfidenceSkip(t *testing.T) {
	cfg := recon.DefaultConfig()
	cfg.CommitThreshold = 0.99

	credit := row(recon.SourceCredit, "INV-100", "A1", "Industrial Widget 10mm")
	credit.UnitPrice = dec("10.00")
	master := row(recon.SourceMaster, "INV-0100", "A-1", "Industrial Widget 10 mm")
	master.UnitPrice = dec("10.00")

	res := reconcile(t, recon.Input{
		Credit:    []*recon.Row{credit},
		Master:    []*recon.Row{master},
		Snapshot:  recon.NewSnapshot(nil),
		Confirmed: map[recon.Key]bool{credit.Key: true},
	}, cfg)
	e := singlePlan(t, res.Plan)
	if e.State != recon.EntryStateSkipped || e.SkipReason != recon.SkipLowConfidence {
		t.Fatalf("expected low-confidence skip, got %s (%s)", e.State, e.SkipReason)
	}
}

func TestMasterOnlyRowsAreNotCandidates(t *testing.T) {
	cfg := recon.DefaultConfig()
	master := row(recon.SourceMaster, "INV-1", "A1", "already billed")
	master.UnitPrice = dec("10.00")

	res := reconcile(t, recon.Input{Master: []*recon.Row{master}, Snapshot: recon.NewSnapshot(nil)}, cfg)
	if len(res.Plan.Entries) != 0 {
		t.Fatalf("master-only rows must not enter the plan, got %d entries", len(res.Plan.Entries))
	}
}

type failingStore struct{ inner *recon.MemStore }

func (s failingStore) Get(ctx context.Context, key recon.Key) (*recon.MasterEntry, error) {
	return s.inner.Get(ctx, key)
}

func (s failingStore) Put(ctx context.Context, entry recon.MasterEntry) error {
	return errors.New("write refused")
}

func TestApplyContinuesPastStoreErrors(t *testing.T) {
	cfg := recon.DefaultConfig()

	a := row(recon.SourceCredit, "INV-1", "A1", "widget")
	a.UnitPrice = dec("10.00")
	b := row(recon.SourceCredit, "INV-2", "B2", "gadget")
	b.UnitPrice = dec("5.00")

	res := reconcile(t, recon.Input{Credit: []*recon.Row{a, b}, Snapshot: recon.NewSnapshot(nil)}, cfg)
	if len(res.Plan.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Plan.Entries))
	}

	applied := recon.Apply(context.Background(), failingStore{recon.NewMemStore(nil)}, res.Plan, 1)
	if applied.Failed != 2 || applied.Committed != 0 {
		t.Fatalf("expected both writes to fail independently, got %+v", applied)
	}
	for _, e := range res.Plan.Entries {
		if e.State != recon.EntryStateSkipped || e.SkipReason != recon.SkipStoreError {
			t.Fatalf("failed entry not marked: %s (%s)", e.State, e.SkipReason)
		}
	}
}

func TestSummarizeCounts(t *testing.T) {
	cfg := recon.DefaultConfig()

	clean := row(recon.SourceCredit, "INV-1", "A1", "widget")
	clean.UnitPrice = dec("10.00")
	conflicted := row(recon.SourceCredit, "INV-2", "B2", "gadget")
	conflicted.UnitPrice = dec("5.00")
	conflictedMaster := row(recon.SourceMaster, "INV-2", "B2", "gadget")
	conflictedMaster.UnitPrice = dec("6.00")

	res := reconcile(t, recon.Input{
		Credit:   []*recon.Row{clean, conflicted},
		Master:   []*recon.Row{conflictedMaster},
		Snapshot: recon.NewSnapshot(nil),
	}, cfg)

	s := res.Summarize()
	if s.Groups != 2 {
		t.Fatalf("groups: %d", s.Groups)
	}
	if s.Clean != 1 || s.Discrepant != 1 {
		t.Fatalf("clean/discrepant: %d/%d", s.Clean, s.Discrepant)
	}
	if s.Proposed != 1 || s.Skipped != 1 {
		t.Fatalf("proposed/skipped: %d/%d", s.Proposed, s.Skipped)
	}
}
