package recon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MasterEntry is the store-agnostic view of one authoritative billing
// master record. Version is monotonic per key; VersionTime is the
// source timestamp the committed state was derived from and drives the
// stale-source check.
type MasterEntry struct {
	Key Key

	Qty                *decimal.Decimal
	UnitPrice          *decimal.Decimal
	CorrectedUnitPrice *decimal.Decimal
	ExtendedPrice      *decimal.Decimal
	ExtendedCorrect    *decimal.Decimal
	CreditTotal        *decimal.Decimal
	MarginPct          *decimal.Decimal

	Category    string
	Description string
	RtnCrNo     string
	CustomerNo  string

	Version     int64
	VersionTime time.Time
	LastRunID   uint
}

// MasterStore is the key-addressed record store the sync step commits
// through. The engine has no dependency on the backing store's
// replication or notification mechanics.
type MasterStore interface {
	Get(ctx context.Context, key Key) (*MasterEntry, error)
	Put(ctx context.Context, entry MasterEntry) error
}

// Snapshot is the explicit "current billing master state" a sync run
// plans against. Runs never read ambient mutable state, so planning is
// reproducible in isolation.
type Snapshot struct {
	entries map[string]MasterEntry
}

func NewSnapshot(entries []MasterEntry) *Snapshot {
	s := &Snapshot{entries: make(map[string]MasterEntry, len(entries))}
	for _, e := range entries {
		s.entries[groupKey(e.Key)] = e
	}
	return s
}

func (s *Snapshot) Get(key Key) (MasterEntry, bool) {
	e, ok := s.entries[groupKey(key)]
	return e, ok
}

func (s *Snapshot) Len() int { return len(s.entries) }

// Entries returns the snapshot contents in unspecified order.
func (s *Snapshot) Entries() []MasterEntry {
	out := make([]MasterEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// EntryPlan is the planned outcome for one billing-master candidate.
type EntryPlan struct {
	Key        Key
	State      EntryState // proposed, skipped or unchanged after planning
	New        bool       // key absent from the snapshot
	SkipReason SkipReason
	Before     *MasterEntry // nil when New
	After      *MasterEntry // nil when skipped without a buildable proposal
	Confidence float64
	Fuzzy      bool
}

// SyncPlan is the full proposal for one run. Nothing is written until
// Apply; comparison produces a proposal, the auto-update step commits.
type SyncPlan struct {
	Entries []EntryPlan
	Now     time.Time
}

func (p *SyncPlan) Count(state EntryState) int {
	n := 0
	for _, e := range p.Entries {
		if e.State == state {
			n++
		}
	}
	return n
}

// Plan walks the merged rows and drives each candidate through the
// entry state machine: new -> proposed -> committed | skipped, with
// unchanged as the idempotent no-op. confirmed lists merged keys whose
// low-confidence fuzzy match an operator has approved.
func Plan(merged []*MergedRow, snapshot *Snapshot, cfg Config, confirmed map[Key]bool, now time.Time) *SyncPlan {
	plan := &SyncPlan{Now: now}

	for _, m := range merged {
		// Master-only rows are already the committed state; they are
		// not candidates.
		if len(m.Present) == 1 && m.Present[0] == SourceMaster {
			continue
		}

		e := EntryPlan{Key: m.Key, Confidence: 1.0, Fuzzy: m.Fuzzy}
		if m.Fuzzy {
			e.Confidence = m.FuzzyScore
		}

		var before *MasterEntry
		if prev, ok := snapshot.Get(m.Key); ok {
			b := prev
			before = &b
			e.Before = before
		} else {
			e.New = true
			e.State = EntryStateNew
		}

		switch {
		case m.Ambiguous:
			skip(&e, SkipAmbiguousMatch)
		case m.Blocking:
			skip(&e, SkipBlockingDiscrepancy)
		case missingRequired(m, cfg):
			skip(&e, SkipMissingRequiredField)
		case m.Fuzzy && !confirmed[m.Key]:
			skip(&e, SkipPendingConfirmation)
		case e.Confidence < cfg.CommitThreshold:
			skip(&e, SkipLowConfidence)
		case before != nil && staleSource(m, before):
			skip(&e, SkipStaleSource)
		default:
			after := buildAfter(m, before, now)
			if before != nil && entriesEqual(*before, after) {
				e.State = EntryStateUnchanged
				e.After = before
			} else {
				e.State = EntryStateProposed
				e.After = &after
			}
		}

		plan.Entries = append(plan.Entries, e)
	}
	return plan
}

func skip(e *EntryPlan, reason SkipReason) {
	e.State = EntryStateSkipped
	e.SkipReason = reason
}

func missingRequired(m *MergedRow, cfg Config) bool {
	numeric := m.Values.NumericFields()
	text := m.Values.TextFields()
	for _, field := range cfg.RequiredFields {
		if v, ok := numeric[field]; ok {
			if v == nil {
				return true
			}
			continue
		}
		if v, ok := text[field]; ok && v == "" {
			return true
		}
	}
	return false
}

// staleSource: a run must never regress a committed field to a value
// from an older source snapshot.
func staleSource(m *MergedRow, before *MasterEntry) bool {
	if m.Values.SourceTimestamp == nil || before.VersionTime.IsZero() {
		return false
	}
	return m.Values.SourceTimestamp.Before(before.VersionTime)
}

func buildAfter(m *MergedRow, before *MasterEntry, now time.Time) MasterEntry {
	after := MasterEntry{
		Key:                m.Key,
		Qty:                m.Values.Qty,
		UnitPrice:          m.Values.UnitPrice,
		CorrectedUnitPrice: m.Values.CorrectedUnitPrice,
		ExtendedPrice:      m.Values.ExtendedPrice,
		ExtendedCorrect:    m.Values.ExtendedCorrect,
		CreditTotal:        m.Values.CreditTotal,
		MarginPct:          m.Values.MarginPct,
		Category:           m.Values.Category,
		Description:        m.Values.Description,
		RtnCrNo:            m.Values.RtnCrNo,
		CustomerNo:         m.Values.CustomerNo,
		Version:            1,
		VersionTime:        now,
	}
	if m.Values.SourceTimestamp != nil {
		after.VersionTime = *m.Values.SourceTimestamp
	}
	if before != nil {
		after.Version = before.Version + 1
	}
	return after
}

// entriesEqual compares the value fields only; version stamps and
// provenance are excluded so that re-running with unchanged inputs
// resolves to unchanged.
func entriesEqual(a, b MasterEntry) bool {
	return decEqual(a.Qty, b.Qty) &&
		decEqual(a.UnitPrice, b.UnitPrice) &&
		decEqual(a.CorrectedUnitPrice, b.CorrectedUnitPrice) &&
		decEqual(a.ExtendedPrice, b.ExtendedPrice) &&
		decEqual(a.ExtendedCorrect, b.ExtendedCorrect) &&
		decEqual(a.CreditTotal, b.CreditTotal) &&
		decEqual(a.MarginPct, b.MarginPct) &&
		NormalizeText(a.Category) == NormalizeText(b.Category) &&
		NormalizeText(a.Description) == NormalizeText(b.Description) &&
		a.RtnCrNo == b.RtnCrNo &&
		a.CustomerNo == b.CustomerNo
}

func decEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ApplyResult summarizes what a commit pass actually wrote.
type ApplyResult struct {
	Committed int
	Unchanged int
	Skipped   int
	Failed    int
}

// Apply commits the proposed entries through the store. Each entry
// commit is independently final: a failed write marks that entry
// skipped with a store error and the pass continues. Callers must hold
// the exclusive update scope before calling Apply.
func Apply(ctx context.Context, store MasterStore, plan *SyncPlan, runID uint) ApplyResult {
	var res ApplyResult
	for i := range plan.Entries {
		e := &plan.Entries[i]
		switch e.State {
		case EntryStateProposed:
			after := *e.After
			after.LastRunID = runID
			if err := store.Put(ctx, after); err != nil {
				skip(e, SkipStoreError)
				res.Failed++
				continue
			}
			e.State = EntryStateCommitted
			e.After = &after
			res.Committed++
		case EntryStateUnchanged:
			res.Unchanged++
		case EntryStateSkipped:
			res.Skipped++
		}
	}
	return res
}
