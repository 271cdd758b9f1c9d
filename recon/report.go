package recon

import (
	"time"
)

// Input gathers everything one reconciliation needs: rows per source,
// the explicit master snapshot, and the operator-confirmed fuzzy keys.
type Input struct {
	Credit []*Row
	SOP    []*Row
	Master []*Row

	Snapshot  *Snapshot
	Confirmed map[Key]bool
	Now       time.Time
}

// Result is the full outcome of one reconciliation: matched groups,
// the unified merged table, the discrepancy report, collected issues,
// and the sync plan ready for Apply.
type Result struct {
	Groups        []*MatchedGroup
	Merged        []*MergedRow
	Discrepancies []Discrepancy
	Issues        []Issue
	Plan          *SyncPlan
}

// Summary counts for run bookkeeping.
type Summary struct {
	Groups        int `json:"groups"`
	Clean         int `json:"clean"`
	Discrepant    int `json:"discrepant"`
	FuzzyMatched  int `json:"fuzzy_matched"`
	Ambiguous     int `json:"ambiguous"`
	Duplicates    int `json:"duplicates"`
	MissingKey    int `json:"missing_key"`
	Proposed      int `json:"proposed"`
	Unchanged     int `json:"unchanged"`
	Skipped       int `json:"skipped"`
	Committed     int `json:"committed"`
}

// Reconcile runs alignment, discrepancy detection, merge and sync
// planning as one batch. It does not write anything; pass Result.Plan
// to Apply to commit.
func Reconcile(in Input, cfg Config, scorer Scorer) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if in.Snapshot == nil {
		in.Snapshot = NewSnapshot(nil)
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	aligned := Align(in.Credit, in.SOP, in.Master, cfg, scorer)

	res := &Result{
		Groups: aligned.Groups,
		Issues: aligned.Issues,
	}
	res.Merged = MergeAll(aligned.Groups, cfg)
	for _, m := range res.Merged {
		res.Discrepancies = append(res.Discrepancies, m.Discrepancies...)
		if m.Blocking {
			res.Issues = append(res.Issues, Issue{
				Key:      m.Key,
				Code:     IssueBlockingDiscrepancy,
				Message:  "field conflict exceeds tolerance on an authoritative field",
				Severity: SeverityBlocking,
			})
		}
	}

	res.Plan = Plan(res.Merged, in.Snapshot, cfg, in.Confirmed, in.Now)
	for _, e := range res.Plan.Entries {
		if e.State == EntryStateSkipped && e.SkipReason == SkipStaleSource {
			res.Issues = append(res.Issues, Issue{
				Key:      e.Key,
				Code:     IssueStaleSource,
				Message:  "source row predates committed master version",
				Severity: SeverityInfo,
			})
		}
	}
	return res, nil
}

// Summarize folds the result into counters.
func (r *Result) Summarize() Summary {
	s := Summary{Groups: len(r.Groups)}
	for _, m := range r.Merged {
		if m.Clean {
			s.Clean++
		} else {
			s.Discrepant++
		}
		if m.Fuzzy {
			s.FuzzyMatched++
		}
		if m.Ambiguous {
			s.Ambiguous++
		}
	}
	for _, i := range r.Issues {
		switch i.Code {
		case IssueDuplicateKey:
			s.Duplicates++
		case IssueMissingKey:
			s.MissingKey++
		}
	}
	if r.Plan != nil {
		s.Proposed = r.Plan.Count(EntryStateProposed)
		s.Unchanged = r.Plan.Count(EntryStateUnchanged)
		s.Skipped = r.Plan.Count(EntryStateSkipped)
		s.Committed = r.Plan.Count(EntryStateCommitted)
	}
	return s
}
