package recon

import (
	"fmt"
	"sort"
)

// AlignResult carries the matched groups plus every row-level
// diagnostic produced while grouping. Rows named in Issues are excluded
// from the groups; nothing is silently dropped.
type AlignResult struct {
	Groups []*MatchedGroup
	Issues []Issue
}

// Align groups the three row sequences by business key.
//
// Exact alignment first: rows lacking invoice or item are rejected with
// a missing-key issue; duplicate keys within one source keep the first
// occurrence and report the rest. When a group has no billing-master
// member, a fuzzy fallback scores the group's normalized description
// against master-only rows; the unique best candidate at or above
// cfg.FuzzyThreshold is attached low-confidence, and an exact top-score
// tie marks the group ambiguous instead.
func Align(credit, sop, master []*Row, cfg Config, scorer Scorer) *AlignResult {
	res := &AlignResult{}

	byKey := make(map[string]*MatchedGroup)
	var order []string

	admit := func(rows []*Row, src Source) {
		seen := make(map[string]*Row)
		for _, r := range rows {
			if r == nil {
				continue
			}
			r.Source = src
			if r.Key.IsZero() {
				res.Issues = append(res.Issues, Issue{
					Source:   src,
					Key:      r.Key,
					Line:     r.Line,
					Code:     IssueMissingKey,
					Message:  "row lacks invoice or item identifier",
					Severity: SeverityBlocking,
				})
				continue
			}
			gk := groupKey(r.Key)
			if first, dup := seen[gk]; dup {
				res.Issues = append(res.Issues, Issue{
					Source:   src,
					Key:      r.Key,
					Line:     r.Line,
					Code:     IssueDuplicateKey,
					Message:  fmt.Sprintf("duplicate of row %d; first occurrence wins", first.Line),
					Severity: SeverityInfo,
				})
				continue
			}
			seen[gk] = r

			g := byKey[gk]
			if g == nil {
				g = &MatchedGroup{Key: r.Key, Rows: map[Source]*Row{}}
				byKey[gk] = g
				order = append(order, gk)
			}
			g.Rows[src] = r
		}
	}

	admit(credit, SourceCredit)
	admit(sop, SourceSOP)
	admit(master, SourceMaster)

	for _, gk := range order {
		res.Groups = append(res.Groups, byKey[gk])
	}

	if scorer != nil {
		res.fuzzyAttach(cfg, scorer)
	}
	return res
}

// fuzzyAttach runs the billing-master fallback over groups that have a
// requesting row but no master row. Candidates are master-only groups;
// an attached candidate's group is removed from the result.
func (res *AlignResult) fuzzyAttach(cfg Config, scorer Scorer) {
	var candidates []*MatchedGroup
	for _, g := range res.Groups {
		if g.Rows[SourceMaster] != nil && g.Rows[SourceCredit] == nil && g.Rows[SourceSOP] == nil {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return
	}

	claimed := make(map[*MatchedGroup]bool)
	for _, g := range res.Groups {
		if g.Rows[SourceMaster] != nil {
			continue
		}
		desc := groupDescription(g)
		if desc == "" {
			continue
		}

		best, tie, bestScore := pickFuzzyCandidate(desc, candidates, claimed, cfg.FuzzyThreshold, scorer)
		if best == nil {
			continue
		}
		if tie {
			g.Ambiguous = true
			res.Issues = append(res.Issues, Issue{
				Source:   SourceMaster,
				Key:      g.Key,
				Code:     IssueAmbiguousMatch,
				Message:  fmt.Sprintf("multiple billing-master candidates tied at %.3f", bestScore),
				Severity: SeverityBlocking,
			})
			continue
		}

		g.Rows[SourceMaster] = best.Rows[SourceMaster]
		g.Fuzzy = true
		g.FuzzyScore = bestScore
		g.MasterKey = best.Key
		claimed[best] = true
	}

	if len(claimed) > 0 {
		kept := res.Groups[:0]
		for _, g := range res.Groups {
			if !claimed[g] {
				kept = append(kept, g)
			}
		}
		res.Groups = kept
	}
}

// pickFuzzyCandidate scores desc against each unclaimed master-only
// candidate and returns the highest scorer at or above threshold.
// tie is true when two candidates share the exact top score.
func pickFuzzyCandidate(desc string, candidates []*MatchedGroup, claimed map[*MatchedGroup]bool, threshold float64, scorer Scorer) (best *MatchedGroup, tie bool, bestScore float64) {
	type scored struct {
		g     *MatchedGroup
		score float64
	}
	var qualifying []scored
	for _, c := range candidates {
		if claimed[c] {
			continue
		}
		cDesc := groupDescription(c)
		if cDesc == "" {
			continue
		}
		s := scorer.Score(desc, cDesc)
		if s >= threshold {
			qualifying = append(qualifying, scored{c, s})
		}
	}
	if len(qualifying) == 0 {
		return nil, false, 0
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].score > qualifying[j].score
	})
	best = qualifying[0].g
	bestScore = qualifying[0].score
	if len(qualifying) > 1 && qualifying[1].score == bestScore {
		return best, true, bestScore
	}
	return best, false, bestScore
}

// groupDescription is the normalized description (falling back to
// category) used for fuzzy candidate scoring.
func groupDescription(g *MatchedGroup) string {
	for _, s := range AllSources {
		if r := g.Rows[s]; r != nil {
			if d := NormalizeText(r.Description); d != "" {
				return d
			}
			if c := NormalizeText(r.Category); c != "" {
				return c
			}
		}
	}
	return ""
}
