package recon

import (
	"github.com/shopspring/decimal"
)

// Merge produces the unified output row for a matched group, applying
// the configured per-field source precedence. Groups present in only
// one or two sources are still emitted with completeness flags; the
// missing sources simply contribute nothing.
func Merge(g *MatchedGroup, cfg Config) *MergedRow {
	m := &MergedRow{
		Key:        g.Key,
		Present:    g.Present(),
		Fuzzy:      g.Fuzzy,
		FuzzyScore: g.FuzzyScore,
		MasterKey:  g.MasterKey,
		Ambiguous:  g.Ambiguous,
	}
	m.Values.Key = g.Key

	m.Values.Qty = mergeNumeric(g, FieldQty, cfg)
	m.Values.UnitPrice = mergeNumeric(g, FieldUnitPrice, cfg)
	m.Values.CorrectedUnitPrice = mergeNumeric(g, FieldCorrectedUnitPrice, cfg)
	m.Values.ExtendedPrice = mergeNumeric(g, FieldExtendedPrice, cfg)
	m.Values.ExtendedCorrect = mergeNumeric(g, FieldExtendedCorrect, cfg)
	m.Values.CreditTotal = mergeNumeric(g, FieldCreditTotal, cfg)
	m.Values.MarginPct = mergeNumeric(g, FieldMarginPct, cfg)

	m.Values.Category = mergeText(g, FieldCategory, cfg)
	m.Values.Description = mergeText(g, FieldDescription, cfg)
	m.Values.RtnCrNo = mergeText(g, FieldRtnCrNo, cfg)
	m.Values.CustomerNo = mergeText(g, FieldCustomerNo, cfg)
	m.Values.RequestedBy = mergeText(g, FieldRequestedBy, cfg)
	m.Values.Reason = mergeText(g, FieldReason, cfg)

	for _, src := range AllSources {
		if r := g.Rows[src]; r != nil {
			if m.Values.Background == "" {
				m.Values.Background = r.Background
			}
			if m.Values.SourceTimestamp == nil && r.SourceTimestamp != nil {
				ts := *r.SourceTimestamp
				m.Values.SourceTimestamp = &ts
			}
		}
	}

	deriveExtendedCorrect(&m.Values)

	m.Discrepancies = DetectDiscrepancies(g, cfg)
	m.Clean = len(m.Discrepancies) == 0
	for _, d := range m.Discrepancies {
		if d.Severity == SeverityBlocking {
			m.Blocking = true
			break
		}
	}
	return m
}

// MergeAll merges every group in order.
func MergeAll(groups []*MatchedGroup, cfg Config) []*MergedRow {
	out := make([]*MergedRow, 0, len(groups))
	for _, g := range groups {
		out = append(out, Merge(g, cfg))
	}
	return out
}

func precedenceFor(field string, cfg Config) []Source {
	if order, ok := cfg.Precedence[field]; ok {
		return order
	}
	return cfg.DefaultPrecedence
}

func mergeNumeric(g *MatchedGroup, field string, cfg Config) *decimal.Decimal {
	for _, src := range precedenceFor(field, cfg) {
		r := g.Rows[src]
		if r == nil {
			continue
		}
		if v := r.NumericFields()[field]; v != nil {
			d := *v
			return &d
		}
	}
	return nil
}

func mergeText(g *MatchedGroup, field string, cfg Config) string {
	for _, src := range precedenceFor(field, cfg) {
		r := g.Rows[src]
		if r == nil {
			continue
		}
		if v := r.TextFields()[field]; v != "" {
			return v
		}
	}
	return ""
}

// deriveExtendedCorrect fills the extended correct price from
// (unit - corrected) x qty when the sources did not carry it, matching
// the credit intake template.
func deriveExtendedCorrect(v *Row) {
	if v.ExtendedCorrect != nil {
		return
	}
	if v.UnitPrice == nil || v.CorrectedUnitPrice == nil || v.Qty == nil {
		return
	}
	d := v.UnitPrice.Sub(*v.CorrectedUnitPrice).Mul(*v.Qty)
	v.ExtendedCorrect = &d
}
