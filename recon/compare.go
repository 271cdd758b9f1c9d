package recon

import (
	"github.com/shopspring/decimal"
)

// DetectDiscrepancies compares shared fields across the members of a
// matched group. Numeric fields use the configured tolerances; text
// fields compare exactly on normalized values. Fuzzy similarity is
// never applied here, so data-entry errors stay visible.
func DetectDiscrepancies(g *MatchedGroup, cfg Config) []Discrepancy {
	if len(g.Rows) < 2 {
		return nil
	}

	var out []Discrepancy

	numeric := make(map[string]map[Source]decimal.Decimal)
	for src, row := range g.Rows {
		for field, val := range row.NumericFields() {
			if val == nil {
				continue
			}
			if numeric[field] == nil {
				numeric[field] = map[Source]decimal.Decimal{}
			}
			numeric[field][src] = *val
		}
	}
	for field, bySource := range numeric {
		if len(bySource) < 2 {
			continue
		}
		if numericDiffers(bySource, cfg.FieldClasses[field], cfg) {
			out = append(out, Discrepancy{
				Key:      g.Key,
				Field:    field,
				Values:   renderNumeric(bySource),
				Severity: severityFor(field, cfg),
			})
		}
	}

	text := make(map[string]map[Source]string)
	for src, row := range g.Rows {
		for field, val := range row.TextFields() {
			if val == "" {
				continue
			}
			if text[field] == nil {
				text[field] = map[Source]string{}
			}
			text[field][src] = val
		}
	}
	for field, bySource := range text {
		if len(bySource) < 2 {
			continue
		}
		if textDiffers(bySource) {
			vals := make(map[Source]string, len(bySource))
			for s, v := range bySource {
				vals[s] = v
			}
			out = append(out, Discrepancy{
				Key:      g.Key,
				Field:    field,
				Values:   vals,
				Severity: severityFor(field, cfg),
			})
		}
	}

	return out
}

func severityFor(field string, cfg Config) Severity {
	if cfg.AuthoritativeFields[field] {
		return SeverityBlocking
	}
	return SeverityInfo
}

// numericDiffers reports whether the spread of per-source values
// exceeds the tolerance for the field class.
func numericDiffers(bySource map[Source]decimal.Decimal, class FieldClass, cfg Config) bool {
	var minV, maxV decimal.Decimal
	first := true
	for _, v := range bySource {
		if first {
			minV, maxV = v, v
			first = false
			continue
		}
		if v.LessThan(minV) {
			minV = v
		}
		if v.GreaterThan(maxV) {
			maxV = v
		}
	}
	spread := maxV.Sub(minV)
	if spread.IsZero() {
		return false
	}

	switch class {
	case FieldClassCurrency:
		return spread.GreaterThan(cfg.CurrencyTolerance)
	case FieldClassPercent:
		// Relative to the largest magnitude; exact when both are zero.
		base := maxV.Abs()
		if minV.Abs().GreaterThan(base) {
			base = minV.Abs()
		}
		if base.IsZero() {
			return true
		}
		return spread.Div(base).GreaterThan(cfg.PercentTolerance)
	default:
		// Quantities and unclassified numerics require exact agreement.
		return true
	}
}

func textDiffers(bySource map[Source]string) bool {
	var ref string
	first := true
	for _, v := range bySource {
		n := NormalizeText(v)
		if first {
			ref = n
			first = false
			continue
		}
		if n != ref {
			return true
		}
	}
	return false
}

func renderNumeric(bySource map[Source]decimal.Decimal) map[Source]string {
	out := make(map[Source]string, len(bySource))
	for s, v := range bySource {
		out[s] = v.String()
	}
	return out
}
