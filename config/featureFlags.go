package config

import (
	"os"
	"strings"
)

// AutoApplyEnabled gates the billing-master write-back step: when off, runs
// still plan and report but never commit entries.
//
// Set via env:
// - RECON_AUTO_APPLY=true
func AutoApplyEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RECON_AUTO_APPLY")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// FuzzyMatchEnabledFor enables the fuzzy alignment fallback per workbook source.
//
// Set via env:
// - RECON_FUZZY_SOURCES="CREDIT_REQUEST,SOP"
//
// Source keys are case-insensitive.
func FuzzyMatchEnabledFor(source string) bool {
	source = strings.ToUpper(strings.TrimSpace(source))
	if source == "" {
		return false
	}
	raw := os.Getenv("RECON_FUZZY_SOURCES")
	if strings.TrimSpace(raw) == "" {
		return true
	}
	for _, part := range strings.Split(raw, ",") {
		if strings.ToUpper(strings.TrimSpace(part)) == source {
			return true
		}
	}
	return false
}
