package recon

import (
	"strconv"
	"strings"
)

// NormalizeID cleans an identifier coming out of a spreadsheet cell:
// trims spaces and strips the trailing ".0" that appears when numeric
// IDs get parsed as floats.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".0") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return s
}

// NormalizeKey builds the composite business key. Invoice and case
// identifiers are uppercased; item numbers keep their case but lose
// float artifacts.
func NormalizeKey(invoice, item, caseNo string) Key {
	return Key{
		Invoice: strings.ToUpper(NormalizeID(invoice)),
		Item:    NormalizeID(item),
		Case:    strings.ToUpper(NormalizeID(caseNo)),
	}
}

// groupKey is the map key used for alignment. Primary alignment is on
// (invoice, item); the optional case identifier is carried on the key
// but does not split groups.
func groupKey(k Key) string {
	return k.Invoice + "\x1f" + k.Item
}
