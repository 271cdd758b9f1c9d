package recon_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
)

func TestLevenshteinScorer(t *testing.T) {
	s := recon.LevenshteinScorer{}
	if got := s.Score("widget", "widget"); got != 1 {
		t.Fatalf("identical strings: %f", got)
	}
	if got := s.Score("", "widget"); got != 0 {
		t.Fatalf("empty string: %f", got)
	}
	// one edit over six characters
	got := s.Score("widget", "widgets")
	want := 1 - 1.0/7.0
	if got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestJaroWinklerFavorsSharedPrefix(t *testing.T) {
	s := recon.JaroWinklerScorer{}
	if got := s.Score("widget a", "widget a"); got != 1 {
		t.Fatalf("identical strings: %f", got)
	}
	prefix := s.Score("widget assembly", "widget assmbly")
	scattered := s.Score("widget assembly", "assembly widget")
	if prefix <= scattered {
		t.Fatalf("prefix variant should outscore reordering: %f vs %f", prefix, scattered)
	}
}

func TestScorerByName(t *testing.T) {
	if _, err := recon.ScorerByName(""); err != nil {
		t.Fatalf("empty name must default: %v", err)
	}
	if _, err := recon.ScorerByName("Jaro-Winkler"); err != nil {
		t.Fatalf("case-insensitive resolve failed: %v", err)
	}
	if _, err := recon.ScorerByName("soundex"); err == nil {
		t.Fatal("unknown scorer must error")
	}
}

func TestNormalizeText(t *testing.T) {
	if got := recon.NormalizeText("  Industrial   WIDGET\t10mm "); got != "industrial widget 10mm" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"  1001  ": "1001",
		"1001.0":   "1001",
		"INV-42":   "INV-42",
		"10.5":     "10.5",
		"ABC.0":    "ABC.0",
	}
	for in, want := range cases {
		if got := recon.NormalizeID(in); got != want {
			t.Fatalf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	k := recon.NormalizeKey(" inv-100 ", "1001.0", "case-7")
	if k.Invoice != "INV-100" || k.Item != "1001" || k.Case != "CASE-7" {
		t.Fatalf("got %+v", k)
	}
	if k.IsZero() {
		t.Fatal("complete key reported zero")
	}
	if !(recon.Key{Invoice: "INV-1"}).IsZero() {
		t.Fatal("key without item must be zero")
	}
}
