package recon

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which workbook a row came from.
type Source string

const (
	SourceCredit Source = "credit_request"
	SourceSOP    Source = "sop"
	SourceMaster Source = "billing_master"
)

// AllSources in canonical order (credit file first, master last).
var AllSources = []Source{SourceCredit, SourceSOP, SourceMaster}

// Key is the composite business key aligning rows across sources.
// Invoice and Item are required; Case is optional and does not
// participate in equality when empty on either side.
type Key struct {
	Invoice string `json:"invoice"`
	Item    string `json:"item"`
	Case    string `json:"case,omitempty"`
}

func (k Key) IsZero() bool {
	return k.Invoice == "" || k.Item == ""
}

func (k Key) String() string {
	if k.Case != "" {
		return fmt.Sprintf("%s/%s/%s", k.Invoice, k.Item, k.Case)
	}
	return fmt.Sprintf("%s/%s", k.Invoice, k.Item)
}

// Row is one record from a source workbook, keys and values already
// normalized. Pointer fields are nil when the source column was absent
// or blank, which is different from zero.
type Row struct {
	Source Source
	Key    Key
	Line   int // 1-based data row in the source file, for diagnostics

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
	RequestedBy string
	Reason      string

	// Background holds PDF-derived notes supplied by the text
	// extraction collaborator, keyed upstream by case/invoice/item.
	Background string

	// SourceTimestamp is the row's own capture/document time, used for
	// the stale-source check during sync.
	SourceTimestamp *time.Time
}

// Canonical field names. Workbook column mapping targets these, and
// comparison, merge and sync policy are keyed by them.
const (
	FieldInvoiceNumber      = "invoice_number"
	FieldItemNumber         = "item_number"
	FieldCaseNumber         = "case_number"
	FieldQty                = "qty"
	FieldUnitPrice          = "unit_price"
	FieldCorrectedUnitPrice = "corrected_unit_price"
	FieldExtendedPrice      = "extended_price"
	FieldExtendedCorrect    = "extended_correct_price"
	FieldCreditTotal        = "credit_total"
	FieldMarginPct          = "margin_pct"
	FieldCategory           = "category"
	FieldDescription        = "description"
	FieldRtnCrNo            = "rtn_cr_no"
	FieldCustomerNo         = "customer_no"
	FieldRequestedBy        = "requested_by"
	FieldReason             = "reason"
	FieldTimestamp          = "timestamp"
)

// NumericFields returns the named decimal fields of the row.
// Nil entries mean the field is not present in this row.
func (r *Row) NumericFields() map[string]*decimal.Decimal {
	return map[string]*decimal.Decimal{
		FieldQty:                r.Qty,
		FieldUnitPrice:          r.UnitPrice,
		FieldCorrectedUnitPrice: r.CorrectedUnitPrice,
		FieldExtendedPrice:      r.ExtendedPrice,
		FieldExtendedCorrect:    r.ExtendedCorrect,
		FieldCreditTotal:        r.CreditTotal,
		FieldMarginPct:          r.MarginPct,
	}
}

// TextFields returns the named text fields of the row. Empty string
// means not present.
func (r *Row) TextFields() map[string]string {
	return map[string]string{
		FieldCategory:    r.Category,
		FieldDescription: r.Description,
		FieldRtnCrNo:     r.RtnCrNo,
		FieldCustomerNo:  r.CustomerNo,
		FieldRequestedBy: r.RequestedBy,
		FieldReason:      r.Reason,
	}
}

// MatchedGroup is the set of rows (one per source at most) sharing a
// business key after alignment.
type MatchedGroup struct {
	Key  Key
	Rows map[Source]*Row

	// Fuzzy is set when the master row was attached by description
	// similarity rather than an exact key match.
	Fuzzy      bool
	FuzzyScore float64
	// MasterKey is the billing-master row's own key when it was
	// fuzzy-attached (it differs from Key by definition).
	MasterKey Key

	// Ambiguous is set when two or more fuzzy candidates tied at the
	// top score; no master row is attached in that case.
	Ambiguous bool
}

// Present lists the sources that contributed a row, in canonical order.
func (g *MatchedGroup) Present() []Source {
	out := make([]Source, 0, len(g.Rows))
	for _, s := range AllSources {
		if g.Rows[s] != nil {
			out = append(out, s)
		}
	}
	return out
}

func (g *MatchedGroup) Row(s Source) *Row { return g.Rows[s] }

// Severity of a field-level discrepancy.
type Severity string

const (
	SeverityInfo     Severity = "informational"
	SeverityBlocking Severity = "blocking"
)

// Discrepancy is a field-level difference between rows of the same
// matched group.
type Discrepancy struct {
	Key      Key
	Field    string
	Values   map[Source]string // rendered value per contributing source
	Severity Severity
}

// MergedRow is the unified output row for one matched group.
type MergedRow struct {
	Key    Key
	Values Row // merged field values; Values.Source is left empty
	// Present flags which sources contributed ("completeness").
	Present []Source

	Fuzzy      bool
	FuzzyScore float64
	MasterKey  Key
	Ambiguous  bool

	Clean         bool
	Discrepancies []Discrepancy
	// Blocking is true when any discrepancy is blocking severity.
	Blocking bool
}

func (m *MergedRow) HasSource(s Source) bool {
	for _, p := range m.Present {
		if p == s {
			return true
		}
	}
	return false
}

// CompletenessTag renders the Present set as e.g. "credit_request+sop".
func (m *MergedRow) CompletenessTag() string {
	parts := make([]string, 0, len(m.Present))
	for _, s := range m.Present {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, "+")
}

// IssueCode classifies row-level and entry-level diagnostics. Issues
// never abort a run; they are collected and reported.
type IssueCode string

const (
	IssueMissingKey          IssueCode = "missing_key"
	IssueDuplicateKey        IssueCode = "duplicate_key"
	IssueAmbiguousMatch      IssueCode = "ambiguous_match"
	IssueBlockingDiscrepancy IssueCode = "blocking_discrepancy"
	IssueStaleSource         IssueCode = "stale_source"
	IssueBadValue            IssueCode = "bad_value"
)

// Issue is one collected diagnostic.
type Issue struct {
	Source   Source
	Key      Key
	Line     int
	Code     IssueCode
	Message  string
	Severity Severity
}

// EntryState is the per-entry sync state machine:
// new -> proposed -> committed | skipped. Entries whose proposal equals
// the committed master state resolve to unchanged (the idempotence
// no-op).
type EntryState string

const (
	EntryStateNew       EntryState = "new"
	EntryStateProposed  EntryState = "proposed"
	EntryStateCommitted EntryState = "committed"
	EntryStateSkipped   EntryState = "skipped"
	EntryStateUnchanged EntryState = "unchanged"
)

// SkipReason records why a sync entry was left untouched.
type SkipReason string

const (
	SkipNone                 SkipReason = ""
	SkipAmbiguousMatch       SkipReason = "ambiguous fuzzy match"
	SkipBlockingDiscrepancy  SkipReason = "blocking discrepancy"
	SkipMissingRequiredField SkipReason = "missing required field"
	SkipStaleSource          SkipReason = "stale source"
	SkipPendingConfirmation  SkipReason = "pending manual confirmation"
	SkipLowConfidence        SkipReason = "match confidence below commit threshold"
	SkipStoreError           SkipReason = "store write failed"
)
