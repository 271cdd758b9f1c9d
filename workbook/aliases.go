// Package workbook reads the externally produced source spreadsheets
// and writes the run artifacts. Source files never have stable column
// names, so every read goes through an alias-based column mapping.
package workbook

import (
	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
)

// ColumnMapping maps a canonical field name to the source column names
// it may appear under. Matching is case-insensitive on normalized
// headers (non-alphanumerics collapsed to underscores).
type ColumnMapping map[string][]string

// CreditAliases covers the credit request template exports.
func CreditAliases() ColumnMapping {
	return ColumnMapping{
		recon.FieldInvoiceNumber:      {"Invoice Number", "Doc No", "Document No", "Invoice", "INV No", "INV_NO"},
		recon.FieldItemNumber:         {"Item Number", "Item No.", "Item No", "Item ID", "Item", "ITEM_NO", "ITEMNMBR"},
		recon.FieldCaseNumber:         {"Case Number", "Case No", "Ticket Number", "Ticket"},
		recon.FieldQty:                {"QTY", "Quantity"},
		recon.FieldUnitPrice:          {"Unit Price", "Price", "UnitPrice"},
		recon.FieldCorrectedUnitPrice: {"Corrected Unit Price", "Corrected Price", "New Unit Price"},
		recon.FieldExtendedPrice:      {"Extended Price", "ExtendedPrice", "Ext Price"},
		recon.FieldExtendedCorrect:    {"Extended Correct Price", "Ext Correct Price"},
		recon.FieldCreditTotal:        {"Credit Request Total", "Credit Total", "Credit Amount"},
		recon.FieldCategory:           {"Credit Type", "Category", "Issue Type"},
		recon.FieldDescription:        {"Description", "Item Description", "Reason for Credit"},
		recon.FieldRtnCrNo:            {"RTN/CR No.", "RTN_CR_No", "RTN CR No", "Return/Credit No"},
		recon.FieldCustomerNo:         {"Customer Number", "Customer", "Cust No", "Cust #"},
		recon.FieldRequestedBy:        {"Requested By", "Requester", "User"},
		recon.FieldReason:             {"Reason for Credit", "Reason"},
		recon.FieldTimestamp:          {"Date", "Captured Time Stamp", "Timestamp"},
	}
}

// SOPAliases covers the SOP doc file analysis exports.
func SOPAliases() ColumnMapping {
	return ColumnMapping{
		recon.FieldInvoiceNumber: {"SOP Number", "SOPNo", "SOP", "Invoice Number", "Doc No"},
		recon.FieldItemNumber:    {"Item Number", "ITEMNMBR", "Item", "Item No", "Item No."},
		recon.FieldQty:           {"Qty on Invoice", "Quantity on Invoice", "QTY"},
		recon.FieldUnitPrice:     {"Unit Price", "Price"},
		recon.FieldExtendedPrice: {"Extended Price", "Ext Price"},
		recon.FieldMarginPct:     {"Margin", "Margin %", "Margin Pct"},
		recon.FieldCategory:      {"Category", "Item Category"},
		recon.FieldDescription:   {"Description", "Item Description"},
		recon.FieldCustomerNo:    {"Customer Number", "Customer", "Cust No"},
		recon.FieldTimestamp:     {"Doc Date", "Date", "Document Date"},
	}
}

// MasterAliases covers the billing master workbook.
func MasterAliases() ColumnMapping {
	return ColumnMapping{
		recon.FieldInvoiceNumber:      {"Invoice Number", "Doc No", "Document No", "Invoice"},
		recon.FieldItemNumber:         {"Item Number", "Item No.", "Item No", "Item ID", "Item"},
		recon.FieldCaseNumber:         {"Case Number", "Case No"},
		recon.FieldQty:                {"QTY", "Quantity"},
		recon.FieldUnitPrice:          {"Unit Price", "Price", "Billing Price"},
		recon.FieldCorrectedUnitPrice: {"Corrected Unit Price", "Corrected Price"},
		recon.FieldExtendedPrice:      {"Extended Price", "Ext Price"},
		recon.FieldCreditTotal:        {"Credit Total", "Credit Amount"},
		recon.FieldMarginPct:          {"Margin", "Margin %"},
		recon.FieldCategory:           {"Category", "Item Category"},
		recon.FieldDescription:        {"Description", "Item Description"},
		recon.FieldRtnCrNo:            {"RTN/CR No.", "RTN_CR_No", "RTN CR No", "Return/Credit No", "RTN_CR_No."},
		recon.FieldCustomerNo:         {"Customer Number", "Customer", "Cust No", "Cust #"},
		recon.FieldTimestamp:          {"Updated At", "Captured Time Stamp", "Doc Date", "Date"},
	}
}

// AliasesFor returns the default mapping for a source.
func AliasesFor(src recon.Source) ColumnMapping {
	switch src {
	case recon.SourceSOP:
		return SOPAliases()
	case recon.SourceMaster:
		return MasterAliases()
	default:
		return CreditAliases()
	}
}
