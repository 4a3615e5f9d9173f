package invoicing

import (
	"fmt"
)

// SequenceKind names a per-user monotonic counter
type SequenceKind string

const (
	SequenceKindClient         SequenceKind = "client"
	SequenceKindItem           SequenceKind = "item"
	SequenceKindInvoiceNumber  SequenceKind = "invoiceDocNumber"
	SequenceKindProformaNumber SequenceKind = "proformaDocNumber"
)

// IsValid checks if the sequence kind is valid
func (k SequenceKind) IsValid() bool {
	switch k {
	case SequenceKindClient, SequenceKindItem, SequenceKindInvoiceNumber, SequenceKindProformaNumber:
		return true
	}
	return false
}

// IsDocumentNumber reports whether the counter numbers documents
func (k SequenceKind) IsDocumentNumber() bool {
	return k == SequenceKindInvoiceNumber || k == SequenceKindProformaNumber
}

// SequenceResetPolicy decides whether document numbers restart every calendar year
type SequenceResetPolicy string

const (
	// SequenceResetNever keeps one counter per kind for the lifetime of the account
	SequenceResetNever SequenceResetPolicy = "never"
	// SequenceResetYearly keys document-number counters by year
	SequenceResetYearly SequenceResetPolicy = "yearly"
)

// IsValid checks if the policy is valid
func (p SequenceResetPolicy) IsValid() bool {
	return p == SequenceResetNever || p == SequenceResetYearly
}

// SequenceKey returns the counter key for kind. Only document-number counters
// are split by year, and only under SequenceResetYearly.
func SequenceKey(kind SequenceKind, policy SequenceResetPolicy, year int) string {
	if policy == SequenceResetYearly && kind.IsDocumentNumber() {
		return fmt.Sprintf("%s:%d", kind, year)
	}
	return string(kind)
}

// DefaultNumberPadding is the zero-padded width of the sequence part of a document number
const DefaultNumberPadding = 5

// FormatDocumentNumber renders PREFIX-YEAR-SEQ, e.g. INV-2026-00042
func FormatDocumentNumber(prefix string, year int, sequence int64, padding int) string {
	if padding <= 0 {
		padding = DefaultNumberPadding
	}
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, padding, sequence)
}
