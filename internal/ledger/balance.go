// Package ledger derives balance summaries from transaction history.
// Compute is the single aggregation formula for the whole service:
// every call site (HTTP, cache refresh, reconciliation reporting) goes
// through it, so sign conventions cannot drift between screens.
package ledger

import "creditbook/internal/model"

// Summary holds the unsigned per-category totals for one
// (customer, shop) scope. Presentation signs are a caller concern.
type Summary struct {
	TotalPaid    int64 `json:"total_paid"`
	TotalDue     int64 `json:"total_due"`
	TotalAdvance int64 `json:"total_advance"`
	NetDue       int64 `json:"net_due"`
	NetSpent     int64 `json:"net_spent"`
}

// Compute folds an unordered sequence of entries into a Summary.
// The fold is commutative over addition, so entry order is irrelevant.
//
// An advance is a prepayment: it counts toward TotalPaid and offsets
// outstanding due. NetDue is clamped at zero; advance beyond the
// outstanding due is absorbed, not carried as a credit balance.
// NetSpent is the total economic value of goods received, whether
// already paid or still owed.
//
// Entries are assumed valid (positive amounts, known types); creation
// is where validation happens, not here.
func Compute(entries []model.Transaction) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Type {
		case model.EntryPaid:
			s.TotalPaid += e.Amount
		case model.EntryDue:
			s.TotalDue += e.Amount
		case model.EntryAdvance:
			s.TotalAdvance += e.Amount
			s.TotalPaid += e.Amount
		}
	}
	s.NetDue = s.TotalDue - s.TotalAdvance
	if s.NetDue < 0 {
		s.NetDue = 0
	}
	s.NetSpent = s.TotalPaid + s.NetDue
	return s
}
