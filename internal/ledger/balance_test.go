package ledger

import (
	"testing"

	"creditbook/internal/model"
)

func entry(t model.EntryType, amount int64) model.Transaction {
	return model.Transaction{Type: t, Amount: amount}
}

func TestCompute_Empty(t *testing.T) {
	got := Compute(nil)
	if got != (Summary{}) {
		t.Errorf("Compute(nil) = %+v, want all zero", got)
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.Transaction
		want    Summary
	}{
		{
			name:    "advance offsets due",
			entries: []model.Transaction{entry(model.EntryDue, 100), entry(model.EntryAdvance, 30)},
			want:    Summary{TotalPaid: 30, TotalDue: 100, TotalAdvance: 30, NetDue: 70, NetSpent: 100},
		},
		{
			name:    "advance exceeding due is clamped",
			entries: []model.Transaction{entry(model.EntryDue, 20), entry(model.EntryAdvance, 50)},
			want:    Summary{TotalPaid: 50, TotalDue: 20, TotalAdvance: 50, NetDue: 0, NetSpent: 50},
		},
		{
			name: "mixed paid due advance",
			entries: []model.Transaction{
				entry(model.EntryPaid, 40),
				entry(model.EntryDue, 10),
				entry(model.EntryAdvance, 10),
			},
			want: Summary{TotalPaid: 50, TotalDue: 10, TotalAdvance: 10, NetDue: 0, NetSpent: 50},
		},
		{
			name:    "paid only",
			entries: []model.Transaction{entry(model.EntryPaid, 15), entry(model.EntryPaid, 25)},
			want:    Summary{TotalPaid: 40, NetSpent: 40},
		},
		{
			name:    "due only",
			entries: []model.Transaction{entry(model.EntryDue, 75)},
			want:    Summary{TotalDue: 75, NetDue: 75, NetSpent: 75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.entries); got != tt.want {
				t.Errorf("Compute() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompute_OrderIndependent(t *testing.T) {
	entries := []model.Transaction{
		entry(model.EntryDue, 100),
		entry(model.EntryAdvance, 30),
		entry(model.EntryPaid, 40),
		entry(model.EntryDue, 5),
	}
	want := Compute(entries)

	// Rotate through every cyclic permutation; the fold must not care.
	for i := 1; i < len(entries); i++ {
		rotated := append(append([]model.Transaction{}, entries[i:]...), entries[:i]...)
		if got := Compute(rotated); got != want {
			t.Errorf("rotation %d: Compute() = %+v, want %+v", i, got, want)
		}
	}
}

func TestCompute_IgnoresUnknownType(t *testing.T) {
	got := Compute([]model.Transaction{entry(model.EntryType("refund"), 10)})
	if got != (Summary{}) {
		t.Errorf("unknown type contributed to summary: %+v", got)
	}
}
