package savings

import "sort"

// Summary aggregates the export: how many goals and debts exist and how much
// went into each, per currency.
type Summary struct {
	Goals int
	Debts int
	Saved map[string]float64
	Paid  map[string]float64
}

// Summarize counts goals and totals the records by kind and currency.
func Summarize(goals []Goal, records []Record) Summary {
	s := Summary{
		Saved: make(map[string]float64),
		Paid:  make(map[string]float64),
	}

	for _, g := range goals {
		switch g.Kind {
		case KindGoal:
			s.Goals++
		case KindDebt:
			s.Debts++
		}
	}

	for _, r := range records {
		switch r.Kind {
		case KindGoal:
			s.Saved[r.Currency] += r.Amount
		case KindDebt:
			s.Paid[r.Currency] += r.Amount
		}
	}
	return s
}

// Currencies returns the keys of totals in a stable order.
func Currencies(totals map[string]float64) []string {
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
