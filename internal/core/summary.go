package core

// Summary aggregates a listing for display.
type Summary struct {
	Income  int64 // sum of income rows, >= 0
	Expense int64 // sum of expense rows, <= 0
	Balance int64
	Count   int
}

// Balance is the running total of all entries.
func Balance(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}

func Summarize(entries []Entry) Summary {
	var s Summary
	for _, e := range entries {
		if e.Type == Income {
			s.Income += e.Amount
		} else {
			s.Expense += e.Amount
		}
	}
	s.Balance = s.Income + s.Expense
	s.Count = len(entries)
	return s
}
