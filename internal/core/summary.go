package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month, computed over
// the materialized ledger view.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Income     Money            `json:"income"`
	Expenses   Money            `json:"expenses"`
	Net        Money            `json:"net"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

// Overview aggregates a materialized transaction list for one month. Transfer
// legs cancel across included accounts and are skipped; the category split
// covers outflows only, reported as positive magnitudes.
func Overview(transactions []Transaction, year, month int) MonthOverview {
	ov := MonthOverview{Year: year, Month: month}
	byCategory := make(map[string]int64)

	for _, t := range transactions {
		if t.Date.Year() != year || t.Date.Month() != month {
			continue
		}
		if t.Kind == Transfer {
			continue
		}
		if t.Amount.Cents > 0 {
			ov.Income.Cents += t.Amount.Cents
		} else {
			ov.Expenses.Cents += -t.Amount.Cents
			byCategory[t.Category] += -t.Amount.Cents
		}
	}
	ov.Net.Cents = ov.Income.Cents - ov.Expenses.Cents

	for name, cents := range byCategory {
		ov.ByCategory = append(ov.ByCategory, CategoryAmount{Name: name, Amount: Money{Cents: cents}})
	}
	sort.Slice(ov.ByCategory, func(i, j int) bool {
		if ov.ByCategory[i].Amount.Cents != ov.ByCategory[j].Amount.Cents {
			return ov.ByCategory[i].Amount.Cents > ov.ByCategory[j].Amount.Cents
		}
		return ov.ByCategory[i].Name < ov.ByCategory[j].Name
	})
	return ov
}
