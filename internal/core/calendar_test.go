package core

import "testing"

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b Date
		want int
	}{
		{"same month", NewDate(2025, 3, 1), NewDate(2025, 3, 31), 0},
		{"one month forward", NewDate(2025, 1, 15), NewDate(2025, 2, 1), 1},
		{"across year boundary", NewDate(2024, 11, 30), NewDate(2025, 2, 1), 3},
		{"negative distance", NewDate(2025, 6, 1), NewDate(2025, 4, 1), -2},
		{"full year", NewDate(2024, 5, 10), NewDate(2025, 5, 10), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthsBetween(tt.a, tt.b); got != tt.want {
				t.Errorf("MonthsBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClampDay(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month int
		day   int
		want  int
	}{
		{"day exists", 2025, 1, 31, 31},
		{"february non-leap", 2025, 2, 31, 28},
		{"february leap", 2024, 2, 31, 29},
		{"april 31 clamps to 30", 2025, 4, 31, 30},
		{"mid-month untouched", 2025, 6, 15, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampDay(tt.year, tt.month, tt.day); got != tt.want {
				t.Errorf("ClampDay(%d, %d, %d) = %d, want %d", tt.year, tt.month, tt.day, got, tt.want)
			}
		})
	}
}

func TestMatchesCadence(t *testing.T) {
	tests := []struct {
		name       string
		freq       Frequency
		monthsDiff int
		want       bool
	}{
		{"monthly always", Monthly, 7, true},
		{"bimonthly even", Bimonthly, 4, true},
		{"bimonthly odd", Bimonthly, 3, false},
		{"quarterly hit", Quarterly, 6, true},
		{"quarterly miss", Quarterly, 4, false},
		{"semiannual hit", SemiAnnual, 12, true},
		{"semiannual miss", SemiAnnual, 5, false},
		{"annual hit", Annual, 24, true},
		{"annual miss", Annual, 13, false},
		{"zero diff matches everything", Annual, 0, true},
		{"unknown frequency is fail-open", Frequency("weekly"), 5, true},
		{"empty frequency treated as monthly", Frequency(""), 3, true},
		{"negative diff never matches", Monthly, -1, false},
		{"negative diff never matches fail-open", Frequency("bogus"), -3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesCadence(tt.freq, tt.monthsDiff); got != tt.want {
				t.Errorf("MatchesCadence(%q, %d) = %v, want %v", tt.freq, tt.monthsDiff, got, tt.want)
			}
		})
	}
}

func TestDaysInMonth(t *testing.T) {
	if got := DaysInMonth(2025, 2); got != 28 {
		t.Errorf("DaysInMonth(2025, 2) = %d, want 28", got)
	}
	if got := DaysInMonth(2024, 2); got != 29 {
		t.Errorf("DaysInMonth(2024, 2) = %d, want 29", got)
	}
	if got := DaysInMonth(2025, 12); got != 31 {
		t.Errorf("DaysInMonth(2025, 12) = %d, want 31", got)
	}
}
