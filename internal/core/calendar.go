package core

import "time"

const (
	Monthly    Frequency = "monthly"
	Bimonthly  Frequency = "bimonthly"
	Quarterly  Frequency = "quarterly"
	SemiAnnual Frequency = "semiAnnual"
	Annual     Frequency = "annual"
)

// Frequency is the billing cadence of a recurring template.
type Frequency string

// IsValid returns true for a known cadence or the empty string, which is
// treated as monthly everywhere a frequency is consumed.
func (f Frequency) IsValid() bool {
	switch f {
	case "", Monthly, Bimonthly, Quarterly, SemiAnnual, Annual:
		return true
	default:
		return false
	}
}

// MonthsBetween returns the signed month distance between the months of a and
// b, ignoring the day fields.
func MonthsBetween(a, b Date) int {
	return (b.Year()-a.Year())*12 + (b.Month() - a.Month())
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay clamps day to the last day of the month, so a billing day of 31
// lands on Feb 28/29, Apr 30 and so on.
func ClampDay(year, month, day int) int {
	if last := DaysInMonth(year, month); day > last {
		return last
	}
	return day
}

// MatchesCadence reports whether a template bills monthsDiff months after its
// start. Negative distances never match; an unrecognized frequency matches
// every month, same as monthly.
func MatchesCadence(f Frequency, monthsDiff int) bool {
	if monthsDiff < 0 {
		return false
	}
	switch f {
	case Monthly:
		return true
	case Bimonthly:
		return monthsDiff%2 == 0
	case Quarterly:
		return monthsDiff%3 == 0
	case SemiAnnual:
		return monthsDiff%6 == 0
	case Annual:
		return monthsDiff%12 == 0
	default:
		return true
	}
}
