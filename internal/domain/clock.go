package domain

import "time"

// Clock supplies "now"; services take one so tests can pin the calendar.
type Clock func() time.Time

// Today truncates t to its calendar date in loc, returned as midnight UTC so it
// compares directly with DATE columns.
func Today(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOnly normalises a DATE value read from storage or parsed from input.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, Invalid(field, "날짜 형식은 YYYY-MM-DD 입니다.")
	}
	return t, nil
}
