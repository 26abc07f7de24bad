package datalake

import "time"

// EventTime converts a log event timestamp in milliseconds since the epoch to
// a UTC time.
func EventTime(ts int64) time.Time {
	return time.UnixMilli(ts).UTC()
}

// TimeParts is a timestamp broken down the way the time table stores it.
type TimeParts struct {
	Hour  int32
	Day   int32
	Week  int32
	Month int32
	Year  int32
	// Weekday runs from 1 for Sunday to 7 for Saturday.
	Weekday int32
}

// PartsOf decomposes t. Week is the ISO 8601 week number, so the first days
// of January can belong to week 52 or 53 of the previous year.
func PartsOf(t time.Time) TimeParts {
	_, week := t.ISOWeek()
	return TimeParts{
		Hour:    int32(t.Hour()),
		Day:     int32(t.Day()),
		Week:    int32(week),
		Month:   int32(t.Month()),
		Year:    int32(t.Year()),
		Weekday: int32(t.Weekday()) + 1,
	}
}
