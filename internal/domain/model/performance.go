package model

import "time"

// DateLayout formats a calendar day in history entries and reset markers.
const DateLayout = "2006-01-02"

// PerformanceEntry is one driver's score for one local calendar day.
type PerformanceEntry struct {
	Date          string  `json:"date"`
	Score         int     `json:"score"`
	TripsToday    int     `json:"trips_today"`
	EarningsToday float64 `json:"earnings_today"`
}

// CalendarDay returns the calendar date of t in loc as YYYY-MM-DD.
func CalendarDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}
