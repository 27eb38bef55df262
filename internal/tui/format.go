package tui

import "time"

// listTimestamp is the compact time shown in the conversation list: clock for
// today, day/month otherwise. Timestamps arrive as epoch seconds.
func listTimestamp(ts int64, now time.Time) string {
	if ts == 0 {
		return ""
	}
	t := time.Unix(ts, 0).Local()
	if sameDay(t, now) {
		return t.Format("15:04")
	}
	return t.Format("02/01")
}

// dayLabel is the separator line between messages of different days.
func dayLabel(ts int64, now time.Time) string {
	t := time.Unix(ts, 0).Local()
	switch {
	case sameDay(t, now):
		return "Today"
	case sameDay(t, now.AddDate(0, 0, -1)):
		return "Yesterday"
	case now.Sub(t) < 6*24*time.Hour:
		return t.Format("Monday")
	default:
		return t.Format("02.01.2006")
	}
}

func clock(ts int64) string {
	return time.Unix(ts, 0).Local().Format("15:04")
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
