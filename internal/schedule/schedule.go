// Package schedule decides whether a configuration is due for a scan.
package schedule

import (
	"time"

	"github.com/ibeckermayer/replyscout/internal/types"
)

// IsDue reports whether a scan may run at now. It has no side effects;
// the orchestrator owns LastScanAt.
func IsDue(s types.ScanSchedule, now time.Time) bool {
	if !activeDay(s.ActiveDays, now) {
		return false
	}
	if !InWindow(s.ActiveStartHour, s.ActiveEndHour, now.Hour()) {
		return false
	}
	if s.LastScanAt == nil {
		return true
	}
	return now.Sub(*s.LastScanAt) >= s.Interval()
}

// InWindow reports whether hour falls in the inclusive [start, end]
// window, wrapping past midnight when start > end.
func InWindow(start, end, hour int) bool {
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}

// Weekday converts t's weekday to ISO numbering (1 = Monday, 7 = Sunday).
func Weekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func activeDay(days []int, now time.Time) bool {
	today := Weekday(now)
	for _, d := range days {
		if d == today {
			return true
		}
	}
	return false
}

// NextDue returns the earliest time at or after now, on an hour
// boundary or the interval boundary, at which IsDue would report true.
// It gives up after a week and returns the zero time, which is the case
// for schedules with no active days.
func NextDue(s types.ScanSchedule, now time.Time) time.Time {
	if IsDue(s, now) {
		return now
	}
	t := now
	if s.LastScanAt != nil {
		if next := s.LastScanAt.Add(s.Interval()); next.After(t) {
			t = next
		}
	}
	limit := now.Add(8 * 24 * time.Hour)
	for !t.After(limit) {
		if IsDue(s, t) {
			return t
		}
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
	}
	return time.Time{}
}
