package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/replyscout/internal/types"
)

var allDays = []int{1, 2, 3, 4, 5, 6, 7}

// 2026-10-19 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

func TestIsDue_NoActiveDaysNeverFires(t *testing.T) {
	s := types.ScanSchedule{IntervalMinutes: 1, ActiveStartHour: 0, ActiveEndHour: 23}
	for h := 0; h < 24*7; h++ {
		now := at(19, 0, 0).Add(time.Duration(h) * time.Hour)
		assert.False(t, IsDue(s, now), "fired at %s", now)
	}
}

func TestIsDue_IntervalBoundary(t *testing.T) {
	now := at(19, 12, 0)
	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"one minute short", 359 * time.Minute, false},
		{"exactly interval", 360 * time.Minute, true},
		{"past interval", 400 * time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := now.Add(-tt.elapsed)
			s := types.ScanSchedule{
				IntervalMinutes: 360,
				ActiveStartHour: 0,
				ActiveEndHour:   23,
				ActiveDays:      allDays,
				LastScanAt:      &last,
			}
			assert.Equal(t, tt.want, IsDue(s, now))
		})
	}
}

func TestIsDue_NeverScanned(t *testing.T) {
	s := types.ScanSchedule{IntervalMinutes: 60, ActiveStartHour: 9, ActiveEndHour: 17, ActiveDays: allDays}
	assert.True(t, IsDue(s, at(19, 9, 0)))
	assert.True(t, IsDue(s, at(19, 17, 59)))
	assert.False(t, IsDue(s, at(19, 18, 0)))
	assert.False(t, IsDue(s, at(19, 8, 59)))
}

func TestIsDue_WrapAroundHours(t *testing.T) {
	s := types.ScanSchedule{IntervalMinutes: 60, ActiveStartHour: 22, ActiveEndHour: 6, ActiveDays: allDays}
	assert.True(t, IsDue(s, at(19, 23, 0)))
	assert.True(t, IsDue(s, at(19, 2, 0)))
	assert.True(t, IsDue(s, at(19, 22, 0)))
	assert.True(t, IsDue(s, at(19, 6, 30)))
	assert.False(t, IsDue(s, at(19, 10, 0)))
	assert.False(t, IsDue(s, at(19, 21, 59)))
}

func TestIsDue_ActiveDays(t *testing.T) {
	weekdays := types.ScanSchedule{IntervalMinutes: 60, ActiveStartHour: 0, ActiveEndHour: 23, ActiveDays: []int{1, 2, 3, 4, 5}}
	assert.True(t, IsDue(weekdays, at(19, 12, 0)))  // Monday
	assert.True(t, IsDue(weekdays, at(23, 12, 0)))  // Friday
	assert.False(t, IsDue(weekdays, at(24, 12, 0))) // Saturday
	assert.False(t, IsDue(weekdays, at(25, 12, 0))) // Sunday

	sunday := types.ScanSchedule{IntervalMinutes: 60, ActiveStartHour: 0, ActiveEndHour: 23, ActiveDays: []int{7}}
	assert.True(t, IsDue(sunday, at(25, 12, 0)))
	assert.False(t, IsDue(sunday, at(19, 12, 0)))
}

func TestIsDue_DefaultInterval(t *testing.T) {
	now := at(19, 12, 0)
	last := now.Add(-5 * time.Hour)
	s := types.ScanSchedule{ActiveStartHour: 0, ActiveEndHour: 23, ActiveDays: allDays, LastScanAt: &last}
	assert.False(t, IsDue(s, now))

	last = now.Add(-6 * time.Hour)
	assert.True(t, IsDue(s, now))
}

func TestIsDue_Repeatable(t *testing.T) {
	last := at(19, 6, 0)
	s := types.ScanSchedule{IntervalMinutes: 360, ActiveStartHour: 0, ActiveEndHour: 23, ActiveDays: allDays, LastScanAt: &last}
	now := at(19, 12, 0)
	for i := 0; i < 3; i++ {
		assert.True(t, IsDue(s, now))
	}
	assert.Equal(t, at(19, 6, 0), *s.LastScanAt)
}

func TestWeekday(t *testing.T) {
	assert.Equal(t, 1, Weekday(at(19, 0, 0)))
	assert.Equal(t, 6, Weekday(at(24, 0, 0)))
	assert.Equal(t, 7, Weekday(at(25, 0, 0)))
}

func TestNextDue(t *testing.T) {
	s := types.ScanSchedule{IntervalMinutes: 60, ActiveStartHour: 9, ActiveEndHour: 17, ActiveDays: []int{1}}

	now := at(19, 7, 30)
	assert.Equal(t, at(19, 9, 0), NextDue(s, now))

	now = at(19, 12, 0)
	assert.Equal(t, now, NextDue(s, now))

	// After Monday's window closes the next slot is the following Monday.
	assert.Equal(t, at(26, 9, 0), NextDue(s, at(19, 18, 0)))

	last := at(19, 12, 0)
	s.LastScanAt = &last
	assert.Equal(t, at(19, 13, 0), NextDue(s, at(19, 12, 10)))

	assert.True(t, NextDue(types.ScanSchedule{ActiveStartHour: 0, ActiveEndHour: 23}, now).IsZero())
}
