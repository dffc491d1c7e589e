package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdayWindow(from, to int) WeeklyWindow {
	return WeeklyWindow{FromWeekday: from, ToWeekday: to, FromTime: "08:00", ToTime: "12:00", SlotMinutes: 60}
}

func TestComputeSlotsWorkingDay(t *testing.T) {
	// Monday within a Mon-Fri window, one booking at 09:00.
	window := weekdayWindow(1, 5)
	booked := []BookedSlot{{Date: "2025-06-09", Time: "09:00"}}

	slots, err := ComputeSlots(window, "2025-06-09", booked)
	require.NoError(t, err)

	expected := []Slot{
		{Time: "08:00", Available: true},
		{Time: "09:00", Available: false},
		{Time: "10:00", Available: true},
		{Time: "11:00", Available: true},
		{Time: "12:00", Available: true},
	}
	assert.Equal(t, expected, slots)
}

func TestComputeSlotsNonWorkingDayIsEmpty(t *testing.T) {
	window := weekdayWindow(1, 5)

	for _, date := range []string{"2025-06-07", "2025-06-08"} { // Saturday, Sunday
		slots, err := ComputeSlots(window, date, nil)
		require.NoError(t, err)
		assert.Empty(t, slots, date)
	}
}

func TestComputeSlotsWrappingWeekdayRange(t *testing.T) {
	// Friday through Monday.
	window := weekdayWindow(5, 1)

	working := []string{"2025-06-06", "2025-06-07", "2025-06-08", "2025-06-09"}
	for _, date := range working {
		slots, err := ComputeSlots(window, date, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, slots, date)
	}

	closed := []string{"2025-06-10", "2025-06-11", "2025-06-12"} // Tue-Thu
	for _, date := range closed {
		slots, err := ComputeSlots(window, date, nil)
		require.NoError(t, err)
		assert.Empty(t, slots, date)
	}
}

func TestComputeSlotsIncludesEndBoundary(t *testing.T) {
	window := WeeklyWindow{FromWeekday: 0, ToWeekday: 6, FromTime: "08:00", ToTime: "18:00", SlotMinutes: 60}

	slots, err := ComputeSlots(window, "2025-06-09", nil)
	require.NoError(t, err)
	require.Len(t, slots, 11)
	assert.Equal(t, "08:00", slots[0].Time)
	assert.Equal(t, "18:00", slots[len(slots)-1].Time)
}

func TestComputeSlotsEqualBoundsYieldSingleSlot(t *testing.T) {
	window := WeeklyWindow{FromWeekday: 0, ToWeekday: 6, FromTime: "09:00", ToTime: "09:00", SlotMinutes: 30}

	slots, err := ComputeSlots(window, "2025-06-09", nil)
	require.NoError(t, err)
	assert.Equal(t, []Slot{{Time: "09:00", Available: true}}, slots)
}

func TestComputeSlotsMarksConflictsWithoutRemoval(t *testing.T) {
	window := WeeklyWindow{FromWeekday: 1, ToWeekday: 5, FromTime: "08:00", ToTime: "18:00", SlotMinutes: 60}
	booked := []BookedSlot{
		{Date: "2025-06-09", Time: "09:00"},
		{Date: "2025-06-09", Time: "09:00:00"}, // duplicate with seconds collapses
		{Date: "2025-06-10", Time: "10:00"},    // other date is ignored
	}

	slots, err := ComputeSlots(window, "2025-06-09", booked)
	require.NoError(t, err)
	require.Len(t, slots, 11)

	unavailable := 0
	for _, slot := range slots {
		if !slot.Available {
			unavailable++
			assert.Equal(t, "09:00", slot.Time)
		}
	}
	assert.Equal(t, 1, unavailable)
}

func TestComputeSlotsTruncatesSecondsInWindow(t *testing.T) {
	window := WeeklyWindow{FromWeekday: 0, ToWeekday: 6, FromTime: "08:00:30", ToTime: "10:00:45", SlotMinutes: 60}

	slots, err := ComputeSlots(window, "2025-06-09", nil)
	require.NoError(t, err)
	assert.Equal(t, []Slot{
		{Time: "08:00", Available: true},
		{Time: "09:00", Available: true},
		{Time: "10:00", Available: true},
	}, slots)
}

func TestComputeSlotsIdempotent(t *testing.T) {
	window := weekdayWindow(1, 5)
	booked := []BookedSlot{{Date: "2025-06-09", Time: "10:00"}}

	first, err := ComputeSlots(window, "2025-06-09", booked)
	require.NoError(t, err)
	second, err := ComputeSlots(window, "2025-06-09", booked)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeSlotsRejectsInvalidConfig(t *testing.T) {
	base := weekdayWindow(1, 5)

	cases := []struct {
		name   string
		mutate func(*WeeklyWindow)
	}{
		{"weekday above range", func(w *WeeklyWindow) { w.FromWeekday = 8 }},
		{"negative weekday", func(w *WeeklyWindow) { w.ToWeekday = -1 }},
		{"zero interval", func(w *WeeklyWindow) { w.SlotMinutes = 0 }},
		{"negative interval", func(w *WeeklyWindow) { w.SlotMinutes = -15 }},
		{"malformed time", func(w *WeeklyWindow) { w.FromTime = "8am" }},
		{"hour out of range", func(w *WeeklyWindow) { w.ToTime = "25:00" }},
		{"inverted window", func(w *WeeklyWindow) { w.FromTime = "14:00"; w.ToTime = "09:00" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			window := base
			tc.mutate(&window)
			_, err := ComputeSlots(window, "2025-06-09", nil)
			require.Error(t, err)
			assert.True(t, IsInvalidConfig(err))
		})
	}
}

func TestComputeSlotsRejectsInvalidDate(t *testing.T) {
	_, err := ComputeSlots(weekdayWindow(1, 5), "2025-02-30", nil)
	require.Error(t, err)
	assert.True(t, IsInvalidDate(err))
}

func TestComputeRangeCoversEveryDay(t *testing.T) {
	window := weekdayWindow(1, 5)
	booked := []BookedSlot{{Date: "2025-06-09", Time: "08:00"}}

	days, err := ComputeRange(window, "2025-06-08", "2025-06-10", booked)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, "2025-06-08", days[0].Date)
	assert.Empty(t, days[0].Slots) // Sunday

	assert.Equal(t, "2025-06-09", days[1].Date)
	require.NotEmpty(t, days[1].Slots)
	assert.False(t, days[1].Slots[0].Available)

	assert.Equal(t, "2025-06-10", days[2].Date)
	assert.NotEmpty(t, days[2].Slots)
}

func TestComputeRangeRejectsInvertedRange(t *testing.T) {
	_, err := ComputeRange(weekdayWindow(1, 5), "2025-06-10", "2025-06-09", nil)
	require.Error(t, err)
	assert.True(t, IsInvalidDate(err))
}

func TestNormalizeClock(t *testing.T) {
	normalized, err := NormalizeClock("09:30:59")
	require.NoError(t, err)
	assert.Equal(t, "09:30", normalized)

	_, err = NormalizeClock("24:00")
	require.Error(t, err)
}

func TestValidateWindow(t *testing.T) {
	assert.NoError(t, ValidateWindow(weekdayWindow(1, 5)))
	assert.NoError(t, ValidateWindow(weekdayWindow(5, 1)))

	err := ValidateWindow(WeeklyWindow{FromWeekday: 1, ToWeekday: 5, FromTime: "16:00", ToTime: "08:00", SlotMinutes: 30})
	require.Error(t, err)
	assert.True(t, IsInvalidConfig(err))

	err = ValidateWindow(WeeklyWindow{FromWeekday: 7, ToWeekday: 5, FromTime: "08:00", ToTime: "16:00", SlotMinutes: 30})
	require.Error(t, err)
	assert.True(t, IsInvalidConfig(err))
}
