package availability

import (
	"fmt"
	"strconv"
	"strings"
)

// WeeklyWindow is a doctor's recurring availability: an inclusive weekday
// range, a daily working window and the slot granularity. The weekday range
// may wrap (FromWeekday=5, ToWeekday=1 means Friday through Monday).
type WeeklyWindow struct {
	FromWeekday int    `json:"from_weekday"`
	ToWeekday   int    `json:"to_weekday"`
	FromTime    string `json:"from_time"`
	ToTime      string `json:"to_time"`
	SlotMinutes int    `json:"slot_minutes"`
}

// BookedSlot is an existing, non-cancelled appointment's date and start time.
// Callers filter out cancelled appointments before handing them to the engine.
type BookedSlot struct {
	Date string
	Time string
}

// Slot is one bookable start time on the requested day.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// ComputeSlots returns the ordered slot grid for targetDate, marking entries
// that collide with a booked slot as unavailable. A day outside the weekly
// window yields an empty, non-error result.
//
// The grid is inclusive of the end boundary: an 08:00-18:00 window with a
// 60 minute interval produces eleven slots, 08:00 through 18:00.
func ComputeSlots(window WeeklyWindow, targetDate string, booked []BookedSlot) ([]Slot, error) {
	day, err := ParseDate(targetDate)
	if err != nil {
		return nil, err
	}

	from, to, err := window.timeBounds()
	if err != nil {
		return nil, err
	}
	if err := validateWeekdays(window.FromWeekday, window.ToWeekday); err != nil {
		return nil, err
	}
	if window.SlotMinutes <= 0 {
		return nil, newError(KindInvalidConfig, fmt.Sprintf("slot interval must be positive, got %d", window.SlotMinutes), nil)
	}

	if !weekdayInRange(Weekday(day), window.FromWeekday, window.ToWeekday) {
		return []Slot{}, nil
	}

	occupied, err := occupiedTimes(booked, FormatDate(day))
	if err != nil {
		return nil, err
	}

	slots := make([]Slot, 0, (to-from)/window.SlotMinutes+1)
	for minute := from; minute <= to; minute += window.SlotMinutes {
		clock := formatMinutes(minute)
		_, taken := occupied[clock]
		slots = append(slots, Slot{Time: clock, Available: !taken})
	}
	return slots, nil
}

// ValidateWindow checks a weekly window without generating slots. Services
// call it before persisting doctor schedules.
func ValidateWindow(window WeeklyWindow) error {
	if _, _, err := window.timeBounds(); err != nil {
		return err
	}
	if err := validateWeekdays(window.FromWeekday, window.ToWeekday); err != nil {
		return err
	}
	if window.SlotMinutes <= 0 {
		return newError(KindInvalidConfig, fmt.Sprintf("slot interval must be positive, got %d", window.SlotMinutes), nil)
	}
	return nil
}

// DaySlots pairs a calendar date with its computed grid.
type DaySlots struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// ComputeRange evaluates every date from fromDate through toDate inclusive.
// Non-working days appear with an empty slot list so the caller can render a
// contiguous calendar.
func ComputeRange(window WeeklyWindow, fromDate, toDate string, booked []BookedSlot) ([]DaySlots, error) {
	start, err := ParseDate(fromDate)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(toDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, newError(KindInvalidDate, fmt.Sprintf("range end %s precedes start %s", toDate, fromDate), nil)
	}

	var days []DaySlots
	for cursor := start; !cursor.After(end); cursor = AddDays(cursor, 1) {
		date := FormatDate(cursor)
		slots, err := ComputeSlots(window, date, booked)
		if err != nil {
			return nil, err
		}
		days = append(days, DaySlots{Date: date, Slots: slots})
	}
	return days, nil
}

func (w WeeklyWindow) timeBounds() (int, int, error) {
	from, err := parseClock(w.FromTime)
	if err != nil {
		return 0, 0, err
	}
	to, err := parseClock(w.ToTime)
	if err != nil {
		return 0, 0, err
	}
	if from > to {
		return 0, 0, newError(KindInvalidConfig, fmt.Sprintf("window start %s is after end %s", w.FromTime, w.ToTime), nil)
	}
	return from, to, nil
}

func validateWeekdays(from, to int) error {
	if from < 0 || from > 6 || to < 0 || to > 6 {
		return newError(KindInvalidConfig, fmt.Sprintf("weekday indices must be 0-6, got from=%d to=%d", from, to), nil)
	}
	return nil
}

func weekdayInRange(weekday, from, to int) bool {
	if from <= to {
		return weekday >= from && weekday <= to
	}
	// Wrapping range, e.g. Friday..Monday: union of [from,6] and [0,to].
	return weekday >= from || weekday <= to
}

func occupiedTimes(booked []BookedSlot, date string) (map[string]struct{}, error) {
	occupied := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		if b.Date != date {
			continue
		}
		minute, err := parseClock(b.Time)
		if err != nil {
			return nil, err
		}
		occupied[formatMinutes(minute)] = struct{}{}
	}
	return occupied, nil
}

// parseClock converts "HH:MM" or "HH:MM:SS" to minutes since midnight.
// Seconds are truncated; comparisons run at minute granularity.
func parseClock(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, newError(KindInvalidConfig, fmt.Sprintf("invalid time %q: expected HH:MM", value), nil)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, newError(KindInvalidConfig, fmt.Sprintf("invalid hour in %q", value), err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, newError(KindInvalidConfig, fmt.Sprintf("invalid minute in %q", value), err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, newError(KindInvalidConfig, fmt.Sprintf("time %q out of range", value), nil)
	}
	return hour*60 + minute, nil
}

func formatMinutes(total int) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// NormalizeClock renders any accepted time string as canonical "HH:MM".
// Storage adapters use it to compare appointment times captured with seconds.
func NormalizeClock(value string) (string, error) {
	minute, err := parseClock(value)
	if err != nil {
		return "", err
	}
	return formatMinutes(minute), nil
}
