package schedule

import "time"

// Interval is a half-open time interval [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
// An interval ending exactly when another begins does not overlap it.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Candidates returns the slot start times for one day, spaced step apart,
// starting at the open instant and strictly before close. It is a pure
// function of its inputs: existing bookings and "now" are filtered later.
func Candidates(day time.Time, hours DayHours, step time.Duration) []time.Time {
	if step <= 0 || hours.Closed() {
		return nil
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	open := midnight.Add(hours.Open)
	close := midnight.Add(hours.Close)

	var starts []time.Time
	for t := open; t.Before(close); t = t.Add(step) {
		starts = append(starts, t)
	}
	return starts
}

// Available keeps the candidates where a booking of the given duration would
// start at or after now, end by closeAt, and not overlap any busy interval.
func Available(candidates []time.Time, duration time.Duration, closeAt time.Time, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 {
		return nil
	}
	var free []time.Time
	for _, start := range candidates {
		if start.Before(now) {
			continue
		}
		end := start.Add(duration)
		if end.After(closeAt) {
			continue
		}
		if overlapsAny(Interval{Start: start, End: end}, busy) {
			continue
		}
		free = append(free, start)
	}
	return free
}

func overlapsAny(slot Interval, busy []Interval) bool {
	for _, b := range busy {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}
