package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DayHours is the open window for one weekday, as offsets from midnight.
// The zero value means the day is closed.
type DayHours struct {
	Open  time.Duration
	Close time.Duration
}

func (d DayHours) Closed() bool {
	return d.Close <= d.Open
}

// WeeklyHours holds the business hours for each weekday, indexed by
// time.Weekday (Sunday = 0).
type WeeklyHours [7]DayHours

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekly builds weekly hours from a comma-separated list of
// day=HH:MM-HH:MM entries, e.g. "mon=09:00-18:00,tue=09:00-18:00,sun=closed".
// Days not mentioned are closed.
func ParseWeekly(raw string) (WeeklyHours, error) {
	var week WeeklyHours
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, window, ok := strings.Cut(part, "=")
		if !ok {
			return WeeklyHours{}, fmt.Errorf("invalid hours entry %q (want day=HH:MM-HH:MM)", part)
		}
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(day))]
		if !ok {
			return WeeklyHours{}, fmt.Errorf("unknown weekday %q", day)
		}
		window = strings.TrimSpace(window)
		if strings.EqualFold(window, "closed") {
			week[wd] = DayHours{}
			continue
		}
		openRaw, closeRaw, ok := strings.Cut(window, "-")
		if !ok {
			return WeeklyHours{}, fmt.Errorf("invalid hours window %q", window)
		}
		open, err := parseClock(openRaw)
		if err != nil {
			return WeeklyHours{}, fmt.Errorf("invalid open time in %q: %w", part, err)
		}
		close, err := parseClock(closeRaw)
		if err != nil {
			return WeeklyHours{}, fmt.Errorf("invalid close time in %q: %w", part, err)
		}
		if close <= open {
			return WeeklyHours{}, fmt.Errorf("close must be after open in %q", part)
		}
		week[wd] = DayHours{Open: open, Close: close}
	}
	return week, nil
}

// Window returns the concrete open/close instants for a calendar day.
// Closed days return ok=false.
func (w WeeklyHours) Window(day time.Time) (open, close time.Time, ok bool) {
	hours := w[day.Weekday()]
	if hours.Closed() {
		return time.Time{}, time.Time{}, false
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(hours.Open), midnight.Add(hours.Close), true
}

func parseClock(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
