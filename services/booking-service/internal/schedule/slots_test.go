package schedule

import (
	"testing"
	"time"
)

var testHours = DayHours{Open: 9 * time.Hour, Close: 18 * time.Hour}

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
}

func at(d time.Time, h, m int) time.Time {
	return d.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestCandidates(t *testing.T) {
	d := day(t)
	starts := Candidates(d, testHours, 30*time.Minute)
	// 09:00 .. 17:30, 30 minutes apart.
	if len(starts) != 18 {
		t.Fatalf("expected 18 candidates, got %d", len(starts))
	}
	if !starts[0].Equal(at(d, 9, 0)) {
		t.Fatalf("expected first candidate 09:00, got %s", starts[0])
	}
	if !starts[17].Equal(at(d, 17, 30)) {
		t.Fatalf("expected last candidate 17:30, got %s", starts[17])
	}
}

func TestCandidatesDropsTrailingRemainder(t *testing.T) {
	d := day(t)
	hours := DayHours{Open: 9 * time.Hour, Close: 10*time.Hour + 10*time.Minute}
	starts := Candidates(d, hours, 25*time.Minute)
	// 09:00, 09:25, 09:50; 10:15 would be past close.
	if len(starts) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(starts))
	}
	if !starts[2].Equal(at(d, 9, 50)) {
		t.Fatalf("expected last candidate 09:50, got %s", starts[2])
	}
}

func TestCandidatesClosedDay(t *testing.T) {
	if starts := Candidates(day(t), DayHours{}, 30*time.Minute); starts != nil {
		t.Fatalf("expected no candidates on a closed day, got %v", starts)
	}
}

func TestAvailableExcludesOverlapsAndKeepsBoundary(t *testing.T) {
	d := day(t)
	starts := Candidates(d, testHours, 30*time.Minute)
	busy := []Interval{{Start: at(d, 10, 0), End: at(d, 11, 0)}}

	free := Available(starts, 30*time.Minute, at(d, 18, 0), busy, d)

	want := map[string]bool{}
	for _, s := range free {
		want[s.Format("15:04")] = true
	}
	// 09:30 ends exactly at 10:00: half-open, no overlap.
	if !want["09:30"] {
		t.Fatal("expected 09:30 to be available (ends exactly at busy start)")
	}
	if want["10:00"] || want["10:30"] {
		t.Fatal("expected 10:00 and 10:30 to be excluded")
	}
	if !want["11:00"] {
		t.Fatal("expected availability to resume at 11:00")
	}
}

func TestAvailableDropsSlotsRunningPastClose(t *testing.T) {
	d := day(t)
	starts := Candidates(d, testHours, 30*time.Minute)
	free := Available(starts, 60*time.Minute, at(d, 18, 0), nil, d)
	last := free[len(free)-1]
	// A 60-minute booking must end by 18:00, so the last start is 17:00.
	if !last.Equal(at(d, 17, 0)) {
		t.Fatalf("expected last available start 17:00, got %s", last)
	}
}

func TestAvailableSkipsPastStarts(t *testing.T) {
	d := day(t)
	starts := Candidates(d, testHours, 30*time.Minute)
	now := at(d, 9, 31)
	free := Available(starts, 30*time.Minute, at(d, 18, 0), nil, now)
	if !free[0].Equal(at(d, 10, 0)) {
		t.Fatalf("expected first available start 10:00, got %s", free[0])
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	d := day(t)
	a := Interval{Start: at(d, 9, 0), End: at(d, 10, 0)}
	b := Interval{Start: at(d, 10, 0), End: at(d, 11, 0)}
	if a.Overlaps(b) || b.Overlaps(a) {
		t.Fatal("adjacent intervals must not overlap")
	}
	c := Interval{Start: at(d, 9, 59), End: at(d, 10, 30)}
	if !a.Overlaps(c) || !c.Overlaps(b) {
		t.Fatal("expected overlapping intervals to be detected")
	}
}

func TestParseWeekly(t *testing.T) {
	week, err := ParseWeekly("mon=09:00-18:00,tue=09:00-18:00,sat=10:00-16:00,sun=closed")
	if err != nil {
		t.Fatalf("ParseWeekly failed: %v", err)
	}
	if week[time.Monday].Closed() {
		t.Fatal("expected Monday to be open")
	}
	if week[time.Sunday] != (DayHours{}) {
		t.Fatal("expected Sunday to be closed")
	}
	if week[time.Wednesday] != (DayHours{}) {
		t.Fatal("expected unlisted Wednesday to be closed")
	}
	if week[time.Saturday].Open != 10*time.Hour {
		t.Fatalf("expected Saturday open at 10:00, got %s", week[time.Saturday].Open)
	}
}

func TestParseWeeklyRejectsBadEntries(t *testing.T) {
	for _, raw := range []string{"mon", "noday=09:00-18:00", "mon=18:00-09:00", "mon=9am-6pm"} {
		if _, err := ParseWeekly(raw); err == nil {
			t.Fatalf("expected ParseWeekly(%q) to fail", raw)
		}
	}
}
