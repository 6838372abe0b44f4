package core

import (
	"fmt"
	"time"
)

// Window is an inclusive range of calendar days.
type Window struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewWindow returns a window from start to end, both inclusive.
func NewWindow(start, end Date) (Window, error) {
	if start.IsZero() || end.IsZero() {
		return Window{}, fmt.Errorf("%w: window bounds are required", ErrInvalidDate)
	}
	if end.Before(start.Time) {
		return Window{}, fmt.Errorf("%w: window end %s before start %s", ErrInvalidDate, end, start)
	}
	return Window{Start: start, End: end}, nil
}

// MonthWindow covers the whole calendar month.
func MonthWindow(year int, month time.Month) Window {
	start := NewDate(year, int(month), 1)
	end := Date{Time: start.AddDate(0, 1, -1)}
	return Window{Start: start, End: end}
}

// TrailingMonths spans from the first day of the month n months before now
// to the last day of now's month.
func TrailingMonths(now time.Time, n int) Window {
	y, m, _ := now.Date()
	first := NewDate(y, int(m), 1)
	start := Date{Time: first.AddDate(0, -n, 0)}
	end := Date{Time: first.AddDate(0, 1, -1)}
	return Window{Start: start, End: end}
}

// Contains reports whether d falls within the window.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start.Time) && !d.After(w.End.Time)
}

// Key is a stable identifier for caching.
func (w Window) Key() string {
	return w.Start.String() + ".." + w.End.String()
}
