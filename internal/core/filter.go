package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilterKind tags the DateFilter variants.
type FilterKind string

const (
	FilterToday  FilterKind = "today"
	FilterLastN  FilterKind = "last"
	FilterAll    FilterKind = "all"
	FilterCustom FilterKind = "custom"
)

// DefaultLastDays is the window of the "week" filter and of the report screen.
const DefaultLastDays = 7

const dayLayout = "2006-01-02"

// DateFilter is the browsing scope selected by the user. Build values with
// Today, LastNDays, AllTime or CustomRange.
type DateFilter struct {
	Kind  FilterKind
	Days  int       // FilterLastN only
	Start time.Time // FilterCustom only
	End   time.Time // FilterCustom only
}

// Range is a closed timestamp interval [Start, End].
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the range, bounds included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

func Today() DateFilter { return DateFilter{Kind: FilterToday} }

func LastNDays(n int) DateFilter { return DateFilter{Kind: FilterLastN, Days: n} }

func AllTime() DateFilter { return DateFilter{Kind: FilterAll} }

func CustomRange(start, end time.Time) DateFilter {
	return DateFilter{Kind: FilterCustom, Start: start, End: end}
}

// Midnight truncates t to the start of its day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Resolve turns the filter into a concrete interval relative to now. The
// second result is false for AllTime, which applies no range predicate.
func (f DateFilter) Resolve(now time.Time) (Range, bool) {
	switch f.Kind {
	case FilterToday:
		start := Midnight(now)
		y, m, d := start.Date()
		return Range{Start: start, End: time.Date(y, m, d, 23, 59, 59, 0, start.Location())}, true
	case FilterLastN:
		return Range{Start: now.AddDate(0, 0, -f.Days), End: now}, true
	case FilterCustom:
		y, m, d := f.End.Date()
		return Range{Start: f.Start, End: time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), f.End.Location())}, true
	default:
		return Range{}, false
	}
}

// RangePtr is Resolve in the shape the store ports take: nil means unbounded.
func (f DateFilter) RangePtr(now time.Time) *Range {
	r, ok := f.Resolve(now)
	if !ok {
		return nil
	}
	return &r
}

// Title is the heading shown above a filtered list.
func (f DateFilter) Title() string {
	switch f.Kind {
	case FilterToday:
		return "Today's Expenses"
	case FilterLastN:
		return fmt.Sprintf("Last %d Days", f.Days)
	case FilterCustom:
		return f.Start.Format("Jan 02") + " - " + f.End.Format("Jan 02")
	default:
		return "All Expenses"
	}
}

// String is the query-string form accepted by ParseDateFilter.
func (f DateFilter) String() string {
	switch f.Kind {
	case FilterToday, FilterAll:
		return string(f.Kind)
	case FilterLastN:
		if f.Days == DefaultLastDays {
			return "week"
		}
		return "last:" + strconv.Itoa(f.Days)
	case FilterCustom:
		return "custom:" + f.Start.Format(dayLayout) + ":" + f.End.Format(dayLayout)
	default:
		return string(f.Kind)
	}
}

func (f DateFilter) Validate() error {
	switch f.Kind {
	case FilterToday, FilterAll:
		return nil
	case FilterLastN:
		if f.Days < 1 {
			return invalid("filter", fmt.Errorf("%w: days must be positive", ErrInvalidFilter))
		}
		return nil
	case FilterCustom:
		if f.Start.IsZero() || f.End.IsZero() {
			return invalid("filter", fmt.Errorf("%w: custom range needs start and end", ErrInvalidFilter))
		}
		if f.End.Before(f.Start) {
			return invalid("filter", fmt.Errorf("%w: end before start", ErrInvalidFilter))
		}
		return nil
	default:
		return invalid("filter", fmt.Errorf("%w: unknown kind %q", ErrInvalidFilter, f.Kind))
	}
}

// ParseDateFilter parses the filter names used by the HTTP UI and the CLI:
// "today", "week", "all", "last:N" and "custom" with YYYY-MM-DD bounds.
// The compact form "custom:START:END" is accepted as well. An empty kind
// means today.
func ParseDateFilter(kind, start, end string, loc *time.Location) (DateFilter, error) {
	if loc == nil {
		loc = time.Local
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	if strings.HasPrefix(kind, "custom:") {
		parts := strings.Split(kind, ":")
		if len(parts) != 3 {
			return DateFilter{}, invalid("filter", fmt.Errorf("%w: %q", ErrInvalidFilter, kind))
		}
		kind, start, end = "custom", parts[1], parts[2]
	}

	var f DateFilter
	switch {
	case kind == "" || kind == "today":
		f = Today()
	case kind == "week":
		f = LastNDays(DefaultLastDays)
	case kind == "all":
		f = AllTime()
	case strings.HasPrefix(kind, "last:"):
		n, err := strconv.Atoi(strings.TrimPrefix(kind, "last:"))
		if err != nil {
			return DateFilter{}, invalid("filter", fmt.Errorf("%w: %q", ErrInvalidFilter, kind))
		}
		f = LastNDays(n)
	case kind == "custom":
		s, err := time.ParseInLocation(dayLayout, strings.TrimSpace(start), loc)
		if err != nil {
			return DateFilter{}, invalid("filter", fmt.Errorf("%w: start %q", ErrInvalidFilter, start))
		}
		e, err := time.ParseInLocation(dayLayout, strings.TrimSpace(end), loc)
		if err != nil {
			return DateFilter{}, invalid("filter", fmt.Errorf("%w: end %q", ErrInvalidFilter, end))
		}
		f = CustomRange(s, e)
	default:
		return DateFilter{}, invalid("filter", fmt.Errorf("%w: unknown kind %q", ErrInvalidFilter, kind))
	}
	if err := f.Validate(); err != nil {
		return DateFilter{}, err
	}
	return f, nil
}

// EntryDay places an expense entered for a YYYY-MM-DD day at now's time
// of day in loc. An empty value means now.
func EntryDay(value string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return now, nil
	}
	d, err := time.ParseInLocation(dayLayout, value, loc)
	if err != nil {
		return time.Time{}, invalid("date", fmt.Errorf("%w: %q", ErrInvalidDate, value))
	}
	n := now.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), n.Hour(), n.Minute(), n.Second(), 0, loc), nil
}
