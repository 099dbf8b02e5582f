package search

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/internal/model"
)

const (
	// DefaultTimedWindow applies when a date and a time-of-day are given.
	DefaultTimedWindow = 180 * time.Minute
	// DefaultDayWindow applies when only a date is given.
	DefaultDayWindow = 24 * time.Hour
)

// WindowInput carries the raw time parameters of a search request.
type WindowInput struct {
	StartTime     string  // ISO 8601 instant
	EndTime       string  // ISO 8601 instant, or a time-of-day when Date is used
	Date          string  // YYYY-MM-DD
	Time          string  // HH:MM[:SS][Z|±HH:MM]
	EndDate       string  // YYYY-MM-DD
	WindowMinutes float64 // overrides the implicit window length when > 0
}

// Window is a resolved search window in epoch seconds. A side is bounded
// only when its Has flag is set, so epoch 0 is a valid bound.
type Window struct {
	Start    int64
	End      int64
	HasStart bool
	HasEnd   bool
}

// Between returns a window bounded on both sides.
func Between(start, end int64) Window {
	return Window{Start: start, End: end, HasStart: true, HasEnd: true}
}

// Bounded reports whether either side is set.
func (w Window) Bounded() bool { return w.HasStart || w.HasEnd }

// Contains reports whether an event spanning [start, end] overlaps the window.
// A window with only an end keeps events starting at or before it.
func (w Window) Contains(start, end int64) bool {
	if w.HasStart && end < w.Start {
		return false
	}
	if w.HasEnd && start > w.End {
		return false
	}
	return true
}

// cellBounds returns the window as store overlap bounds.
func (w Window) cellBounds() (start, end *int64) {
	if w.HasStart {
		s := w.Start
		start = &s
	}
	if w.HasEnd {
		e := w.End
		end = &e
	}
	return start, end
}

// TimeRange renders the window for the search response, nil when unbounded.
func (w Window) TimeRange() *model.TimeRange {
	if !w.Bounded() {
		return nil
	}
	tr := &model.TimeRange{}
	if w.HasStart {
		tr.Start = formatEpoch(w.Start)
	}
	if w.HasEnd {
		tr.End = formatEpoch(w.End)
	}
	return tr
}

func formatEpoch(sec int64) string {
	return time.Unix(sec, 0).UTC().Format("2006-01-02T15:04:05.000Z")
}

var (
	datePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockPattern  = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
	offsetPattern = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?(Z|[+-]\d{2}:\d{2})$`)
)

// isoLayouts are tried in order for explicit instants. Layouts without an
// offset are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseISO reads an ISO-8601 timestamp or date. Forms without an offset are
// UTC.
func ParseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// combineDateTime joins a YYYY-MM-DD date with an optional time-of-day.
// The time defaults to midnight and to UTC when it carries no offset.
func combineDateTime(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	if !datePattern.MatchString(date) {
		return time.Time{}, false
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = "00:00"
	}
	switch {
	case clockPattern.MatchString(clock):
		if len(clock) == 5 {
			clock += ":00"
		}
		clock += "Z"
	case offsetPattern.MatchString(clock):
		if clock[5] != ':' {
			clock = clock[:5] + ":00" + clock[5:]
		}
	default:
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, date+"T"+clock)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ResolveWindow turns request parameters into a search window. Explicit
// instants take precedence. Otherwise a date (with optional time-of-day)
// starts the window, which ends at EndDate/EndTime when given, else after
// WindowMinutes, else after 3 hours when a time was given or 24 hours when
// not. No parameters yield an unbounded window.
func ResolveWindow(in WindowInput) (Window, error) {
	var w Window

	if strings.TrimSpace(in.StartTime) != "" {
		t, ok := ParseISO(in.StartTime)
		if !ok {
			return Window{}, eris.Wrapf(model.ErrInvalidTimeRange, "startTime %q must be ISO 8601", in.StartTime)
		}
		w.Start, w.HasStart = t.Unix(), true
	}
	if t, ok := ParseISO(in.EndTime); ok {
		w.End, w.HasEnd = t.Unix(), true
	}
	if w.Bounded() {
		if w.HasStart && w.HasEnd && w.End < w.Start {
			return Window{}, eris.Wrap(model.ErrInvalidTimeRange, "endTime must be after startTime")
		}
		return w, nil
	}

	if strings.TrimSpace(in.Date) == "" {
		return Window{}, nil
	}

	start, ok := combineDateTime(in.Date, in.Time)
	if !ok {
		return Window{}, eris.Wrap(model.ErrInvalidTimeRange, "date must be YYYY-MM-DD and time must be HH:mm (optional)")
	}

	hasTime := strings.TrimSpace(in.Time) != ""
	endClock := strings.TrimSpace(in.EndTime)
	var end time.Time
	if strings.TrimSpace(in.EndDate) != "" || endClock != "" {
		endDate := in.EndDate
		if strings.TrimSpace(endDate) == "" {
			endDate = in.Date
		}
		if endClock == "" {
			endClock = "23:59:59"
			if hasTime {
				endClock = in.Time
			}
		}
		end, ok = combineDateTime(endDate, endClock)
		if !ok {
			return Window{}, eris.Wrap(model.ErrInvalidTimeRange, "endDate or endTime could not be parsed")
		}
	} else {
		length := DefaultDayWindow
		if hasTime {
			length = DefaultTimedWindow
		}
		if in.WindowMinutes > 0 {
			length = time.Duration(in.WindowMinutes * float64(time.Minute))
		}
		end = start.Add(length)
	}

	if end.Before(start) {
		return Window{}, eris.Wrap(model.ErrInvalidTimeRange, "the end of the range must be after the start of the range")
	}
	return Between(start.Unix(), end.Unix()), nil
}
