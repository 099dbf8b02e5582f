package candidate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	meridiemClock = regexp.MustCompile(`^(\d{1,2})(?::?(\d{2}))?(am|pm)$`)
	secondsClock  = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})$`)
	plainClock    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	compactClock  = regexp.MustCompile(`^(\d{3,4})$`)

	isoDateTime = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[T\s](\d{2}:\d{2})(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?$`)
	anyDate     = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
	anyClock    = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}(?::\d{2})?\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm))`)

	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// ToHHMM normalizes a time-of-day to 24-hour HH:MM. It accepts "3pm",
// "3:30 PM", "1530", "15:30" and "15:30:45". Out-of-range values and
// anything else report false.
func ToHHMM(s string) (string, bool) {
	t := strings.Join(strings.Fields(strings.ToLower(s)), "")
	if t == "" {
		return "", false
	}

	if m := meridiemClock.FindStringSubmatch(t); m != nil {
		h, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		switch {
		case m[3] == "pm" && h != 12:
			h += 12
		case m[3] == "am" && h == 12:
			h = 0
		}
		return clock(h, minute)
	}
	if m := secondsClock.FindStringSubmatch(t); m != nil {
		return clockStrings(m[1], m[2])
	}
	if m := plainClock.FindStringSubmatch(t); m != nil {
		return clockStrings(m[1], m[2])
	}
	if m := compactClock.FindStringSubmatch(t); m != nil {
		raw := strings.Repeat("0", 4-len(m[1])) + m[1]
		return clockStrings(raw[:2], raw[2:])
	}
	return "", false
}

func clockStrings(hs, ms string) (string, bool) {
	h, _ := strconv.Atoi(hs)
	minute, _ := strconv.Atoi(ms)
	return clock(h, minute)
}

func clock(h, minute int) (string, bool) {
	if h < 0 || h > 23 || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, minute), true
}

// ExtractDateAndTime pulls a YYYY-MM-DD date and, when present, an HH:MM time
// out of a date-ish value such as "2025-11-01T15:00:00-04:00" or
// "Sat 2025-11-01 at 7pm". The time is local to the value; offsets are
// discarded. ok is false when no date is found.
func ExtractDateAndTime(value string) (date, hhmm string, ok bool) {
	t := strings.TrimSpace(value)
	if t == "" {
		return "", "", false
	}
	if m := isoDateTime.FindStringSubmatch(t); m != nil {
		hhmm, _ = ToHHMM(m[2])
		return m[1], hhmm, true
	}
	m := anyDate.FindStringSubmatch(t)
	if m == nil {
		return "", "", false
	}
	rest := strings.Replace(t, m[1], " ", 1)
	if tok := anyClock.FindString(rest); tok != "" {
		hhmm, _ = ToHHMM(tok)
	}
	return m[1], hhmm, true
}

// IsDate reports whether s is a YYYY-MM-DD string.
func IsDate(s string) bool { return datePattern.MatchString(s) }
