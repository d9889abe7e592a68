package normalizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when no known pattern parses a date.
var ErrInvalidDate = errors.New("invalid date")

// SpanishShortDate is the "15 ene 2024" layout used by wallet statements.
const SpanishShortDate = "d MMM yyyy"

// DefaultDatePatterns are tried, in order, after any caller override.
var DefaultDatePatterns = []string{
	"dd/MM/yyyy",
	"dd-MM-yyyy",
	"yyyy-MM-dd",
	"MM/dd/yyyy",
	SpanishShortDate,
	"yyyy-MM-dd HH:mm:ss",
	"yyyy-MM-dd'T'HH:mm:ss",
	"dd/MM/yyyy HH:mm:ss",
	"dd/MM/yyyy HH:mm",
	time.RFC3339,
}

var spanishMonths = map[string]time.Month{
	"ene": time.January, "jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April, "apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August, "aug": time.August,
	"sep": time.September, "set": time.September,
	"oct": time.October,
	"nov": time.November,
	"dic": time.December, "dec": time.December,
}

var spanishAbbrev = [...]string{"", "ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// ParseDate tries the override patterns first, then DefaultDatePatterns.
// Patterns use the dd/MM/yyyy notation; Go reference layouts are accepted
// too. The first pattern that parses wins.
func ParseDate(raw string, overrides ...string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}

	patterns := make([]string, 0, len(overrides)+len(DefaultDatePatterns))
	for _, o := range overrides {
		if strings.TrimSpace(o) != "" {
			patterns = append(patterns, o)
		}
	}
	patterns = append(patterns, DefaultDatePatterns...)

	for _, p := range patterns {
		if t, ok := parseWith(value, p); ok {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// FormatDate renders t with a pattern accepted by ParseDate.
func FormatDate(t time.Time, pattern string) string {
	if pattern == SpanishShortDate {
		return fmt.Sprintf("%d %s %d", t.Day(), spanishAbbrev[t.Month()], t.Year())
	}
	return t.Format(goLayout(pattern, false))
}

// WithClock sets the time of day on a date from "HH:mm" or "HH:mm:ss".
// A blank clock leaves the date at midnight.
func WithClock(date time.Time, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return date, nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if c, err := time.Parse(layout, clock); err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC), nil
		}
	}
	return date, fmt.Errorf("%w: time %q", ErrInvalidDate, clock)
}

func parseWith(value, pattern string) (time.Time, bool) {
	if pattern == SpanishShortDate {
		return parseSpanishShort(value)
	}
	t, err := time.Parse(goLayout(pattern, true), value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseSpanishShort(value string) (time.Time, bool) {
	fields := strings.Fields(Fold(value))
	if len(fields) != 3 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return time.Time{}, false
	}
	name := strings.TrimSuffix(fields[1], ".")
	if len(name) > 3 {
		name = name[:3]
	}
	month, ok := spanishMonths[name]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil || year < 1000 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// goLayout converts a dd/MM/yyyy style pattern into a Go reference layout.
// Lenient layouts accept one or two digit days and months.
func goLayout(pattern string, lenient bool) string {
	if strings.Contains(pattern, "2006") {
		return pattern
	}

	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		c := runes[i]
		if c == '\'' {
			end := i + 1
			for end < len(runes) && runes[end] != '\'' {
				end++
			}
			b.WriteString(string(runes[i+1 : min(end, len(runes))]))
			i = end + 1
			continue
		}

		j := i
		for j < len(runes) && runes[j] == c {
			j++
		}
		n := j - i
		i = j

		switch c {
		case 'y', 'u', 'Y':
			if n == 2 {
				b.WriteString("06")
			} else {
				b.WriteString("2006")
			}
		case 'M':
			switch {
			case n >= 4:
				b.WriteString("January")
			case n == 3:
				b.WriteString("Jan")
			case n == 2 && !lenient:
				b.WriteString("01")
			default:
				b.WriteString("1")
			}
		case 'd', 'D':
			if n == 2 && !lenient {
				b.WriteString("02")
			} else {
				b.WriteString("2")
			}
		case 'H':
			b.WriteString("15")
		case 'm':
			b.WriteString("04")
		case 's':
			b.WriteString("05")
		default:
			b.WriteString(strings.Repeat(string(c), n))
		}
	}
	return b.String()
}
