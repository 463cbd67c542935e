// Package internetdate parses the date strings found in feeds and remote
// lists: RFC 822 / RFC 1123 ("Wed, 13 Nov 2013 09:30:00 GMT") and RFC 3339
// ("2013-11-13T09:30:00Z") in their common variants.
package internetdate

import (
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// rfc822Layouts are tried in order. Weekday and seconds are optional, zones
// may be numeric or named, and years may have two digits.
var rfc822Layouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04 MST",
	"Mon, 2 Jan 06 15:04:05 -0700",
	"Mon, 2 Jan 06 15:04:05 MST",
	"2 Jan 06 15:04:05 -0700",
	"2 Jan 06 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05",
}

// rfc3339Layouts cover full timestamps with and without fractional seconds,
// the basic zone offset form, and a bare date.
var rfc3339Layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse interprets s as an internet date. Strings containing a "T" or
// starting with four digits are tried as RFC 3339 first.
// The result is in UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty string: %w", types.ErrInvalidDate)
	}

	first, second := rfc822Layouts, rfc3339Layouts
	if looksLikeRFC3339(s) {
		first, second = second, first
	}
	if t, ok := tryLayouts(s, first); ok {
		return t, nil
	}
	if t, ok := tryLayouts(s, second); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%q: %w", s, types.ErrInvalidDate)
}

// ParseRFC822 parses only the RFC 822 family.
func ParseRFC822(s string) (time.Time, error) {
	if t, ok := tryLayouts(strings.TrimSpace(s), rfc822Layouts); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%q is not RFC 822: %w", s, types.ErrInvalidDate)
}

// ParseRFC3339 parses only the RFC 3339 family.
func ParseRFC3339(s string) (time.Time, error) {
	if t, ok := tryLayouts(strings.TrimSpace(s), rfc3339Layouts); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%q is not RFC 3339: %w", s, types.ErrInvalidDate)
}

func looksLikeRFC3339(s string) bool {
	if len(s) < 4 {
		return false
	}
	for _, r := range s[:4] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func tryLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
