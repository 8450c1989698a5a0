package parser

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	errNotPositive = errors.New("savings must be greater than zero")
	errNotNumber   = errors.New("savings is not a plain decimal number")
	errBadDate     = errors.New("unrecognized date")
)

// plainNumber is decimal notation with an optional exponent. It keeps out
// the Go literal forms strconv also takes: underscores, hex, inf and nan.
var plainNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// parseSavings converts a string like "$1,234.56" to a float64. Only "$" and
// "," are stripped; anything else that is not a plain number fails.
func parseSavings(s string) (float64, error) {
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if !plainNumber.MatchString(s) {
		return 0, errNotNumber
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, errNotPositive
	}
	return v, nil
}

// Layouts tried in order by parseDate.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/06",
	"1-2-2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"Mon Jan 2 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006",
}

// spaceRun collapses the internal whitespace of a date cell.
var spaceRun = regexp.MustCompile(`\s+`)

// parseDate reads a submit date written in any of the common spreadsheet
// forms. The result is in UTC; date-only values land on midnight.
func parseDate(s string) (time.Time, error) {
	s = spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return time.Time{}, errBadDate
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errBadDate
}
