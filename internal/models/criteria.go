package models

import (
	"fmt"
	"strings"
	"time"
)

// DateRange is an inclusive date interval. A zero bound is open.
type DateRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// YearRange covers whole calendar years from..to inclusive. A zero year
// leaves that side open.
func YearRange(from, to int) DateRange {
	var r DateRange
	if from != 0 {
		r.Start = time.Date(from, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if to != 0 {
		r.End = time.Date(to, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return r
}

// Contains reports whether t falls inside the range. The end bound covers
// the whole end day.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(EndOfDay(r.End)) {
		return false
	}
	return true
}

// EndOfDay returns the first instant of the day after t.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// FilterCriteria is the user's selection of inclusion predicates.
// An empty value set allows every value.
type FilterCriteria struct {
	Subsystems []string  `json:"subsystems,omitempty"`
	Platforms  []string  `json:"platforms,omitempty"`
	Statuses   []string  `json:"statuses,omitempty"`
	Dates      DateRange `json:"dates"`
}

// WithSubsystems returns a copy with the subsystem set replaced.
func (c FilterCriteria) WithSubsystems(values ...string) FilterCriteria {
	c.Subsystems = cloneStrings(values)
	return c
}

// WithPlatforms returns a copy with the platform set replaced.
func (c FilterCriteria) WithPlatforms(values ...string) FilterCriteria {
	c.Platforms = cloneStrings(values)
	return c
}

// WithStatuses returns a copy with the status set replaced.
func (c FilterCriteria) WithStatuses(values ...string) FilterCriteria {
	c.Statuses = cloneStrings(values)
	return c
}

// WithDates returns a copy with the date range replaced.
func (c FilterCriteria) WithDates(r DateRange) FilterCriteria {
	c.Dates = r
	return c
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// SortOrder selects how a view is ordered by savings.
type SortOrder string

const (
	SortNone SortOrder = "none"
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder accepts "", none, asc and desc (any case).
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "asc":
		return SortAsc, nil
	case "desc":
		return SortDesc, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Query bundles everything needed to derive one view of the ideas.
type Query struct {
	Criteria FilterCriteria `json:"criteria"`
	Search   string         `json:"search,omitempty"`
	Sort     SortOrder      `json:"sort,omitempty"`
}

// GroupTotal is the savings sum of one group.
type GroupTotal struct {
	Value   string  `json:"value"`
	Savings float64 `json:"savings"`
}

// GroupCount is the number of ideas in one group.
type GroupCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// OptionCount pairs a distinct field value with its occurrence count.
type OptionCount = GroupCount

// Summary holds the derived statistics of a set of ideas.
type Summary struct {
	Count              int          `json:"count"`
	TotalSavings       float64      `json:"totalSavings"`
	MeanSavings        float64      `json:"meanSavings"`
	DistinctSubmitters int          `json:"distinctSubmitters"`
	BySubsystem        []GroupTotal `json:"bySubsystem"`
	ByStatus           []GroupCount `json:"byStatus"`
}
