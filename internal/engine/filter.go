// Package engine derives filtered, searched, sorted and aggregated views over
// a parsed idea list. Every function returns fresh slices and leaves its input
// untouched, so one parsed list can back any number of views.
package engine

import (
	"sort"
	"strings"

	"github.com/insightdelivered/ideabank/internal/models"
)

// valueSet is an allow-list; a nil set allows everything.
type valueSet map[string]struct{}

func newValueSet(values []string) valueSet {
	if len(values) == 0 {
		return nil
	}
	s := make(valueSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s valueSet) allows(v string) bool {
	if s == nil {
		return true
	}
	_, ok := s[v]
	return ok
}

// Filter returns the ideas matching every predicate of c.
func Filter(ideas []models.Idea, c models.FilterCriteria) []models.Idea {
	subsystems := newValueSet(c.Subsystems)
	platforms := newValueSet(c.Platforms)
	statuses := newValueSet(c.Statuses)

	out := make([]models.Idea, 0, len(ideas))
	for _, idea := range ideas {
		if !c.Dates.Contains(idea.Date) ||
			!subsystems.allows(idea.Subsystem) ||
			!platforms.allows(idea.Platform) ||
			!statuses.allows(idea.Status) {
			continue
		}
		out = append(out, idea)
	}
	return out
}

// Search keeps the ideas whose id, title, submitter, subsystem or platform
// contains query, ignoring case. A blank query keeps everything.
func Search(ideas []models.Idea, query string) []models.Idea {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Idea, 0, len(ideas))
	for _, idea := range ideas {
		if q == "" || matches(idea, q) {
			out = append(out, idea)
		}
	}
	return out
}

func matches(idea models.Idea, q string) bool {
	for _, v := range []string{idea.ID, idea.Title, idea.Submitter, idea.Subsystem, idea.Platform} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// Sort orders a copy of ideas by savings. Ties keep their relative order.
func Sort(ideas []models.Idea, order models.SortOrder) []models.Idea {
	out := make([]models.Idea, len(ideas))
	copy(out, ideas)

	switch order {
	case models.SortAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Savings < out[j].Savings })
	case models.SortDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Savings > out[j].Savings })
	}
	return out
}

// Apply runs Filter, Search and Sort in that order.
func Apply(ideas []models.Idea, q models.Query) []models.Idea {
	return Sort(Search(Filter(ideas, q.Criteria), q.Search), q.Sort)
}
