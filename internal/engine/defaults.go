package engine

import (
	"github.com/insightdelivered/ideabank/internal/models"
	"github.com/insightdelivered/ideabank/internal/parser"
)

// DefaultCriteria derives the initial selection right after a dataset is
// loaded. The date range spans the earliest to the latest idea. Statuses
// named in excluded (compared after normalization) are left out of the
// status selection. With nothing excluded, or everything excluded, the
// status selection stays open.
func DefaultCriteria(all []models.Idea, excluded ...string) models.FilterCriteria {
	var c models.FilterCriteria
	if len(all) == 0 {
		return c
	}

	first, last := all[0].Date, all[0].Date
	for _, idea := range all[1:] {
		if idea.Date.Before(first) {
			first = idea.Date
		}
		if idea.Date.After(last) {
			last = idea.Date
		}
	}
	c.Dates = models.DateRange{Start: first, End: last}

	if len(excluded) == 0 {
		return c
	}
	skip := make(valueSet, len(excluded))
	for _, s := range excluded {
		skip[parser.Normalize(s)] = struct{}{}
	}
	for _, opt := range GroupCounts(all, models.FieldStatus) {
		if _, drop := skip[opt.Value]; !drop {
			c.Statuses = append(c.Statuses, opt.Value)
		}
	}
	return c
}
