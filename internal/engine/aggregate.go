package engine

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/insightdelivered/ideabank/internal/models"
)

// Summarize computes the headline statistics of ideas. BySubsystem keeps the
// topN largest savings groups; topN <= 0 keeps all of them.
func Summarize(ideas []models.Idea, topN int) models.Summary {
	s := models.Summary{
		Count:       len(ideas),
		BySubsystem: GroupSavings(ideas, models.FieldSubsystem, topN),
		ByStatus:    GroupCounts(ideas, models.FieldStatus),
	}
	if len(ideas) == 0 {
		return s
	}

	savings := make(stats.Float64Data, len(ideas))
	submitters := make(map[string]struct{})
	for i, idea := range ideas {
		savings[i] = idea.Savings
		submitters[idea.Submitter] = struct{}{}
	}

	// Both only fail on empty input, which is handled above.
	s.TotalSavings, _ = stats.Sum(savings)
	s.MeanSavings, _ = stats.Mean(savings)
	s.DistinctSubmitters = len(submitters)
	return s
}

// GroupSavings sums savings per distinct field value, largest first.
func GroupSavings(ideas []models.Idea, field models.Field, topN int) []models.GroupTotal {
	index := make(map[string]int)
	groups := []models.GroupTotal{}
	for _, idea := range ideas {
		v := idea.Value(field)
		i, ok := index[v]
		if !ok {
			i = len(groups)
			index[v] = i
			groups = append(groups, models.GroupTotal{Value: v})
		}
		groups[i].Savings += idea.Savings
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Savings > groups[j].Savings })
	if topN > 0 && len(groups) > topN {
		groups = groups[:topN]
	}
	return groups
}

// GroupCounts counts ideas per distinct field value, most frequent first.
// Equal counts keep first-appearance order.
func GroupCounts(ideas []models.Idea, field models.Field) []models.GroupCount {
	index := make(map[string]int)
	groups := []models.GroupCount{}
	for _, idea := range ideas {
		v := idea.Value(field)
		i, ok := index[v]
		if !ok {
			i = len(groups)
			index[v] = i
			groups = append(groups, models.GroupCount{Value: v})
		}
		groups[i].Count++
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Count > groups[j].Count })
	return groups
}

// Options lists the selectable values of field with their counts. Pass the
// full dataset, not a filtered view, so every value stays selectable.
func Options(all []models.Idea, field models.Field) []models.OptionCount {
	return GroupCounts(all, field)
}
