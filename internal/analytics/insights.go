package analytics

import (
	"fmt"
	"slices"
	"sort"

	"github.com/gauravmishra2744/Awaaj/internal/models"
)

// scoreBucketWidth splits the 0-100 priority scale into five buckets.
const scoreBucketWidth = 20

// locationInsightLimit caps the number of areas returned.
const locationInsightLimit = 10

// ClassificationStats summarizes classifier confidence over classified issues.
// Issues with zero confidence fell back to the default category and are not counted.
type ClassificationStats struct {
	Total         int      `json:"totalClassified"`
	AvgConfidence *float64 `json:"avgConfidence"`
	MinConfidence *float64 `json:"minConfidence"`
	MaxConfidence *float64 `json:"maxConfidence"`
}

// ScoreBucket counts scored issues with Min <= score <= Max.
type ScoreBucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// AIPerformance reports how the AI enrichment has been behaving.
type AIPerformance struct {
	Classification       ClassificationStats `json:"classification"`
	PriorityDistribution []ScoreBucket        `json:"priorityDistribution"`
	Unscored             int                  `json:"unscored"`
}

// Performance computes classifier confidence stats and the priority score histogram.
func Performance(issues []*models.Issue) *AIPerformance {
	p := &AIPerformance{}
	for lo := 0; lo < 100; lo += scoreBucketWidth {
		hi := lo + scoreBucketWidth - 1
		if lo+scoreBucketWidth == 100 {
			hi = 100
		}
		p.PriorityDistribution = append(p.PriorityDistribution, ScoreBucket{
			Label: fmt.Sprintf("%d-%d", lo, hi),
			Min:   lo,
			Max:   hi,
		})
	}

	var sum, lo, hi float64
	for _, is := range issues {
		if c := is.CategoryConfidence; c > 0 {
			if p.Classification.Total == 0 || c < lo {
				lo = c
			}
			if p.Classification.Total == 0 || c > hi {
				hi = c
			}
			sum += c
			p.Classification.Total++
		}

		if is.PriorityScore == nil {
			p.Unscored++
			continue
		}
		idx := *is.PriorityScore / scoreBucketWidth
		idx = max(0, min(idx, len(p.PriorityDistribution)-1))
		p.PriorityDistribution[idx].Count++
	}

	if n := p.Classification.Total; n > 0 {
		avg := round2(sum / float64(n))
		p.Classification.AvgConfidence = &avg
		p.Classification.MinConfidence = &lo
		p.Classification.MaxConfidence = &hi
	}
	return p
}

// LocationInsight groups issues reported in one ward of one city.
type LocationInsight struct {
	Ward        string   `json:"ward"`
	City        string   `json:"city"`
	IssueCount  int      `json:"issueCount"`
	AvgPriority *float64 `json:"avgPriority"`
	Categories  []string `json:"categories"`
}

// LocationInsights groups issues by ward and city, busiest areas first, and
// returns at most ten areas. Issues without a ward or city are left out.
func LocationInsights(issues []*models.Issue) []LocationInsight {
	type acc struct {
		insight     LocationInsight
		sum, scored int
	}
	areas := map[[2]string]*acc{}
	for _, is := range issues {
		if is.Location == nil || (is.Location.Ward == "" && is.Location.City == "") {
			continue
		}
		key := [2]string{is.Location.Ward, is.Location.City}
		a := areas[key]
		if a == nil {
			a = &acc{insight: LocationInsight{Ward: key[0], City: key[1], Categories: []string{}}}
			areas[key] = a
		}
		a.insight.IssueCount++
		if !slices.Contains(a.insight.Categories, is.Category) {
			a.insight.Categories = append(a.insight.Categories, is.Category)
		}
		if is.PriorityScore != nil {
			a.sum += *is.PriorityScore
			a.scored++
		}
	}

	out := make([]LocationInsight, 0, len(areas))
	for _, a := range areas {
		if a.scored > 0 {
			avg := round2(float64(a.sum) / float64(a.scored))
			a.insight.AvgPriority = &avg
		}
		sort.Strings(a.insight.Categories)
		out = append(out, a.insight)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssueCount != out[j].IssueCount {
			return out[i].IssueCount > out[j].IssueCount
		}
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		return out[i].Ward < out[j].Ward
	})
	if len(out) > locationInsightLimit {
		out = out[:locationInsightLimit]
	}
	return out
}
