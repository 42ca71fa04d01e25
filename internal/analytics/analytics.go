// Package analytics aggregates stored issues into dashboard metrics.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/gauravmishra2744/Awaaj/internal/lifecycle"
	"github.com/gauravmishra2744/Awaaj/internal/models"
)

// trendWindow is how far back daily category trends reach.
const trendWindow = 30 * 24 * time.Hour

// recentHighLimit caps the recent high-priority list.
const recentHighLimit = 5

// CategoryStat counts issues in one category.
type CategoryStat struct {
	Category      string  `json:"category"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avgConfidence"`
}

// PriorityStat counts issues at one priority level.
type PriorityStat struct {
	Level    models.PriorityLevel `json:"level"`
	Count    int                  `json:"count"`
	AvgScore *float64             `json:"avgScore"`
}

// StatusStat counts issues in one status.
type StatusStat struct {
	Status models.IssueStatus `json:"status"`
	Count  int                `json:"count"`
}

// SLAMetrics counts issues against their deadlines.
type SLAMetrics struct {
	OnTime  int `json:"onTime"`
	AtRisk  int `json:"atRisk"`
	Overdue int `json:"overdue"`
}

// PriorityMetrics summarizes scored issues. Nil fields mean no issue has a score.
type PriorityMetrics struct {
	AvgScore *float64 `json:"avgScore"`
	MinScore *int     `json:"minScore"`
	MaxScore *int     `json:"maxScore"`
	Scored   int      `json:"scored"`
}

// IssueSummary is a compact issue view.
type IssueSummary struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Category      string               `json:"category"`
	PriorityScore *int                 `json:"priorityScore,omitempty"`
	PriorityLevel models.PriorityLevel `json:"priorityLevel"`
	CreatedAt     time.Time            `json:"createdAt"`
}

// TrendPoint counts issues filed in a category on one day.
type TrendPoint struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Overview is the dashboard aggregation.
type Overview struct {
	TotalIssues        int             `json:"totalIssues"`
	ByCategory         []CategoryStat  `json:"byCategory"`
	ByPriority         []PriorityStat  `json:"byPriority"`
	ByStatus           []StatusStat    `json:"byStatus"`
	SLAMetrics         SLAMetrics      `json:"slaMetrics"`
	PriorityMetrics    PriorityMetrics `json:"priorityMetrics"`
	HighPriorityRecent []IssueSummary  `json:"highPriorityRecent"`
	Trends             []TrendPoint    `json:"trends"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}

// Summarize computes the overview of issues as of now.
func Summarize(issues []*models.Issue, now time.Time) *Overview {
	o := &Overview{
		TotalIssues:        len(issues),
		ByCategory:         []CategoryStat{},
		ByPriority:         []PriorityStat{},
		ByStatus:           []StatusStat{},
		HighPriorityRecent: []IssueSummary{},
		Trends:             []TrendPoint{},
		GeneratedAt:        now,
	}

	type catAcc struct {
		count int
		conf  float64
	}
	type prioAcc struct {
		count, scored, sum int
	}
	cats := map[string]*catAcc{}
	prios := map[models.PriorityLevel]*prioAcc{}
	statuses := map[models.IssueStatus]int{}
	trends := map[[2]string]int{}

	var scoreSum, scored int
	var minScore, maxScore int
	var high []*models.Issue

	for _, is := range issues {
		c := cats[is.Category]
		if c == nil {
			c = &catAcc{}
			cats[is.Category] = c
		}
		c.count++
		c.conf += is.CategoryConfidence

		p := prios[is.PriorityLevel]
		if p == nil {
			p = &prioAcc{}
			prios[is.PriorityLevel] = p
		}
		p.count++

		statuses[is.Status]++

		if s := is.PriorityScore; s != nil {
			p.scored++
			p.sum += *s
			if scored == 0 || *s < minScore {
				minScore = *s
			}
			if scored == 0 || *s > maxScore {
				maxScore = *s
			}
			scored++
			scoreSum += *s
		}

		switch lifecycle.SLAStatusAt(is, now) {
		case models.SLAOverdue:
			o.SLAMetrics.Overdue++
		case models.SLAAtRisk:
			o.SLAMetrics.AtRisk++
			o.SLAMetrics.OnTime++
		default:
			o.SLAMetrics.OnTime++
		}

		if is.PriorityLevel == models.PriorityHigh {
			high = append(high, is)
		}
		if now.Sub(is.CreatedAt) <= trendWindow {
			trends[[2]string{is.CreatedAt.UTC().Format(time.DateOnly), is.Category}]++
		}
	}

	for name, c := range cats {
		o.ByCategory = append(o.ByCategory, CategoryStat{
			Category:      name,
			Count:         c.count,
			AvgConfidence: round2(c.conf / float64(c.count)),
		})
	}
	sort.Slice(o.ByCategory, func(i, j int) bool {
		if o.ByCategory[i].Count != o.ByCategory[j].Count {
			return o.ByCategory[i].Count > o.ByCategory[j].Count
		}
		return o.ByCategory[i].Category < o.ByCategory[j].Category
	})

	for level, p := range prios {
		ps := PriorityStat{Level: level, Count: p.count}
		if p.scored > 0 {
			avg := round2(float64(p.sum) / float64(p.scored))
			ps.AvgScore = &avg
		}
		o.ByPriority = append(o.ByPriority, ps)
	}
	sort.Slice(o.ByPriority, func(i, j int) bool { return levelRank(o.ByPriority[i].Level) < levelRank(o.ByPriority[j].Level) })

	for _, st := range models.IssueStatuses {
		if n := statuses[st]; n > 0 {
			o.ByStatus = append(o.ByStatus, StatusStat{Status: st, Count: n})
		}
	}

	if scored > 0 {
		avg := round2(float64(scoreSum) / float64(scored))
		o.PriorityMetrics = PriorityMetrics{AvgScore: &avg, MinScore: &minScore, MaxScore: &maxScore, Scored: scored}
	}

	sort.Slice(high, func(i, j int) bool { return high[i].CreatedAt.After(high[j].CreatedAt) })
	if len(high) > recentHighLimit {
		high = high[:recentHighLimit]
	}
	for _, is := range high {
		o.HighPriorityRecent = append(o.HighPriorityRecent, IssueSummary{
			ID:            is.ID,
			Title:         is.Title,
			Category:      is.Category,
			PriorityScore: is.PriorityScore,
			PriorityLevel: is.PriorityLevel,
			CreatedAt:     is.CreatedAt,
		})
	}

	for k, n := range trends {
		o.Trends = append(o.Trends, TrendPoint{Date: k[0], Category: k[1], Count: n})
	}
	sort.Slice(o.Trends, func(i, j int) bool {
		if o.Trends[i].Date != o.Trends[j].Date {
			return o.Trends[i].Date < o.Trends[j].Date
		}
		return o.Trends[i].Category < o.Trends[j].Category
	})

	return o
}

// HeatCell groups issues reported near the same coordinates.
type HeatCell struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Count       int      `json:"count"`
	Category    string   `json:"category"`
	AvgPriority *float64 `json:"avgPriority"`
}

// Heatmap buckets located issues onto a 0.01 degree grid. An empty category
// includes every category.
func Heatmap(issues []*models.Issue, category string) []HeatCell {
	type acc struct {
		cell   HeatCell
		sum    int
		scored int
	}
	cells := map[[2]float64]*acc{}
	var order [][2]float64

	for _, is := range issues {
		if category != "" && is.Category != category {
			continue
		}
		if is.Location == nil || len(is.Location.Coordinates) != 2 {
			continue
		}
		key := [2]float64{round2(is.Location.Coordinates[1]), round2(is.Location.Coordinates[0])}
		a := cells[key]
		if a == nil {
			a = &acc{cell: HeatCell{Lat: key[0], Lng: key[1], Category: is.Category}}
			cells[key] = a
			order = append(order, key)
		}
		a.cell.Count++
		if is.PriorityScore != nil {
			a.sum += *is.PriorityScore
			a.scored++
		}
	}

	out := make([]HeatCell, 0, len(order))
	for _, k := range order {
		a := cells[k]
		if a.scored > 0 {
			avg := round2(float64(a.sum) / float64(a.scored))
			a.cell.AvgPriority = &avg
		}
		out = append(out, a.cell)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func levelRank(l models.PriorityLevel) int {
	switch l {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	case models.PriorityLow:
		return 2
	}
	return 3
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
