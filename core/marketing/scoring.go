package marketing

import (
	"sort"

	"github.com/trezcool/campus/core"
)

const (
	maxScore          = 100
	maxActivityPoints = 40
	defaultSourcePts  = 5
)

var (
	sourcePoints = map[string]int{
		"referral": 30,
		"event":    25,
		"website":  20,
		"social":   15,
		"ads":      10,
	}

	statusPoints = map[string]int{
		StatusNew:       0,
		StatusContacted: 10,
		StatusQualified: 25,
		StatusConverted: 40,
	}

	activityPoints = map[string]int{
		ActivityEmailOpen:  2,
		ActivityEmailClick: 5,
		ActivityCall:       8,
		ActivityForm:       10,
		ActivityMeeting:    15,
	}
)

// Score rates a lead from 0 to 100: source + status + activity points (capped).
// lost leads always score 0.
func Score(lead Lead, activities []Activity) int {
	if lead.Status == StatusLost {
		return 0
	}

	pts, ok := sourcePoints[lead.Source]
	if !ok {
		pts = defaultSourcePts
	}
	pts += statusPoints[lead.Status]

	var act int
	for _, a := range activities {
		act += activityPoints[a.Kind]
	}
	if act > maxActivityPoints {
		act = maxActivityPoints
	}
	pts += act

	if pts > maxScore {
		return maxScore
	}
	if pts < 0 {
		return 0
	}
	return pts
}

// ConversionStats tallies the leads per source, sorted by source.
func ConversionStats(leads []Lead) []ConversionStat {
	bySource := make(map[string]*ConversionStat)
	for _, lead := range leads {
		stat, ok := bySource[lead.Source]
		if !ok {
			stat = &ConversionStat{Source: lead.Source}
			bySource[lead.Source] = stat
		}
		stat.Total++
		if lead.Status == StatusConverted {
			stat.Converted++
		}
	}

	stats := make([]ConversionStat, 0, len(bySource))
	for _, stat := range bySource {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Source < stats[j].Source })
	return WithRates(stats)
}

// WithRates fills the conversion rates in.
func WithRates(stats []ConversionStat) []ConversionStat {
	for i := range stats {
		stats[i].Rate = core.Percentage(stats[i].Converted, stats[i].Total)
	}
	return stats
}
