// Package analytics aggregates stored evaluations into distributions,
// breakdowns, timelines and per-JD averages, and exports them as XLSX.
package analytics

import (
	"math"
	"sort"

	"github.com/hyperjump/resumatch/internal/models"
)

// Bucket labels in ascending score order. Ranges are closed.
var BucketLabels = []string{"0-25", "26-50", "51-75", "76-100"}

// VerdictLabels lists the tiers reported by VerdictBreakdown.
var VerdictLabels = []models.Verdict{models.VerdictHigh, models.VerdictMedium, models.VerdictLow}

// DayCount is the number of evaluations created on one UTC date.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// JDAverage is the mean score of the evaluations of one job description.
type JDAverage struct {
	JDID     int64   `json:"jd_id"`
	Title    string  `json:"title"`
	AvgScore float64 `json:"avg_score"`
	Count    int     `json:"count"`
}

func bucketFor(score int) string {
	switch {
	case score <= 25:
		return BucketLabels[0]
	case score <= 50:
		return BucketLabels[1]
	case score <= 75:
		return BucketLabels[2]
	default:
		return BucketLabels[3]
	}
}

// ScoreDistribution counts evaluations per score bucket. An empty input yields
// an empty map; otherwise every bucket is present.
func ScoreDistribution(evs []*models.Evaluation) map[string]int {
	if len(evs) == 0 {
		return map[string]int{}
	}
	out := make(map[string]int, len(BucketLabels))
	for _, l := range BucketLabels {
		out[l] = 0
	}
	for _, ev := range evs {
		out[bucketFor(ev.Score)]++
	}
	return out
}

// VerdictBreakdown counts evaluations per tier. Verdicts outside the three
// tiers, including pending, are counted as low.
func VerdictBreakdown(evs []*models.Evaluation) map[string]int {
	if len(evs) == 0 {
		return map[string]int{}
	}
	out := make(map[string]int, len(VerdictLabels))
	for _, v := range VerdictLabels {
		out[string(v)] = 0
	}
	for _, ev := range evs {
		out[string(ev.Verdict.Tier())]++
	}
	return out
}

// Timeline counts evaluations per UTC calendar day, ascending by date.
func Timeline(evs []*models.Evaluation) []DayCount {
	counts := make(map[string]int)
	for _, ev := range evs {
		counts[ev.CreatedAt.UTC().Format("2006-01-02")]++
	}
	out := make([]DayCount, 0, len(counts))
	for d, c := range counts {
		out = append(out, DayCount{Date: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// AvgScorePerJD averages scores grouped by job description, ordered by JD id.
// Evaluations whose job description is not in jds are left out.
func AvgScorePerJD(evs []*models.Evaluation, jds map[int64]*models.JobDescription) []JDAverage {
	sums := make(map[int64]int)
	counts := make(map[int64]int)
	for _, ev := range evs {
		if _, ok := jds[ev.JDID]; !ok {
			continue
		}
		sums[ev.JDID] += ev.Score
		counts[ev.JDID]++
	}
	out := make([]JDAverage, 0, len(counts))
	for id, n := range counts {
		out = append(out, JDAverage{
			JDID:     id,
			Title:    jds[id].DisplayTitle(),
			AvgScore: round2(float64(sums[id]) / float64(n)),
			Count:    n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JDID < out[j].JDID })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
