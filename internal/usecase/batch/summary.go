package batch

import (
	"sort"

	dombatch "github.com/kailas-cloud/bureaucratese/internal/domain/batch"
)

// YearSummary is the mean of each density over scored records of one year.
type YearSummary struct {
	Year     int
	Records  int
	Basic    float64
	Weighted float64
	Semantic float64
}

// SummarizeByYear groups successfully scored records by year. Records without
// a year or without scores are left out.
func SummarizeByYear(rep Report) []YearSummary {
	acc := make(map[int]*YearSummary)
	for i, sc := range rep.Scores {
		if sc.Status != dombatch.StatusOK || i >= len(rep.years) || !rep.years[i].ok {
			continue
		}
		y := rep.years[i].value
		ys, ok := acc[y]
		if !ok {
			ys = &YearSummary{Year: y}
			acc[y] = ys
		}
		ys.Records++
		ys.Basic += sc.Basic
		ys.Weighted += sc.Weighted
		ys.Semantic += sc.Semantic
	}

	out := make([]YearSummary, 0, len(acc))
	for _, ys := range acc {
		n := float64(ys.Records)
		ys.Basic /= n
		ys.Weighted /= n
		ys.Semantic /= n
		out = append(out, *ys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
