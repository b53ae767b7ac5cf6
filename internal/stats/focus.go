package stats

import (
	"sort"
)

// FocusSubjects picks the graded subjects where raising the average would move
// the overall result the most: the largest coefficient times the distance to
// maxGrade.
func FocusSubjects(res Result, maxGrade float64, top int) []SubjectRow {
	candidates := make([]SubjectRow, 0, len(res.Rows))
	for _, row := range res.Rows {
		if row.Average == nil || row.Subject.Coefficient <= 0 {
			continue
		}
		if gain(row, maxGrade) <= 0 {
			continue
		}
		candidates = append(candidates, row)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		gi := gain(candidates[i], maxGrade)
		gj := gain(candidates[j], maxGrade)
		if gi == gj {
			return candidates[i].Subject.ID < candidates[j].Subject.ID
		}
		return gi > gj
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	return candidates[:top]
}

func gain(row SubjectRow, maxGrade float64) float64 {
	if maxGrade <= 0 {
		maxGrade = 20
	}
	return (maxGrade - *row.Average) * row.Subject.Coefficient
}
