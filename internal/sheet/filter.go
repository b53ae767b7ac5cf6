package sheet

import (
	"slices"

	"github.com/verte-zerg/moadil/internal/grades"
	"github.com/verte-zerg/moadil/internal/model"
)

// Unknown returns the sheet subjects that are not in subjects, sorted.
func Unknown(store grades.Store, subjects []model.Subject) []string {
	known := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		known[s.ID] = struct{}{}
	}
	var out []string
	for id := range store {
		if _, ok := known[id]; !ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
