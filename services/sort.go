package services

import (
	"cmp"
	"slices"
	"stream-lab/domain"
)

func sortByPoints(viewers []domain.Viewer) {
	slices.SortFunc(viewers, func(a, b domain.Viewer) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
