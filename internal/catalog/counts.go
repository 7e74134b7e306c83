package catalog

import (
	"sort"

	"golang.org/x/text/cases"

	"github.com/ibrbtv/backend/internal/models"
)

// CategoryCount is the number of videos filed under a category.
type CategoryCount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CountByCategory counts videos per known category, sorted by name.
func CountByCategory(videos []models.Video, categories []models.Category) []CategoryCount {
	byName := make(map[string]int, len(categories))
	for _, v := range videos {
		byName[v.Category]++
	}

	counts := make([]CategoryCount, 0, len(categories))
	for _, c := range categories {
		counts = append(counts, CategoryCount{ID: c.ID, Name: c.Name, Count: byName[c.Name]})
	}

	fold := cases.Fold()
	sort.SliceStable(counts, func(i, j int) bool {
		return fold.String(counts[i].Name) < fold.String(counts[j].Name)
	})
	return counts
}
